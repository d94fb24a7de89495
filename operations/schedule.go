package operations

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mkstore/procurement_backend/cms"
)

const (
	TermEarly  = "early"
	TermMiddle = "middle"
	TermLate   = "late"
)

const (
	// ScheduleUnknown is the schedule token written at order time when no
	// delivery term could be determined. It is always due immediately.
	ScheduleUnknown = "unknown"
	// SentinelDeliveryDate marks ledger rows whose schedule was unknown.
	SentinelDeliveryDate = "1999-12-31"
)

// All delivery-term math runs in the shop's business timezone.
var businessLocation = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}()

// Schedule is one computed delivery term: a third-of-month bucket with its
// display texts. Computed fresh on every request, persisted only as the
// derived term identifier or display text.
type Schedule struct {
	Year    int      `json:"year"`
	Month   int      `json:"month"`
	Term    string   `json:"term"`
	Text    string   `json:"text"`
	SubText string   `json:"subText"`
	Texts   []string `json:"texts"`
}

// MakeSchedule converts a lead-time configuration into a delivery term.
// A custom schedule whose interval contains now wins outright (first match in
// list order); otherwise the term is derived from now + leadDays, with the
// back half of any month (day >= 28) rolled into the next month's cycle.
func MakeSchedule(now time.Time, leadDays int, cycle string, customSchedules []cms.CustomSchedule) Schedule {
	for _, cs := range customSchedules {
		end := cs.EndOn.AddDate(0, 0, 1)
		if !now.Before(cs.BeginOn) && now.Before(end) {
			if year, month, term, ok := splitTermID(cs.DeliverySchedule); ok {
				return scheduleFor(year, month, term, stepTerm)
			}
		}
	}

	date := now.In(businessLocation).AddDate(0, 0, leadDays)
	year := date.Year()
	day := date.Day()
	month := int(date.Month())
	if day >= 28 {
		month++
	}
	if month > 12 {
		month = 1
		year++
	}

	if cycle == cms.CycleTriple {
		term := TermLate
		switch {
		case day >= 28 || day <= 7:
			term = TermEarly
		case day >= 8 && day <= 17:
			term = TermMiddle
		}
		return scheduleFor(year, month, term, stepTerm)
	}

	// Monthly cycle: one delivery window per month, always the late bucket.
	return scheduleFor(year, month, TermLate, stepMonth)
}

// ParseTermDate maps a stored term identifier to its canonical comparison
// date (early -> 8th, middle -> 18th, late -> 28th). The "unknown" token
// parses to now, i.e. always due.
func ParseTermDate(token string, now time.Time) (time.Time, error) {
	if token == ScheduleUnknown {
		return now, nil
	}
	year, month, term, ok := splitTermID(token)
	if !ok {
		return time.Time{}, fmt.Errorf("malformed schedule token %q", token)
	}
	return time.Date(year, time.Month(month), termDay(term), 0, 0, 0, 0, businessLocation), nil
}

type labelStep int

const (
	stepTerm  labelStep = iota // walk back in 10-day decrements
	stepMonth                  // walk back one month at a time
)

func scheduleFor(year, month int, term string, step labelStep) Schedule {
	beginDay, endDay := 21, daysInMonth(year, month)
	switch term {
	case TermEarly:
		beginDay, endDay = 1, 10
	case TermMiddle:
		beginDay, endDay = 11, 20
	}
	return Schedule{
		Year:    year,
		Month:   month,
		Term:    term,
		Text:    fmt.Sprintf("%d年%d月%s", year, month, termLabel(term)),
		SubText: fmt.Sprintf("%d/%d〜%d/%d", month, beginDay, month, endDay),
		Texts:   rollingLabels(year, month, term, step, 4),
	}
}

// rollingLabels walks backward from the bucket's terminal date, labelling each
// stop, newest first.
func rollingLabels(year, month int, term string, step labelStep, size int) []string {
	begin := time.Date(year, time.Month(month), termDay(term), 0, 0, 0, 0, businessLocation)
	labels := make([]string, 0, size)
	for i := 0; i < size; i++ {
		date := begin
		if step == stepMonth {
			date = begin.AddDate(0, -i, 0)
		} else {
			date = begin.AddDate(0, 0, -i*10)
		}
		t := TermEarly
		switch {
		case date.Day() > 20:
			t = TermLate
		case date.Day() > 10:
			t = TermMiddle
		}
		labels = append(labels, fmt.Sprintf("%d年%d月%s", date.Year(), int(date.Month()), termLabel(t)))
	}
	return labels
}

func splitTermID(token string) (year int, month int, term string, ok bool) {
	parts := strings.SplitN(token, "-", 3)
	if len(parts) != 3 {
		return 0, 0, "", false
	}
	year, yerr := strconv.Atoi(parts[0])
	month, merr := strconv.Atoi(parts[1])
	term = parts[2]
	if yerr != nil || merr != nil || month < 1 || month > 12 {
		return 0, 0, "", false
	}
	if term != TermEarly && term != TermMiddle && term != TermLate {
		return 0, 0, "", false
	}
	return year, month, term, true
}

func termDay(term string) int {
	switch term {
	case TermLate:
		return 28
	case TermMiddle:
		return 18
	default:
		return 8
	}
}

func termLabel(term string) string {
	switch term {
	case TermEarly:
		return "上旬"
	case TermMiddle:
		return "中旬"
	default:
		return "下旬"
	}
}

func daysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, businessLocation).Day()
}
