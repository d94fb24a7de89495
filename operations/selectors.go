package operations

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mkstore/procurement_backend/cms"
	"github.com/mkstore/procurement_backend/config"
	"github.com/mkstore/procurement_backend/models"
	"github.com/mkstore/procurement_backend/utils"
	"github.com/sirupsen/logrus"
)

// ErrSKUUnderivable is the data-integrity failure: a line item committed to a
// multi-SKU variant carries no SKU list, so it cannot be routed. The whole
// batch aborts before any ledger write rather than dropping the item.
var ErrSKUUnderivable = errors.New("sku list underivable for multi-sku variant")

// SelectBySchedule returns ledger rows for every candidate whose delivery
// term has arrived. Candidates of unresolvable products are skipped (archived
// or unpublished products are normal, not an error). Output preserves
// candidate order; each (line item, SKU) pair appears at most once.
func SelectBySchedule(now time.Time, candidates []models.NotOperatedLineItem, products map[string]*cms.Product, logger *logrus.Logger) ([]models.OperatedLineItem, error) {
	var rows []models.OperatedLineItem
	for _, c := range candidates {
		product := products[StripProductGID(c.ProductID)]
		if product == nil {
			continue
		}

		token := ""
		if c.DeliverySchedule != nil {
			token = strings.TrimSpace(*c.DeliverySchedule)
		}
		parsed := now
		if token != "" {
			p, err := ParseTermDate(token, now)
			if err != nil {
				config.LogError(logger, "selectors.go", "SelectBySchedule", "Parsing schedule token", c.LineItemID, err)
				continue
			}
			parsed = p
		}
		if parsed.After(now.AddDate(0, 0, product.Rule.LeadDays)) {
			continue
		}

		skus, err := skusForCandidate(c, product)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				config.LogError(logger, "selectors.go", "SelectBySchedule", "Resolving variant", c.LineItemID, err)
				continue
			}
			return nil, err
		}
		rows = append(rows, expandOperated(now, c, token, parsed, skus)...)
	}
	return rows, nil
}

// SelectByBulkThreshold operates on the candidates left over after schedule
// selection. Any product whose pending count exceeds its bulk-purchase
// threshold has every pending item expanded, schedule notwithstanding; groups
// at or below threshold wait for a future run.
func SelectByBulkThreshold(now time.Time, remaining []models.NotOperatedLineItem, products map[string]*cms.Product, logger *logrus.Logger) ([]models.OperatedLineItem, error) {
	groups := map[string][]models.NotOperatedLineItem{}
	var productOrder []string
	for _, c := range remaining {
		if _, ok := groups[c.ProductID]; !ok {
			productOrder = append(productOrder, c.ProductID)
		}
		groups[c.ProductID] = append(groups[c.ProductID], c)
	}

	var rows []models.OperatedLineItem
	for _, productID := range productOrder {
		group := groups[productID]
		product := products[StripProductGID(productID)]
		if product == nil {
			continue
		}
		if len(group) <= product.Rule.BulkPurchase {
			continue
		}

		for _, c := range group {
			token := ""
			if c.DeliverySchedule != nil {
				token = strings.TrimSpace(*c.DeliverySchedule)
			}
			parsed := now
			if token != "" {
				p, err := ParseTermDate(token, now)
				if err != nil {
					config.LogError(logger, "selectors.go", "SelectByBulkThreshold", "Parsing schedule token", c.LineItemID, err)
					continue
				}
				parsed = p
			}

			skus, err := skusForCandidate(c, product)
			if err != nil {
				if errors.Is(err, utils.ErrorRecordNotFound) {
					config.LogError(logger, "selectors.go", "SelectByBulkThreshold", "Resolving variant", c.LineItemID, err)
					continue
				}
				return nil, err
			}
			rows = append(rows, expandOperated(now, c, token, parsed, skus)...)
		}
	}
	return rows, nil
}

// skusForCandidate resolves the SKU codes a candidate expands into. The SKU
// list recorded at order time wins; with no usable list, single-SKU variants
// fall back to their configured SKU (or the synthetic "unknown"), while a
// multi-SKU variant without a list is a data-integrity failure.
func skusForCandidate(c models.NotOperatedLineItem, product *cms.Product) ([]string, error) {
	skus := decodeSKUList(c.Skus)
	if len(skus) > 0 {
		return skus, nil
	}

	if c.VariantID == nil || strings.TrimSpace(*c.VariantID) == "" {
		return []string{ScheduleUnknown}, nil
	}
	variant := product.VariantByID(*c.VariantID)
	if variant == nil {
		return nil, fmt.Errorf("%w: variant %s (product %s)", utils.ErrorRecordNotFound, *c.VariantID, product.ID)
	}
	if variant.SkuSelectable > 1 {
		return nil, fmt.Errorf("%w: line item %s variant %s (product %s)", ErrSKUUnderivable, c.LineItemID, *c.VariantID, product.ID)
	}
	if len(variant.Skus) == 1 {
		return []string{variant.Skus[0].Code}, nil
	}
	return []string{ScheduleUnknown}, nil
}

func decodeSKUList(token *string) []string {
	if token == nil {
		return nil
	}
	raw := strings.TrimSpace(*token)
	if raw == "" || raw == "[]" {
		return nil
	}
	var skus []string
	if err := json.Unmarshal([]byte(raw), &skus); err != nil {
		// Malformed list tokens degrade to the variant-metadata path.
		return nil
	}
	return skus
}

func expandOperated(now time.Time, c models.NotOperatedLineItem, token string, parsed time.Time, skus []string) []models.OperatedLineItem {
	deliveryDate := parsed.In(businessLocation).Format("2006-01-02")
	if token == ScheduleUnknown {
		deliveryDate = SentinelDeliveryDate
	}
	rows := make([]models.OperatedLineItem, 0, len(skus))
	for _, sku := range skus {
		rows = append(rows, models.OperatedLineItem{
			ID:           c.LineItemID,
			Sku:          sku,
			OperatedAt:   now,
			DeliveryDate: deliveryDate,
			Quantity:     c.Quantity,
			OrderID:      c.OrderID,
			ProductID:    c.ProductID,
			VariantID:    c.VariantID,
			OrderName:    c.OrderName,
		})
	}
	return rows
}
