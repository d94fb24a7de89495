package operations

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mkstore/procurement_backend/cms"
	"github.com/mkstore/procurement_backend/models"
	"github.com/mkstore/procurement_backend/tracker"
)

type ticketOrderLine struct {
	orderID       string
	orderName     string
	deliveryDate  string
	totalQuantity int
}

type ticketSKUGroup struct {
	code     string
	quantity int
	orders   []*ticketOrderLine
}

// ComposeTicket builds the per-product purchasing ticket for one run's
// operated rows: a summary (aggregate quantity per SKU, codes descending) and
// a detail section (per SKU, one line per contributing order with an admin
// deep link, names ascending). Bulk-overflow tickets are tagged in the
// summary and carry a notice line.
func ComposeTicket(now time.Time, records []models.OperatedLineItem, product *cms.Product, catalog map[string]cms.SKU, bulk bool) tracker.Ticket {
	groupsByCode := map[string]*ticketSKUGroup{}
	var codeOrder []string
	total := 0

	for _, r := range records {
		total += r.Quantity
		g := groupsByCode[r.Sku]
		if g == nil {
			g = &ticketSKUGroup{code: r.Sku}
			groupsByCode[r.Sku] = g
			codeOrder = append(codeOrder, r.Sku)
		}
		g.quantity += r.Quantity

		var line *ticketOrderLine
		for _, o := range g.orders {
			if o.orderID == r.OrderID {
				line = o
				break
			}
		}
		if line == nil {
			line = &ticketOrderLine{
				orderID:      r.OrderID,
				orderName:    r.OrderName,
				deliveryDate: r.DeliveryDate,
			}
			g.orders = append(g.orders, line)
		}
		line.totalQuantity += r.Quantity
	}

	sort.SliceStable(codeOrder, func(i, j int) bool {
		return strings.ToLower(codeOrder[i]) > strings.ToLower(codeOrder[j])
	})

	var b strings.Builder
	b.WriteString("h3. サマリ\n")
	if bulk {
		b.WriteString("*こちらは一括発注数を超えたために発生したタスクです。*\n")
	}
	fmt.Fprintf(&b, "*商品*: %s\n", product.ProductName)
	fmt.Fprintf(&b, "*合計発注数*: %d\n", total)
	fmt.Fprintf(&b, "リード日数: %d日\n", product.Rule.LeadDays)
	fmt.Fprintf(&b, "一括発注数: %d\n", product.Rule.BulkPurchase)

	for _, code := range codeOrder {
		g := groupsByCode[code]
		b.WriteString(skuLine(g, catalog))
	}

	b.WriteString("\n---\n\nh3. 詳細\n")
	for _, code := range codeOrder {
		g := groupsByCode[code]
		b.WriteString(skuLine(g, catalog))

		orders := append([]*ticketOrderLine(nil), g.orders...)
		sort.SliceStable(orders, func(i, j int) bool {
			return strings.ToLower(orders[i].orderName) < strings.ToLower(orders[j].orderName)
		})
		for _, o := range orders {
			date := o.deliveryDate
			if date == SentinelDeliveryDate {
				date = "unknown"
			}
			fmt.Fprintf(&b, "** %s %s %d個 配送:%s\n", o.orderName, orderAdminURL(o.orderID), o.totalQuantity, date)
		}
	}

	tag := ""
	if bulk {
		tag = "[一括発注数超]"
	}
	summary := fmt.Sprintf("[発注][%s]%s%s", now.In(businessLocation).Format("2006-01-02"), tag, product.ProductName)

	return tracker.Ticket{
		ProjectKey:  envDefault("JIRA_PROJECT_KEY", "STORE"),
		IssueTypeID: envDefault("JIRA_ISSUE_TYPE_ID", "10001"),
		Summary:     summary,
		Description: b.String(),
		AssigneeID:  strings.TrimSpace(os.Getenv("JIRA_ASSIGNEE_ID")),
	}
}

func skuLine(g *ticketSKUGroup, catalog map[string]cms.SKU) string {
	subName, name := "-", "-"
	if sku, ok := catalog[g.code]; ok {
		if sku.SubName != "" {
			subName = sku.SubName
		}
		if sku.Name != "" {
			name = sku.Name
		}
	}
	return fmt.Sprintf("* SKU: %s %s (%s) %d個\n", subName, name, g.code, g.quantity)
}

func orderAdminURL(orderID string) string {
	return fmt.Sprintf("https://%s.myshopify.com/admin/orders/%s", envDefault("SHOPIFY_SHOP_NAME", "example"), StripOrderGID(orderID))
}

func envDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
