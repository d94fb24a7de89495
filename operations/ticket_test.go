package operations

import (
	"strings"
	"testing"

	"github.com/mkstore/procurement_backend/cms"
	"github.com/mkstore/procurement_backend/models"
)

func ticketRecord(lineItemID, sku, orderID, orderName, deliveryDate string, qty int) models.OperatedLineItem {
	return models.OperatedLineItem{
		ID:           lineItemID,
		Sku:          sku,
		OrderID:      orderID,
		OrderName:    orderName,
		DeliveryDate: deliveryDate,
		Quantity:     qty,
		ProductID:    "gid://shopify/Product/1",
	}
}

func TestComposeTicket_SummaryAndSections(t *testing.T) {
	t.Setenv("SHOPIFY_SHOP_NAME", "mkstore")

	now := jstDate(2022, 5, 17)
	product := testProduct("1", 10, 5)
	catalog := map[string]cms.SKU{
		"sku_b": {Code: "sku_b", Name: "醤油", SubName: "大"},
	}
	records := []models.OperatedLineItem{
		ticketRecord("li1", "sku_a", "gid://shopify/Order/111", "#1001", "2022-05-28", 2),
		ticketRecord("li2", "sku_b", "gid://shopify/Order/222", "#1002", "2022-05-28", 3),
	}

	ticket := ComposeTicket(now, records, product, catalog, false)

	if ticket.Summary != "[発注][2022-05-17]テスト商品" {
		t.Fatalf("unexpected summary: %s", ticket.Summary)
	}
	if !strings.Contains(ticket.Description, "h3. サマリ\n") {
		t.Fatal("missing summary section")
	}
	if !strings.Contains(ticket.Description, "h3. 詳細\n") {
		t.Fatal("missing detail section")
	}
	if !strings.Contains(ticket.Description, "*合計発注数*: 5\n") {
		t.Fatalf("missing total quantity: %s", ticket.Description)
	}
	if !strings.Contains(ticket.Description, "* SKU: 大 醤油 (sku_b) 3個\n") {
		t.Fatalf("missing catalog-enriched sku line: %s", ticket.Description)
	}
	// No catalog entry: placeholder names.
	if !strings.Contains(ticket.Description, "* SKU: - - (sku_a) 2個\n") {
		t.Fatalf("missing placeholder sku line: %s", ticket.Description)
	}
	// Admin deep link drops the GID prefix.
	if !strings.Contains(ticket.Description, "** #1001 https://mkstore.myshopify.com/admin/orders/111 2個 配送:2022-05-28\n") {
		t.Fatalf("missing order line: %s", ticket.Description)
	}
	if strings.Contains(ticket.Description, "一括発注数を超えたために") {
		t.Fatal("bulk notice on a schedule ticket")
	}
}

func TestComposeTicket_SKUCodesDescendingCaseInsensitive(t *testing.T) {
	now := jstDate(2022, 5, 17)
	product := testProduct("1", 0, 0)
	records := []models.OperatedLineItem{
		ticketRecord("li1", "Alpha", "gid://shopify/Order/1", "#1", "2022-05-28", 1),
		ticketRecord("li2", "charlie", "gid://shopify/Order/2", "#2", "2022-05-28", 1),
		ticketRecord("li3", "Bravo", "gid://shopify/Order/3", "#3", "2022-05-28", 1),
	}

	ticket := ComposeTicket(now, records, product, nil, false)

	iC := strings.Index(ticket.Description, "(charlie)")
	iB := strings.Index(ticket.Description, "(Bravo)")
	iA := strings.Index(ticket.Description, "(Alpha)")
	if iC < 0 || iB < 0 || iA < 0 {
		t.Fatalf("missing sku lines: %s", ticket.Description)
	}
	if !(iC < iB && iB < iA) {
		t.Fatalf("sku codes not descending: %s", ticket.Description)
	}
}

func TestComposeTicket_OrdersAscendingAndAggregated(t *testing.T) {
	now := jstDate(2022, 5, 17)
	product := testProduct("1", 0, 0)
	records := []models.OperatedLineItem{
		ticketRecord("li1", "sku", "gid://shopify/Order/2", "#B", "2022-05-28", 1),
		ticketRecord("li2", "sku", "gid://shopify/Order/1", "#a", "2022-05-28", 2),
		// Same order again: quantities fold into one line.
		ticketRecord("li3", "sku", "gid://shopify/Order/2", "#B", "2022-05-28", 4),
	}

	ticket := ComposeTicket(now, records, product, nil, false)

	iA := strings.Index(ticket.Description, "** #a ")
	iB := strings.Index(ticket.Description, "** #B ")
	if iA < 0 || iB < 0 {
		t.Fatalf("missing order lines: %s", ticket.Description)
	}
	if iA > iB {
		t.Fatalf("orders not ascending: %s", ticket.Description)
	}
	if !strings.Contains(ticket.Description, "** #B https://example.myshopify.com/admin/orders/2 5個") {
		t.Fatalf("order quantities not aggregated: %s", ticket.Description)
	}
	if !strings.Contains(ticket.Description, "* SKU: - - (sku) 7個\n") {
		t.Fatalf("sku quantity not aggregated: %s", ticket.Description)
	}
}

func TestComposeTicket_SentinelRendersUnknown(t *testing.T) {
	now := jstDate(2022, 5, 17)
	product := testProduct("1", 0, 0)
	records := []models.OperatedLineItem{
		ticketRecord("li1", "sku", "gid://shopify/Order/1", "#1", SentinelDeliveryDate, 1),
	}

	ticket := ComposeTicket(now, records, product, nil, false)

	if !strings.Contains(ticket.Description, "配送:unknown\n") {
		t.Fatalf("sentinel date not rendered as unknown: %s", ticket.Description)
	}
	if strings.Contains(ticket.Description, SentinelDeliveryDate) {
		t.Fatal("sentinel date leaked into the ticket")
	}
}

func TestComposeTicket_BulkTagAndNotice(t *testing.T) {
	now := jstDate(2022, 5, 17)
	product := testProduct("1", 0, 5)
	records := []models.OperatedLineItem{
		ticketRecord("li1", "sku", "gid://shopify/Order/1", "#1", "2022-05-28", 1),
	}

	ticket := ComposeTicket(now, records, product, nil, true)

	if ticket.Summary != "[発注][2022-05-17][一括発注数超]テスト商品" {
		t.Fatalf("unexpected bulk summary: %s", ticket.Summary)
	}
	if !strings.HasPrefix(ticket.Description, "h3. サマリ\n*こちらは一括発注数を超えたために発生したタスクです。*\n") {
		t.Fatalf("missing bulk notice line: %s", ticket.Description)
	}
}

func TestComposeTicket_ProjectDefaults(t *testing.T) {
	now := jstDate(2022, 5, 17)
	product := testProduct("1", 0, 0)

	ticket := ComposeTicket(now, nil, product, nil, false)
	if ticket.ProjectKey != "STORE" || ticket.IssueTypeID != "10001" {
		t.Fatalf("unexpected defaults: %s/%s", ticket.ProjectKey, ticket.IssueTypeID)
	}

	t.Setenv("JIRA_PROJECT_KEY", "PROC")
	t.Setenv("JIRA_ISSUE_TYPE_ID", "42")
	t.Setenv("JIRA_ASSIGNEE_ID", "abc123")
	ticket = ComposeTicket(now, nil, product, nil, false)
	if ticket.ProjectKey != "PROC" || ticket.IssueTypeID != "42" || ticket.AssigneeID != "abc123" {
		t.Fatalf("env overrides not applied: %+v", ticket)
	}
}
