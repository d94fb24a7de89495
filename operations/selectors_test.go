package operations

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mkstore/procurement_backend/cms"
	"github.com/mkstore/procurement_backend/models"
	"github.com/sirupsen/logrus"
)

func strPtr(s string) *string {
	return &s
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testProduct(id string, leadDays, bulkPurchase int) *cms.Product {
	return &cms.Product{
		ID:          id,
		ProductName: "テスト商品",
		Rule: cms.Rule{
			LeadDays:      leadDays,
			BulkPurchase:  bulkPurchase,
			CyclePurchase: cms.CyclePurchase{Value: cms.CycleTriple},
		},
	}
}

func candidate(lineItemID, productNum string, schedule, skus *string) models.NotOperatedLineItem {
	return models.NotOperatedLineItem{
		OrderID:          "gid://shopify/Order/9" + lineItemID,
		LineItemID:       lineItemID,
		DeliverySchedule: schedule,
		Skus:             skus,
		ProductID:        "gid://shopify/Product/" + productNum,
		Quantity:         1,
		OrderName:        "#10" + lineItemID,
	}
}

func TestSelectBySchedule_EmptySkusOnSchedule(t *testing.T) {
	now := jstDate(2021, 10, 18)
	products := map[string]*cms.Product{"1": testProduct("1", 10, 0)}

	rows, err := SelectBySchedule(now,
		[]models.NotOperatedLineItem{candidate("1", "1", strPtr("2021-10-late"), strPtr("[]"))},
		products, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.Sku != "unknown" {
		t.Fatalf("expected synthetic unknown sku, got %s", row.Sku)
	}
	if row.DeliveryDate != "2021-10-28" {
		t.Fatalf("expected delivery 2021-10-28, got %s", row.DeliveryDate)
	}
	if row.ID != "1" {
		t.Fatalf("expected ledger id to be the line item id, got %s", row.ID)
	}
}

func TestSelectBySchedule_UnknownScheduleAlwaysDue(t *testing.T) {
	now := jstDate(2021, 10, 18)
	products := map[string]*cms.Product{"1": testProduct("1", 10, 0)}

	rows, err := SelectBySchedule(now,
		[]models.NotOperatedLineItem{candidate("1", "1", strPtr("unknown"), strPtr("[]"))},
		products, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].DeliveryDate != SentinelDeliveryDate {
		t.Fatalf("expected sentinel date, got %s", rows[0].DeliveryDate)
	}
}

func TestSelectBySchedule_SkuListExpansion(t *testing.T) {
	now := jstDate(2021, 10, 18)
	products := map[string]*cms.Product{"1": testProduct("1", 10, 0)}

	rows, err := SelectBySchedule(now,
		[]models.NotOperatedLineItem{candidate("1", "1", strPtr("2021-10-late"), strPtr(`["some_sku_1", "some_sku_2"]`))},
		products, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Sku != "some_sku_1" || rows[1].Sku != "some_sku_2" {
		t.Fatalf("unexpected sku expansion: %s, %s", rows[0].Sku, rows[1].Sku)
	}
}

func TestSelectBySchedule_BeforeSchedule(t *testing.T) {
	now := jstDate(2021, 10, 17)
	products := map[string]*cms.Product{"1": testProduct("1", 10, 0)}

	rows, err := SelectBySchedule(now,
		[]models.NotOperatedLineItem{candidate("1", "1", strPtr("2021-10-late"), strPtr("[]"))},
		products, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows before schedule, got %d", len(rows))
	}
}

func TestSelectBySchedule_MissingProductSkipped(t *testing.T) {
	now := jstDate(2021, 10, 18)
	products := map[string]*cms.Product{"1": testProduct("1", 10, 0)}

	rows, err := SelectBySchedule(now,
		[]models.NotOperatedLineItem{candidate("1", "2", strPtr("2021-10-late"), strPtr("[]"))},
		products, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected missing product to be skipped, got %d rows", len(rows))
	}
}

func TestSelectBySchedule_NilScheduleDueNow(t *testing.T) {
	now := jstDate(2021, 10, 18)
	products := map[string]*cms.Product{"1": testProduct("1", 10, 0)}

	rows, err := SelectBySchedule(now,
		[]models.NotOperatedLineItem{candidate("1", "1", nil, strPtr("[]"))},
		products, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected immediately due row, got %d", len(rows))
	}
	if rows[0].DeliveryDate != "2021-10-18" {
		t.Fatalf("expected delivery date = now, got %s", rows[0].DeliveryDate)
	}
}

func TestSelectBySchedule_Idempotent(t *testing.T) {
	now := jstDate(2021, 10, 18)
	products := map[string]*cms.Product{"1": testProduct("1", 10, 0)}
	candidates := []models.NotOperatedLineItem{
		candidate("1", "1", strPtr("2021-10-late"), strPtr(`["a", "b"]`)),
		candidate("2", "1", strPtr("unknown"), strPtr("[]")),
	}

	first, err := SelectBySchedule(now, candidates, products, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := SelectBySchedule(now, candidates, products, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("selector output differs across identical invocations")
	}
}

func TestSelectBySchedule_MultiSkuVariantWithoutListFails(t *testing.T) {
	now := jstDate(2021, 10, 18)
	product := testProduct("1", 10, 0)
	product.Variants = []cms.Variant{
		{
			VariantID:     "v1",
			SkuSelectable: 2,
			Skus:          []cms.SKU{{Code: "a"}, {Code: "b"}},
		},
	}
	products := map[string]*cms.Product{"1": product}

	c := candidate("1", "1", strPtr("2021-10-late"), strPtr("[]"))
	c.VariantID = strPtr("v1")

	_, err := SelectBySchedule(now, []models.NotOperatedLineItem{c}, products, testLogger())
	if !errors.Is(err, ErrSKUUnderivable) {
		t.Fatalf("expected ErrSKUUnderivable, got %v", err)
	}
}

func TestSelectBySchedule_SingleSkuVariantFallback(t *testing.T) {
	now := jstDate(2021, 10, 18)
	product := testProduct("1", 10, 0)
	product.Variants = []cms.Variant{
		{
			VariantID:     "v1",
			SkuSelectable: 1,
			Skus:          []cms.SKU{{Code: "only_sku"}},
		},
	}
	products := map[string]*cms.Product{"1": product}

	c := candidate("1", "1", strPtr("2021-10-late"), nil)
	c.VariantID = strPtr("v1")

	rows, err := SelectBySchedule(now, []models.NotOperatedLineItem{c}, products, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].Sku != "only_sku" {
		t.Fatalf("expected fallback to the variant's single sku, got %+v", rows)
	}
}

func TestSelectBySchedule_UnknownVariantSkipped(t *testing.T) {
	now := jstDate(2021, 10, 18)
	products := map[string]*cms.Product{"1": testProduct("1", 10, 0)}

	c := candidate("1", "1", strPtr("2021-10-late"), nil)
	c.VariantID = strPtr("missing")

	rows, err := SelectBySchedule(now, []models.NotOperatedLineItem{c}, products, testLogger())
	if err != nil {
		t.Fatalf("expected recoverable skip, got %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected unknown variant to be skipped, got %d rows", len(rows))
	}
}

func TestSelectByBulkThreshold_Boundary(t *testing.T) {
	now := jstDate(2022, 1, 10)
	products := map[string]*cms.Product{"1": testProduct("1", 3, 5)}

	farFuture := strPtr("2099-1-late")
	var candidates []models.NotOperatedLineItem
	for i := 0; i < 5; i++ {
		candidates = append(candidates, candidate(string(rune('a'+i)), "1", farFuture, strPtr("[]")))
	}

	// Exactly threshold: untouched.
	rows, err := SelectByBulkThreshold(now, candidates, products, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no selection at threshold, got %d", len(rows))
	}

	// Threshold exceeded: the whole group is expanded.
	candidates = append(candidates, candidate("f", "1", farFuture, strPtr("[]")))
	rows, err = SelectByBulkThreshold(now, candidates, products, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected all 6 items selected, got %d", len(rows))
	}
}

func TestSelectByBulkThreshold_GroupsScopedByProduct(t *testing.T) {
	now := jstDate(2022, 1, 10)
	products := map[string]*cms.Product{
		"1": testProduct("1", 3, 1),
		"2": testProduct("2", 3, 5),
	}

	farFuture := strPtr("2099-1-late")
	candidates := []models.NotOperatedLineItem{
		candidate("a", "1", farFuture, strPtr("[]")),
		candidate("b", "1", farFuture, strPtr("[]")),
		candidate("c", "2", farFuture, strPtr("[]")),
	}

	rows, err := SelectByBulkThreshold(now, candidates, products, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected only product 1's group, got %d rows", len(rows))
	}
	for _, row := range rows {
		if row.ProductID != "gid://shopify/Product/1" {
			t.Fatalf("unexpected product in selection: %s", row.ProductID)
		}
	}
}

func TestSelectByBulkThreshold_KeepsScheduleDateAndSentinel(t *testing.T) {
	now := jstDate(2022, 1, 10)
	products := map[string]*cms.Product{"1": testProduct("1", 3, 1)}

	candidates := []models.NotOperatedLineItem{
		candidate("a", "1", strPtr("2099-1-late"), strPtr("[]")),
		candidate("b", "1", strPtr("unknown"), strPtr("[]")),
	}

	rows, err := SelectByBulkThreshold(now, candidates, products, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].DeliveryDate != "2099-01-28" {
		t.Fatalf("expected parsed schedule date, got %s", rows[0].DeliveryDate)
	}
	if rows[1].DeliveryDate != SentinelDeliveryDate {
		t.Fatalf("expected sentinel date, got %s", rows[1].DeliveryDate)
	}
}
