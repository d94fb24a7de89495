package cms

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CycleMonthly = "monthly"
	CycleTriple  = "triple"
)

// SKU is one stock-keeping unit as maintained in the content store.
type SKU struct {
	Code    string `json:"code" validate:"required"`
	Name    string `json:"name"`
	SubName string `json:"subName"`
}

// Variant maps a platform variant to its SKUs. SkuSelectable is the number of
// SKU picks a customer makes on this variant; anything above one means the
// chosen SKU codes must have been recorded on the line item at order time.
type Variant struct {
	VariantID     string `json:"variantId" validate:"required"`
	VariantName   string `json:"variantName"`
	Skus          []SKU  `json:"skus" validate:"dive"`
	SkuSelectable int    `json:"skuSelectable"`
}

type CyclePurchase struct {
	Value string `json:"value" validate:"required,oneof=monthly triple"`
	Label string `json:"label"`
}

// CustomSchedule overrides lead-time math for a date range. EndOn is the last
// day of the range (the interval is closed on days, half-open on the
// end-plus-one-day boundary).
type CustomSchedule struct {
	BeginOn          time.Time `json:"beginOn" validate:"required"`
	EndOn            time.Time `json:"endOn" validate:"required"`
	DeliverySchedule string    `json:"deliverySchedule" validate:"required"`
	PurchaseSchedule string    `json:"purchaseSchedule"`
}

// Rule is the per-product procurement configuration.
type Rule struct {
	LeadDays        int              `json:"leadDays" validate:"gte=0"`
	BulkPurchase    int              `json:"bulkPurchase" validate:"gte=0"`
	CyclePurchase   CyclePurchase    `json:"cyclePurchase" validate:"required"`
	CustomSchedules []CustomSchedule `json:"customSchedules" validate:"dive"`
}

// Foundation carries crowd-funding style aggregates maintained manually in
// the content store; order-side aggregates are added on top of these.
type Foundation struct {
	ObjectivePrice decimal.Decimal `json:"objectivePrice"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	Supporter      int64           `json:"supporter"`
	CloseOn        string          `json:"closeOn"`
}

// Product is the content-store product configuration, keyed by the stripped
// platform product id.
type Product struct {
	ID          string     `json:"id" validate:"required"`
	ProductCode string     `json:"productCode"`
	ProductName string     `json:"productName" validate:"required"`
	Variants    []Variant  `json:"variants" validate:"dive"`
	SkuLabel    *string    `json:"skuLabel"`
	Foundation  Foundation `json:"foundation"`
	Rule        Rule       `json:"rule" validate:"required"`
}

// VariantByID returns the variant carrying the given platform variant id, or
// nil when the product has no such variant.
func (p *Product) VariantByID(variantID string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].VariantID == variantID {
			return &p.Variants[i]
		}
	}
	return nil
}

// SKUCatalogFromProducts flattens every variant's SKUs into a code-keyed
// catalog, for callers that render tickets without a live catalog source.
func SKUCatalogFromProducts(products map[string]*Product) map[string]SKU {
	catalog := map[string]SKU{}
	for _, p := range products {
		if p == nil {
			continue
		}
		for _, v := range p.Variants {
			for _, s := range v.Skus {
				if _, ok := catalog[s.Code]; !ok {
					catalog[s.Code] = s
				}
			}
		}
	}
	return catalog
}
