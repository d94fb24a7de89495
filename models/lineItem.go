package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LineItem is one unit of a customer order as synced into the analytical
// store. DeliverySchedule and Skus are tokens written at order time:
// DeliverySchedule is a term identifier ("2024-10-late"), the literal
// "unknown", or NULL; Skus is a JSON-encoded list of SKU codes, possibly
// empty. Once set they never change, which is what makes the not-operated
// query a stable idempotence boundary.
type LineItem struct {
	ID                 string          `gorm:"column:id;primaryKey;size:64" json:"id"`
	OrderID            string          `gorm:"size:64;index" json:"orderId"`
	ProductID          string          `gorm:"size:64;index" json:"productId"`
	VariantID          *string         `gorm:"size:64" json:"variantId"`
	Quantity           int             `json:"quantity"`
	OriginalTotalPrice decimal.Decimal `gorm:"type:decimal(18,2)" json:"originalTotalPrice"`
	DeliverySchedule   *string         `gorm:"size:32" json:"deliverySchedule"`
	Skus               *string         `gorm:"size:1024" json:"skus"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func (LineItem) TableName() string {
	return "line_items"
}

// NotOperatedLineItem is a candidate row: a line item joined with its parent
// order, with no matching ledger row yet.
type NotOperatedLineItem struct {
	OrderID          string    `gorm:"column:order_id" json:"orderId"`
	LineItemID       string    `gorm:"column:line_item_id" json:"lineItemId"`
	DeliverySchedule *string   `gorm:"column:delivery_schedule" json:"deliverySchedule"`
	Skus             *string   `gorm:"column:skus" json:"skus"`
	VariantID        *string   `gorm:"column:variant_id" json:"variantId"`
	ProductID        string    `gorm:"column:product_id" json:"productId"`
	Quantity         int       `gorm:"column:quantity" json:"quantity"`
	OrderedAt        time.Time `gorm:"column:ordered_at" json:"orderedAt"`
	OrderName        string    `gorm:"column:order_name" json:"orderName"`
}

// NotOperatedLineItems returns one complete candidate batch. The query is the
// idempotence boundary: anything with a ledger row for the same line-item id,
// or belonging to a cancelled/closed order, never comes back.
func NotOperatedLineItems(ctx context.Context, db *gorm.DB) ([]NotOperatedLineItem, error) {
	var records []NotOperatedLineItem
	err := db.WithContext(ctx).Raw(`
SELECT
  li.order_id,
  li.id AS line_item_id,
  li.delivery_schedule,
  li.skus,
  li.variant_id,
  li.product_id,
  li.quantity,
  o.created_at AS ordered_at,
  o.name AS order_name
FROM line_items li
LEFT JOIN operated_line_items oli
  ON oli.id = li.id
LEFT JOIN orders o
  ON li.order_id = o.id
WHERE oli.id IS NULL
  AND o.cancelled_at IS NULL
  AND o.closed_at IS NULL
ORDER BY li.id`).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ProductFunding is the order-side funding aggregate for one product.
type ProductFunding struct {
	Price      decimal.Decimal `gorm:"column:price" json:"price"`
	Supporters int64           `gorm:"column:supporters" json:"supporters"`
}

// ProductFundingAggregate sums line-item prices and counts distinct orders for
// a product GID. Products with no orders yield zeroes, not an error.
func ProductFundingAggregate(ctx context.Context, db *gorm.DB, productGID string) (ProductFunding, error) {
	var funding ProductFunding
	err := db.WithContext(ctx).Raw(`
SELECT
  IFNULL(SUM(li.original_total_price), 0) AS price,
  COUNT(DISTINCT li.order_id) AS supporters
FROM line_items li
WHERE li.product_id = ?`, productGID).Scan(&funding).Error
	return funding, err
}
