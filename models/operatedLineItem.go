package models

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

const mysqlErrDuplicateEntry = 1062

// OperatedLineItem is one ledger row: proof that a (line item, SKU) pair has
// been routed to procurement. Rows are append-only; nothing in this service
// updates or deletes them. The composite primary key makes an accidental
// overlapping run collapse into duplicate-key noise instead of double rows.
type OperatedLineItem struct {
	ID           string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	Sku          string    `gorm:"column:sku;primaryKey;size:64" json:"sku"`
	OperatedAt   time.Time `json:"operatedAt"`
	DeliveryDate string    `gorm:"size:10" json:"deliveryDate"`
	Quantity     int       `json:"quantity"`
	OrderID      string    `gorm:"size:64" json:"orderId"`
	ProductID    string    `gorm:"size:64;index" json:"productId"`
	VariantID    *string   `gorm:"size:64" json:"variantId"`

	// OrderName rides along for ticket rendering only; it is not persisted.
	OrderName string `gorm:"-" json:"-"`
}

func (OperatedLineItem) TableName() string {
	return "operated_line_items"
}

// AppendOperatedLineItems appends one batch of ledger rows. On a duplicate-key
// failure the batch is retried row by row, skipping rows an overlapping run
// already appended; any other error is returned as-is.
func AppendOperatedLineItems(ctx context.Context, db *gorm.DB, rows []OperatedLineItem) error {
	if len(rows) == 0 {
		return nil
	}
	err := db.WithContext(ctx).CreateInBatches(rows, 500).Error
	if err == nil {
		return nil
	}
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) || mysqlErr.Number != mysqlErrDuplicateEntry {
		return err
	}
	for i := range rows {
		if rerr := db.WithContext(ctx).Create(&rows[i]).Error; rerr != nil {
			if errors.As(rerr, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
				continue
			}
			return rerr
		}
	}
	return nil
}

// DuplicateLedgerPair identifies ledger rows sharing a (line item, SKU) pair,
// which should be impossible while the composite key is in place but can
// exist in stores migrated from the pre-key schema.
type DuplicateLedgerPair struct {
	ID    string `gorm:"column:id" json:"id"`
	Sku   string `gorm:"column:sku" json:"sku"`
	Count int    `gorm:"column:cnt" json:"count"`
}

func FindDuplicateLedgerPairs(ctx context.Context, db *gorm.DB) ([]DuplicateLedgerPair, error) {
	var pairs []DuplicateLedgerPair
	err := db.WithContext(ctx).Raw(`
SELECT id, sku, COUNT(*) AS cnt
FROM operated_line_items
GROUP BY id, sku
HAVING COUNT(*) > 1`).Scan(&pairs).Error
	return pairs, err
}

// RemoveDuplicateLedgerRows keeps the earliest operated_at row of the pair and
// deletes the rest. Returns the number of rows removed.
func RemoveDuplicateLedgerRows(ctx context.Context, db *gorm.DB, pair DuplicateLedgerPair) (int64, error) {
	res := db.WithContext(ctx).Exec(`
DELETE FROM operated_line_items
WHERE id = ? AND sku = ?
  AND operated_at > (
    SELECT min_operated_at FROM (
      SELECT MIN(operated_at) AS min_operated_at
      FROM operated_line_items
      WHERE id = ? AND sku = ?
    ) t
  )`, pair.ID, pair.Sku, pair.ID, pair.Sku)
	return res.RowsAffected, res.Error
}
