package models

import (
	"github.com/mkstore/procurement_backend/config"
)

// MigrateTable keeps the schema current. orders and line_items are owned by
// the ingestion pipeline in production; migrating them here covers dev and
// test databases.
func MigrateTable() {
	db := config.GetDB()
	if db == nil {
		return
	}
	err := db.AutoMigrate(
		&Order{},
		&LineItem{},
		&OperatedLineItem{},
		&OperationRun{},
	)
	if err != nil {
		config.LogError(config.GetLogger(), "migration.go", "MigrateTable", "Auto migration", nil, err)
	}
}
