package operations

import (
	"context"

	"github.com/mkstore/procurement_backend/models"
	"gorm.io/gorm"
)

// gorm-backed collaborators for production runs.

type dbCandidateSource struct {
	db *gorm.DB
}

func (s dbCandidateSource) NotOperatedLineItems(ctx context.Context) ([]models.NotOperatedLineItem, error) {
	return models.NotOperatedLineItems(ctx, s.db)
}

type dbLedgerSink struct {
	db *gorm.DB
}

func (s dbLedgerSink) AppendOperatedLineItems(ctx context.Context, rows []models.OperatedLineItem) error {
	return models.AppendOperatedLineItems(ctx, s.db, rows)
}

// NewRunner wires the production collaborators around the given database
// handle. Pass nil sinks to run selection without side effects.
func NewRunner(db *gorm.DB, products ProductSource, catalog SKUCatalogSource, ledger LedgerSink, tickets TicketSink) Runner {
	if ledger == nil {
		ledger = dbLedgerSink{db: db}
	}
	return Runner{
		Candidates: dbCandidateSource{db: db},
		Products:   products,
		Catalog:    catalog,
		Ledger:     ledger,
		Tickets:    tickets,
	}
}
