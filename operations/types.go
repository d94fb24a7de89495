package operations

import (
	"context"
	"strings"
	"time"

	"github.com/mkstore/procurement_backend/cms"
	"github.com/mkstore/procurement_backend/models"
	"github.com/mkstore/procurement_backend/tracker"
)

// External collaborators, injected into the Runner so a run's dependencies
// have a bounded lifetime and tests can substitute fakes.

// CandidateSource yields one complete batch of not-yet-operated line items.
// The source owns the idempotence filter: anything with an existing ledger row
// or a cancelled/closed order never shows up.
type CandidateSource interface {
	NotOperatedLineItems(ctx context.Context) ([]models.NotOperatedLineItem, error)
}

// ProductSource resolves a stripped platform product id to its procurement
// configuration. Must report missing products via utils.ErrorRecordNotFound,
// not a hard failure.
type ProductSource interface {
	Product(ctx context.Context, productID string) (*cms.Product, error)
}

// SKUCatalogSource lists SKU display data for ticket rendering.
type SKUCatalogSource interface {
	SKUCatalog(ctx context.Context) (map[string]cms.SKU, error)
}

// LedgerSink appends operated-line-item rows. Append-only by contract.
type LedgerSink interface {
	AppendOperatedLineItems(ctx context.Context, rows []models.OperatedLineItem) error
}

// TicketSink accepts one composed purchasing ticket.
type TicketSink interface {
	CreateTicket(ctx context.Context, t tracker.Ticket) error
}

// OperationPubSubPayload is the message body driving one reconciliation run.
type OperationPubSubPayload struct {
	RunId         uint   `json:"run_id"`
	CorrelationId string `json:"correlation_id"`
}

// PubSubPushEnvelope is the push-subscription wrapper around a message.
type PubSubPushEnvelope struct {
	Message struct {
		Data      []byte `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// RunResponse is the HTTP shape of one operation run.
type RunResponse struct {
	ID                 uint    `json:"id"`
	CorrelationId      string  `json:"correlationId"`
	Status             string  `json:"status"`
	TriggeredBy        string  `json:"triggeredBy"`
	StartedAt          *string `json:"startedAt"`
	FinishedAt         *string `json:"finishedAt"`
	DurationMs         int64   `json:"durationMs"`
	CandidateCount     int     `json:"candidateCount"`
	OperatedBySchedule int     `json:"operatedBySchedule"`
	OperatedByBulk     int     `json:"operatedByBulk"`
	TicketsCreated     int     `json:"ticketsCreated"`
	ErrorCount         int     `json:"errorCount"`
	LastError          string  `json:"lastError,omitempty"`
}

type RunHistoryResponse struct {
	Items []RunResponse `json:"items"`
}

// Platform GID prefixes. Stored identifiers keep the full GID; external
// lookups and admin links use the stripped numeric tail.

func StripProductGID(id string) string {
	return strings.TrimPrefix(id, "gid://shopify/Product/")
}

func StripVariantGID(id string) string {
	return strings.TrimPrefix(id, "gid://shopify/ProductVariant/")
}

func StripOrderGID(id string) string {
	return strings.TrimPrefix(id, "gid://shopify/Order/")
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
