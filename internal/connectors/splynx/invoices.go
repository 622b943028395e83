package splynx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/recsync/internal/connectors"
	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// invoicesPath lists invoices, relative to the API root.
const invoicesPath = "/finance/invoices"

// invoicePayload is the subset of a Splynx invoice the engine maps.
// Splynx serializes money as decimal strings.
type invoicePayload struct {
	ID          json.Number `json:"id"`
	CustomerID  json.Number `json:"customer_id"`
	Number      string      `json:"number"`
	Total       string      `json:"total"`
	Status      string      `json:"status"`
	DateCreated string      `json:"date_created"`
	DateTill    string      `json:"date_till"`
	DateUpdated string      `json:"date_updated"`
}

func (c *Connector) fetchInvoices(ctx context.Context, req driven.PageRequest) (*driven.RecordPage, error) {
	var items []json.RawMessage
	if err := c.client.GetJSON(ctx, invoicesPath, pageQuery(req), &items); err != nil {
		return nil, err
	}

	page := &driven.RecordPage{HasMore: len(items) >= req.Size}
	for _, raw := range items {
		page.Records = append(page.Records, c.mapInvoice(ctx, raw))
	}
	return page, nil
}

func (c *Connector) mapInvoice(ctx context.Context, raw json.RawMessage) domain.SourceRecord {
	rec := domain.SourceRecord{
		EntityType: domain.EntityInvoices,
		Payload:    raw,
	}

	var p invoicePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		rec.MapErr = fmt.Errorf("%w: decode splynx invoice: %w", domain.ErrRecordMapping, err)
		return rec
	}
	if p.ID.String() == "" {
		rec.MapErr = fmt.Errorf("%w: splynx invoice has no id", domain.ErrRecordMapping)
		return rec
	}
	rec.ExternalID = p.ID.String()
	rec.ModifiedAt = parseDateTime(p.DateUpdated)
	if rec.ModifiedAt.IsZero() {
		rec.ModifiedAt = parseDateTime(p.DateCreated)
	}

	amount, err := connectors.ParseCents(p.Total)
	if err != nil {
		rec.MapErr = fmt.Errorf("%w: splynx invoice %s: total: %w", domain.ErrRecordMapping, rec.ExternalID, err)
		return rec
	}

	// The canonical row references the canonical customer, not the Splynx
	// id. An invoice arriving before its customer dead-letters and is
	// retried after the customer has synced.
	customerID, err := c.resolver.ResolveCustomer(ctx, domain.SourceSplynx, p.CustomerID.String())
	if err != nil {
		rec.MapErr = fmt.Errorf("%w: splynx invoice %s: customer %s not synced yet", domain.ErrRecordMapping, rec.ExternalID, p.CustomerID)
		return rec
	}

	rec.Invoice = &domain.Invoice{
		CustomerID: customerID,
		Number:     p.Number,
		Amount:     amount,
		Status:     p.Status,
		IssueDate:  parseDateTime(p.DateCreated),
		DueDate:    parseDateTime(p.DateTill),
	}
	return rec
}
