package erpnext

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/recsync/internal/connectors"
	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// invoiceDoctype is the ERPNext sales invoice document type.
const invoiceDoctype = "Sales Invoice"

var invoiceFields = []string{
	"name", "customer", "grand_total", "currency", "posting_date",
	"due_date", "status", "modified", "custom_splynx_id",
}

// invoiceDoc is the subset of a Sales Invoice the engine maps. Frappe
// serializes money as JSON numbers.
type invoiceDoc struct {
	Name        string  `json:"name"`
	Customer    string  `json:"customer"`
	GrandTotal  float64 `json:"grand_total"`
	Currency    string  `json:"currency"`
	PostingDate string  `json:"posting_date"`
	DueDate     string  `json:"due_date"`
	Status      string  `json:"status"`
	Modified    string  `json:"modified"`
	SplynxID    string  `json:"custom_splynx_id"`
}

func (c *Connector) fetchInvoices(ctx context.Context, req driven.PageRequest) (*driven.RecordPage, error) {
	items, err := c.client.List(ctx, invoiceDoctype, invoiceFields, req)
	if err != nil {
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

	var d invoiceDoc
	if err := json.Unmarshal(raw, &d); err != nil {
		rec.MapErr = fmt.Errorf("%w: decode erpnext invoice: %w", domain.ErrRecordMapping, err)
		return rec
	}
	if d.Name == "" {
		rec.MapErr = fmt.Errorf("%w: erpnext invoice has no name", domain.ErrRecordMapping)
		return rec
	}
	rec.ExternalID = d.Name
	rec.ModifiedAt = parseModified(d.Modified)
	rec.CrossRef = splynxRef(d.SplynxID)

	customerID, err := c.resolver.ResolveCustomer(ctx, domain.SourceERPNext, d.Customer)
	if err != nil {
		rec.MapErr = fmt.Errorf("%w: erpnext invoice %s: customer %s not synced yet", domain.ErrRecordMapping, d.Name, d.Customer)
		return rec
	}

	rec.Invoice = &domain.Invoice{
		CustomerID: customerID,
		Number:     d.Name,
		Amount:     connectors.CentsFromFloat(d.GrandTotal),
		Currency:   d.Currency,
		IssueDate:  parseModified(d.PostingDate),
		DueDate:    parseModified(d.DueDate),
		Status:     d.Status,
	}
	return rec
}
