package erpnext

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/recsync/internal/connectors"
	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// paymentDoctype is the ERPNext payment entry document type.
const paymentDoctype = "Payment Entry"

var paymentFields = []string{
	"name", "party", "paid_amount", "paid_from_account_currency",
	"posting_date", "mode_of_payment", "modified", "custom_splynx_id",
	"custom_splynx_invoice_id",
}

// paymentDoc is the subset of a Payment Entry the engine maps. The custom
// Splynx invoice id carries the invoice linkage: the Frappe list API
// cannot return the child reference table, so the integration mirrors the
// invoice reference into a flat custom field.
type paymentDoc struct {
	Name            string  `json:"name"`
	Party           string  `json:"party"`
	PaidAmount      float64 `json:"paid_amount"`
	Currency        string  `json:"paid_from_account_currency"`
	PostingDate     string  `json:"posting_date"`
	ModeOfPayment   string  `json:"mode_of_payment"`
	Modified        string  `json:"modified"`
	SplynxID        string  `json:"custom_splynx_id"`
	SplynxInvoiceID string  `json:"custom_splynx_invoice_id"`
}

func (c *Connector) fetchPayments(ctx context.Context, req driven.PageRequest) (*driven.RecordPage, error) {
	items, err := c.client.List(ctx, paymentDoctype, paymentFields, req)
	if err != nil {
		return nil, err
	}

	page := &driven.RecordPage{HasMore: len(items) >= req.Size}
	for _, raw := range items {
		page.Records = append(page.Records, c.mapPayment(ctx, raw))
	}
	return page, nil
}

func (c *Connector) mapPayment(ctx context.Context, raw json.RawMessage) domain.SourceRecord {
	rec := domain.SourceRecord{
		EntityType: domain.EntityPayments,
		Payload:    raw,
	}

	var d paymentDoc
	if err := json.Unmarshal(raw, &d); err != nil {
		rec.MapErr = fmt.Errorf("%w: decode erpnext payment: %w", domain.ErrRecordMapping, err)
		return rec
	}
	if d.Name == "" {
		rec.MapErr = fmt.Errorf("%w: erpnext payment has no name", domain.ErrRecordMapping)
		return rec
	}
	rec.ExternalID = d.Name
	rec.ModifiedAt = parseModified(d.Modified)
	rec.CrossRef = splynxRef(d.SplynxID)

	customerID, err := c.resolver.ResolveCustomer(ctx, domain.SourceERPNext, d.Party)
	if err != nil {
		rec.MapErr = fmt.Errorf("%w: erpnext payment %s: customer %s not synced yet", domain.ErrRecordMapping, d.Name, d.Party)
		return rec
	}

	// Invoice linkage goes through the Splynx invoice id both systems
	// share; Splynx syncs first, so the canonical invoice already carries
	// it.
	var invoiceID string
	if d.SplynxInvoiceID != "" {
		invoiceID, err = c.resolver.ResolveInvoice(ctx, domain.SourceSplynx, d.SplynxInvoiceID)
		if err != nil {
			rec.MapErr = fmt.Errorf("%w: erpnext payment %s: invoice %s not synced yet", domain.ErrRecordMapping, d.Name, d.SplynxInvoiceID)
			return rec
		}
	}

	rec.Payment = &domain.Payment{
		CustomerID: customerID,
		InvoiceID:  invoiceID,
		Amount:     connectors.CentsFromFloat(d.PaidAmount),
		Currency:   d.Currency,
		PaidAt:     parseModified(d.PostingDate),
		Method:     d.ModeOfPayment,
	}
	return rec
}
