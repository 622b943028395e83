package splynx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/recsync/internal/connectors"
	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// paymentsPath lists payments, relative to the API root.
const paymentsPath = "/finance/payments"

// paymentPayload is the subset of a Splynx payment the engine maps.
type paymentPayload struct {
	ID          json.Number `json:"id"`
	CustomerID  json.Number `json:"customer_id"`
	InvoiceID   json.Number `json:"invoice_id"`
	Amount      string      `json:"amount"`
	Date        string      `json:"date"`
	PaymentType string      `json:"payment_type"`
	DateAdd     string      `json:"date_add"`
}

func (c *Connector) fetchPayments(ctx context.Context, req driven.PageRequest) (*driven.RecordPage, error) {
	var items []json.RawMessage
	if err := c.client.GetJSON(ctx, paymentsPath, pageQuery(req), &items); err != nil {
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

	var p paymentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		rec.MapErr = fmt.Errorf("%w: decode splynx payment: %w", domain.ErrRecordMapping, err)
		return rec
	}
	if p.ID.String() == "" {
		rec.MapErr = fmt.Errorf("%w: splynx payment has no id", domain.ErrRecordMapping)
		return rec
	}
	rec.ExternalID = p.ID.String()
	rec.ModifiedAt = parseDateTime(p.DateAdd)
	if rec.ModifiedAt.IsZero() {
		rec.ModifiedAt = parseDateTime(p.Date)
	}

	amount, err := connectors.ParseCents(p.Amount)
	if err != nil {
		rec.MapErr = fmt.Errorf("%w: splynx payment %s: amount: %w", domain.ErrRecordMapping, rec.ExternalID, err)
		return rec
	}

	customerID, err := c.resolver.ResolveCustomer(ctx, domain.SourceSplynx, p.CustomerID.String())
	if err != nil {
		rec.MapErr = fmt.Errorf("%w: splynx payment %s: customer %s not synced yet", domain.ErrRecordMapping, rec.ExternalID, p.CustomerID)
		return rec
	}

	// A payment may predate invoicing ("0" or absent invoice_id); those
	// stay unlinked. A reference to an invoice the engine has not seen
	// yet dead-letters like the customer case above.
	var invoiceID string
	if ref := p.InvoiceID.String(); ref != "" && ref != "0" {
		invoiceID, err = c.resolver.ResolveInvoice(ctx, domain.SourceSplynx, ref)
		if err != nil {
			rec.MapErr = fmt.Errorf("%w: splynx payment %s: invoice %s not synced yet", domain.ErrRecordMapping, rec.ExternalID, ref)
			return rec
		}
	}

	rec.Payment = &domain.Payment{
		CustomerID: customerID,
		InvoiceID:  invoiceID,
		Amount:     amount,
		PaidAt:     parseDateTime(p.Date),
		Method:     p.PaymentType,
	}
	return rec
}
