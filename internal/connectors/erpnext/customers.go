package erpnext

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// customerDoctype is the ERPNext customer document type.
const customerDoctype = "Customer"

// customerFields is what the list API is asked to return.
var customerFields = []string{
	"name", "customer_name", "email_id", "mobile_no", "primary_address",
	"modified", "custom_splynx_id",
}

// customerDoc is the subset of an ERPNext Customer the engine maps. The
// document name doubles as its id.
type customerDoc struct {
	Name           string `json:"name"`
	CustomerName   string `json:"customer_name"`
	EmailID        string `json:"email_id"`
	MobileNo       string `json:"mobile_no"`
	PrimaryAddress string `json:"primary_address"`
	Modified       string `json:"modified"`
	SplynxID       string `json:"custom_splynx_id"`
}

func (c *Connector) fetchCustomers(ctx context.Context, req driven.PageRequest) (*driven.RecordPage, error) {
	items, err := c.client.List(ctx, customerDoctype, customerFields, req)
	if err != nil {
		return nil, err
	}

	page := &driven.RecordPage{HasMore: len(items) >= req.Size}
	for _, raw := range items {
		page.Records = append(page.Records, mapCustomer(raw))
	}
	return page, nil
}

func mapCustomer(raw json.RawMessage) domain.SourceRecord {
	rec := domain.SourceRecord{
		EntityType: domain.EntityCustomers,
		Payload:    raw,
	}

	var d customerDoc
	if err := json.Unmarshal(raw, &d); err != nil {
		rec.MapErr = fmt.Errorf("%w: decode erpnext customer: %w", domain.ErrRecordMapping, err)
		return rec
	}
	if d.Name == "" {
		rec.MapErr = fmt.Errorf("%w: erpnext customer has no name", domain.ErrRecordMapping)
		return rec
	}

	rec.ExternalID = d.Name
	rec.ModifiedAt = parseModified(d.Modified)
	rec.CrossRef = splynxRef(d.SplynxID)
	rec.Customer = &domain.Customer{
		Name:    d.CustomerName,
		Email:   d.EmailID,
		Phone:   d.MobileNo,
		Address: d.PrimaryAddress,
	}
	return rec
}
