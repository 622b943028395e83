package splynx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// customersPath lists customers, relative to the API root.
const customersPath = "/customers/customer"

// customerPayload is the subset of a Splynx customer the engine maps.
// Splynx serializes ids as numbers or strings depending on version, so
// json.Number absorbs both.
type customerPayload struct {
	ID         json.Number `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Phone      string      `json:"phone"`
	Street     string      `json:"street_1"`
	City       string      `json:"city"`
	ZipCode    string      `json:"zip_code"`
	Status     string      `json:"status"`
	DateAdd    string      `json:"date_add"`
	LastUpdate string      `json:"last_update"`
}

func (c *Connector) fetchCustomers(ctx context.Context, req driven.PageRequest) (*driven.RecordPage, error) {
	var items []json.RawMessage
	if err := c.client.GetJSON(ctx, customersPath, pageQuery(req), &items); err != nil {
		return nil, err
	}

	page := &driven.RecordPage{HasMore: len(items) >= req.Size}
	for _, raw := range items {
		page.Records = append(page.Records, mapCustomer(raw))
	}
	return page, nil
}

// mapCustomer maps one raw customer. Mapping failures are carried on the
// record, never returned: the page continues and the record dead-letters.
func mapCustomer(raw json.RawMessage) domain.SourceRecord {
	rec := domain.SourceRecord{
		EntityType: domain.EntityCustomers,
		Payload:    raw,
	}

	var p customerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		rec.MapErr = fmt.Errorf("%w: decode splynx customer: %w", domain.ErrRecordMapping, err)
		return rec
	}
	if p.ID.String() == "" {
		rec.MapErr = fmt.Errorf("%w: splynx customer has no id", domain.ErrRecordMapping)
		return rec
	}

	rec.ExternalID = p.ID.String()
	rec.ModifiedAt = parseDateTime(p.LastUpdate)
	if rec.ModifiedAt.IsZero() {
		rec.ModifiedAt = parseDateTime(p.DateAdd)
	}
	rec.Customer = &domain.Customer{
		Name:    p.Name,
		Email:   p.Email,
		Phone:   p.Phone,
		Address: joinAddress(p.Street, p.City, p.ZipCode),
	}
	return rec
}

// joinAddress flattens the Splynx address fields into the canonical
// single-line form.
func joinAddress(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
