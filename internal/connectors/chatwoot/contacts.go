package chatwoot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// contactsPath lists contacts, relative to the account root.
const contactsPath = "/contacts"

// contactsEnvelope is the contacts list response.
type contactsEnvelope struct {
	Payload []json.RawMessage `json:"payload"`
}

// contactPayload is the subset of a Chatwoot contact the engine maps.
// Timestamps are Unix seconds. A splynx_id custom attribute, when the
// helpdesk operators maintain one, becomes an explicit cross-reference;
// otherwise contacts link to billing customers through the email soft
// match.
type contactPayload struct {
	ID               json.Number       `json:"id"`
	Name             string            `json:"name"`
	Email            string            `json:"email"`
	PhoneNumber      string            `json:"phone_number"`
	CreatedAt        int64             `json:"created_at"`
	LastActivityAt   int64             `json:"last_activity_at"`
	CustomAttributes map[string]string `json:"custom_attributes"`
}

func (c *Connector) fetchContacts(ctx context.Context, req driven.PageRequest) (*driven.RecordPage, error) {
	pageNo := pageFromCursor(req.Cursor)
	q := url.Values{}
	q.Set("page", strconv.Itoa(pageNo))
	q.Set("sort", "name")

	var env contactsEnvelope
	if err := c.client.GetJSON(ctx, contactsPath, q, &env); err != nil {
		return nil, err
	}

	page := &driven.RecordPage{HasMore: len(env.Payload) > 0}
	if page.HasMore {
		page.NextCursor = nextCursor(pageNo)
	}
	for _, raw := range env.Payload {
		page.Records = append(page.Records, mapContact(raw))
	}
	return page, nil
}

func mapContact(raw json.RawMessage) domain.SourceRecord {
	rec := domain.SourceRecord{
		EntityType: domain.EntityCustomers,
		Payload:    raw,
	}

	var p contactPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		rec.MapErr = fmt.Errorf("%w: decode chatwoot contact: %w", domain.ErrRecordMapping, err)
		return rec
	}
	if p.ID.String() == "" {
		rec.MapErr = fmt.Errorf("%w: chatwoot contact has no id", domain.ErrRecordMapping)
		return rec
	}

	rec.ExternalID = p.ID.String()
	rec.ModifiedAt = unixTime(p.LastActivityAt)
	if rec.ModifiedAt.IsZero() {
		rec.ModifiedAt = unixTime(p.CreatedAt)
	}
	if id := p.CustomAttributes["splynx_id"]; id != "" {
		rec.CrossRef = &domain.CrossRef{Source: domain.SourceSplynx, ExternalID: id}
	}
	rec.Customer = &domain.Customer{
		Name:  p.Name,
		Email: p.Email,
		Phone: p.PhoneNumber,
	}
	return rec
}
