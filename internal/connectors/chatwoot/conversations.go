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

// conversationsPath lists conversations, relative to the account root.
const conversationsPath = "/conversations"

// conversationsEnvelope is the conversations list response. Unlike
// contacts, Chatwoot nests this one under a data key.
type conversationsEnvelope struct {
	Data struct {
		Payload []json.RawMessage `json:"payload"`
	} `json:"data"`
}

// conversationPayload is the subset of a Chatwoot conversation the engine
// maps. The contact reference sits inside the meta sender.
type conversationPayload struct {
	ID       json.Number `json:"id"`
	Status   string      `json:"status"`
	Priority string      `json:"priority"`
	Meta     struct {
		Sender struct {
			ID json.Number `json:"id"`
		} `json:"sender"`
	} `json:"meta"`
	AdditionalAttributes map[string]any `json:"additional_attributes"`
	CreatedAt            int64          `json:"created_at"`
	LastActivityAt       int64          `json:"last_activity_at"`
}

func (c *Connector) fetchConversations(ctx context.Context, req driven.PageRequest) (*driven.RecordPage, error) {
	pageNo := pageFromCursor(req.Cursor)
	q := url.Values{}
	q.Set("page", strconv.Itoa(pageNo))
	q.Set("status", "all")
	q.Set("sort_by", "last_activity_at_asc")

	var env conversationsEnvelope
	if err := c.client.GetJSON(ctx, conversationsPath, q, &env); err != nil {
		return nil, err
	}

	page := &driven.RecordPage{HasMore: len(env.Data.Payload) > 0}
	if page.HasMore {
		page.NextCursor = nextCursor(pageNo)
	}
	for _, raw := range env.Data.Payload {
		page.Records = append(page.Records, c.mapConversation(ctx, raw))
	}
	return page, nil
}

func (c *Connector) mapConversation(ctx context.Context, raw json.RawMessage) domain.SourceRecord {
	rec := domain.SourceRecord{
		EntityType: domain.EntityTickets,
		Payload:    raw,
	}

	var p conversationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		rec.MapErr = fmt.Errorf("%w: decode chatwoot conversation: %w", domain.ErrRecordMapping, err)
		return rec
	}
	if p.ID.String() == "" {
		rec.MapErr = fmt.Errorf("%w: chatwoot conversation has no id", domain.ErrRecordMapping)
		return rec
	}
	rec.ExternalID = p.ID.String()
	rec.ModifiedAt = unixTime(p.LastActivityAt)
	if rec.ModifiedAt.IsZero() {
		rec.ModifiedAt = unixTime(p.CreatedAt)
	}

	contactID := p.Meta.Sender.ID.String()
	if contactID == "" {
		rec.MapErr = fmt.Errorf("%w: chatwoot conversation %s has no contact", domain.ErrRecordMapping, rec.ExternalID)
		return rec
	}
	customerID, err := c.resolver.ResolveCustomer(ctx, domain.SourceChatwoot, contactID)
	if err != nil {
		rec.MapErr = fmt.Errorf("%w: chatwoot conversation %s: contact %s not synced yet", domain.ErrRecordMapping, rec.ExternalID, contactID)
		return rec
	}

	subject, _ := p.AdditionalAttributes["subject"].(string)
	if subject == "" {
		subject = "Conversation #" + rec.ExternalID
	}

	rec.Ticket = &domain.Ticket{
		CustomerID:     customerID,
		Subject:        subject,
		Status:         p.Status,
		Priority:       p.Priority,
		OpenedAt:       unixTime(p.CreatedAt),
		LastActivityAt: unixTime(p.LastActivityAt),
	}
	return rec
}
