package chatwoot

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Resolver maps upstream parent references onto canonical row ids during
// mapping. Satisfied by connectors.StoreResolver.
type Resolver interface {
	ResolveCustomer(ctx context.Context, source domain.SourceName, externalID string) (string, error)
}

// Connector fetches support records from Chatwoot.
type Connector struct {
	client   *Client
	resolver Resolver
}

// New creates a Chatwoot connector.
func New(cfg domain.SourceConfig, resolver Resolver) *Connector {
	return &Connector{
		client:   NewClient(cfg),
		resolver: resolver,
	}
}

// Source returns the source identifier.
func (c *Connector) Source() domain.SourceName {
	return domain.SourceChatwoot
}

// EntityTypes returns the entities Chatwoot provides, in sync order.
// Conversations reference contacts, so contacts go first.
func (c *Connector) EntityTypes() []domain.EntityType {
	return []domain.EntityType{domain.EntityCustomers, domain.EntityTickets}
}

// Capabilities describes the Chatwoot API shape: server-chosen page
// size, position carried as a continuation token, no modified filter.
func (c *Connector) Capabilities(domain.EntityType) driven.SourceCapabilities {
	return driven.SourceCapabilities{UsesContinuationToken: true}
}

// TestConnection fetches the first contacts page.
func (c *Connector) TestConnection(ctx context.Context) bool {
	var env contactsEnvelope
	q := url.Values{}
	q.Set("page", "1")
	return c.client.GetJSON(ctx, contactsPath, q, &env) == nil
}

// FetchPage fetches and maps one page of records.
func (c *Connector) FetchPage(ctx context.Context, entityType domain.EntityType, req driven.PageRequest) (*driven.RecordPage, error) {
	switch entityType {
	case domain.EntityCustomers:
		return c.fetchContacts(ctx, req)
	case domain.EntityTickets:
		return c.fetchConversations(ctx, req)
	}
	return nil, fmt.Errorf("%w: chatwoot does not provide %s", domain.ErrInvalidInput, entityType)
}

// pageFromCursor decodes the continuation token back into the Chatwoot
// page number. An absent or mangled token restarts at page one.
func pageFromCursor(cursor string) int {
	if n, err := strconv.Atoi(cursor); err == nil && n > 0 {
		return n
	}
	return 1
}

// nextCursor encodes the following page as the continuation token.
func nextCursor(page int) string {
	return strconv.Itoa(page + 1)
}
