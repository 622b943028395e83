package erpnext

import (
	"context"
	"fmt"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Resolver maps upstream parent references onto canonical row ids during
// mapping. Satisfied by connectors.StoreResolver.
type Resolver interface {
	ResolveCustomer(ctx context.Context, source domain.SourceName, externalID string) (string, error)
	ResolveInvoice(ctx context.Context, source domain.SourceName, externalID string) (string, error)
}

// Connector fetches accounting records from ERPNext.
type Connector struct {
	client   *Client
	resolver Resolver
}

// New creates an ERPNext connector.
func New(cfg domain.SourceConfig, resolver Resolver) *Connector {
	return &Connector{
		client:   NewClient(cfg),
		resolver: resolver,
	}
}

// Source returns the source identifier.
func (c *Connector) Source() domain.SourceName {
	return domain.SourceERPNext
}

// EntityTypes returns the entities ERPNext provides, in sync order.
func (c *Connector) EntityTypes() []domain.EntityType {
	return []domain.EntityType{domain.EntityCustomers, domain.EntityInvoices, domain.EntityPayments}
}

// Capabilities describes the Frappe list API shape: limit_start
// pagination with a server-side modified filter on every doctype.
func (c *Connector) Capabilities(domain.EntityType) driven.SourceCapabilities {
	return driven.SourceCapabilities{SupportsModifiedSince: true}
}

// TestConnection performs a cheap authenticated call.
func (c *Connector) TestConnection(ctx context.Context) bool {
	return c.client.Ping(ctx) == nil
}

// FetchPage fetches and maps one page of records.
func (c *Connector) FetchPage(ctx context.Context, entityType domain.EntityType, req driven.PageRequest) (*driven.RecordPage, error) {
	switch entityType {
	case domain.EntityCustomers:
		return c.fetchCustomers(ctx, req)
	case domain.EntityInvoices:
		return c.fetchInvoices(ctx, req)
	case domain.EntityPayments:
		return c.fetchPayments(ctx, req)
	}
	return nil, fmt.Errorf("%w: erpnext does not provide %s", domain.ErrInvalidInput, entityType)
}

// splynxRef builds the cross-reference for a document whose custom Splynx
// id field is populated. Nil when the field is empty.
func splynxRef(id string) *domain.CrossRef {
	if id == "" {
		return nil
	}
	return &domain.CrossRef{Source: domain.SourceSplynx, ExternalID: id}
}
