package connectors

import (
	"context"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// StoreResolver resolves upstream native ids to canonical row ids by
// looking them up in the record store. Connectors use it while mapping
// child records (an invoice naming its customer, a payment naming its
// invoice) so that the canonical rows carry canonical references, never
// raw upstream ids.
//
// A reference to a record the engine has not seen yet resolves to
// domain.ErrNotFound; the caller turns that into a mapping failure so the
// record dead-letters and is retried once the parent has arrived.
type StoreResolver struct {
	records driven.RecordStore
}

// NewStoreResolver creates a resolver over the canonical record store.
func NewStoreResolver(records driven.RecordStore) *StoreResolver {
	return &StoreResolver{records: records}
}

// ResolveCustomer returns the canonical id of the customer carrying the
// given source-native id.
func (r *StoreResolver) ResolveCustomer(ctx context.Context, source domain.SourceName, externalID string) (string, error) {
	c, err := r.records.GetCustomerByExternalID(ctx, source, externalID)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

// ResolveInvoice returns the canonical id of the invoice carrying the
// given source-native id.
func (r *StoreResolver) ResolveInvoice(ctx context.Context, source domain.SourceName, externalID string) (string, error) {
	inv, err := r.records.GetInvoiceByExternalID(ctx, source, externalID)
	if err != nil {
		return "", err
	}
	return inv.ID, nil
}
