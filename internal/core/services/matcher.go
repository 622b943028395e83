package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
	"github.com/custodia-labs/recsync/internal/logger"
)

// Applied describes what an upsert did to the canonical store.
type Applied int

const (
	AppliedCreated Applied = iota
	AppliedUpdated
)

// RunContext tracks which canonical rows have already been claimed during
// one adapter run, so a soft-match candidate is never claimed twice by two
// records in the same batch. It is explicit state passed into the matcher,
// scoped to the run.
type RunContext struct {
	claimed map[string]struct{}
}

// NewRunContext creates an empty run context.
func NewRunContext() *RunContext {
	return &RunContext{claimed: make(map[string]struct{})}
}

func runKey(et domain.EntityType, id string) string {
	return string(et) + ":" + id
}

// Claimed reports whether a canonical row was already claimed in this run.
func (rc *RunContext) Claimed(et domain.EntityType, id string) bool {
	_, ok := rc.claimed[runKey(et, id)]
	return ok
}

// Claim marks a canonical row as claimed for this run.
func (rc *RunContext) Claim(et domain.EntityType, id string) {
	rc.claimed[runKey(et, id)] = struct{}{}
}

// Matcher decides, for each incoming upstream record, which canonical row
// it refers to, and reconciles duplicates that arise when one real-world
// entity is observed independently by two sources.
//
// Matching priority, first hit wins:
//
//  1. Exact match on the adapter's own external id already stored on a
//     canonical row.
//  2. The incoming record's explicit cross-reference to another source's
//     native id.
//  3. Soft match on correlated attributes (same parent, same amount, same
//     calendar date for invoices and payments; same email for customers),
//     only against rows that have no id yet for the current source.
type Matcher struct {
	records driven.RecordStore
	now     func() time.Time
}

// NewMatcher creates a matcher over the canonical record store.
func NewMatcher(records driven.RecordStore) *Matcher {
	return &Matcher{records: records, now: time.Now}
}

// Upsert applies one mapped upstream record to the canonical store,
// returning whether a row was created or updated. Per-record failures are
// returned for the caller to dead-letter; the matcher never aborts a page.
func (m *Matcher) Upsert(ctx context.Context, source domain.SourceName, rec *domain.SourceRecord, run *RunContext) (Applied, error) {
	switch rec.EntityType {
	case domain.EntityCustomers:
		return m.upsertCustomer(ctx, source, rec, run)
	case domain.EntityInvoices:
		return m.upsertInvoice(ctx, source, rec, run)
	case domain.EntityPayments:
		return m.upsertPayment(ctx, source, rec, run)
	case domain.EntityTickets:
		return m.upsertTicket(ctx, source, rec, run)
	}
	return 0, fmt.Errorf("%w: unknown entity type %q", domain.ErrRecordMapping, rec.EntityType)
}

// logLinkageConflict records the same-id collision policy outcome: the
// cross-reference points at one row but the adapter's own id is already
// stored on a different one, and the pre-existing own-id row wins,
// preserving referential integrity already pointed at it. Logged, never
// fatal.
func logLinkageConflict(source domain.SourceName, et domain.EntityType, externalID, keptID, otherID string) {
	logger.Warn("%v: %s %s id %s already on row %s, cross-reference resolves to row %s; keeping existing row",
		domain.ErrLinkageConflict, et, source, externalID, keptID, otherID)
}

func (m *Matcher) upsertCustomer(ctx context.Context, source domain.SourceName, rec *domain.SourceRecord, run *RunContext) (Applied, error) {
	in := rec.Customer
	if in == nil {
		return 0, fmt.Errorf("%w: customer record missing body", domain.ErrRecordMapping)
	}

	own, err := m.records.GetCustomerByExternalID(ctx, source, rec.ExternalID)
	if err != nil && !isNotFound(err) {
		return 0, err
	}

	var xref *domain.Customer
	if rec.CrossRef != nil {
		xref, err = m.records.GetCustomerByExternalID(ctx, rec.CrossRef.Source, rec.CrossRef.ExternalID)
		if err != nil && !isNotFound(err) {
			return 0, err
		}
	}

	switch {
	case own != nil && xref != nil && own.ID != xref.ID:
		if pureSource(own.ExternalIDs, source) {
			// Duplicate created from this source alone before the
			// cross-reference resolved: merge it into the canonical row.
			if err := m.records.MergeCustomers(ctx, xref.ID, own.ID); err != nil {
				return 0, err
			}
			mergeCustomer(xref, in)
			xref.ExternalIDs.Set(source, rec.ExternalID)
			run.Claim(domain.EntityCustomers, xref.ID)
			return AppliedUpdated, m.records.SaveCustomer(ctx, xref)
		}
		logLinkageConflict(source, domain.EntityCustomers, rec.ExternalID, own.ID, xref.ID)
		fallthrough

	case own != nil:
		mergeCustomer(own, in)
		own.ExternalIDs.Set(source, rec.ExternalID)
		run.Claim(domain.EntityCustomers, own.ID)
		return AppliedUpdated, m.records.SaveCustomer(ctx, own)

	case xref != nil:
		mergeCustomer(xref, in)
		xref.ExternalIDs.Set(source, rec.ExternalID)
		run.Claim(domain.EntityCustomers, xref.ID)
		return AppliedUpdated, m.records.SaveCustomer(ctx, xref)
	}

	// Soft match: same email, no id yet for the current source.
	if in.Email != "" {
		soft, err := m.records.FindCustomerByEmail(ctx, in.Email, source)
		if err != nil && !isNotFound(err) {
			return 0, err
		}
		if soft != nil && !run.Claimed(domain.EntityCustomers, soft.ID) {
			mergeCustomer(soft, in)
			soft.ExternalIDs.Set(source, rec.ExternalID)
			run.Claim(domain.EntityCustomers, soft.ID)
			return AppliedUpdated, m.records.SaveCustomer(ctx, soft)
		}
	}

	now := m.now()
	in.ID = domain.NewID()
	in.ExternalIDs.Set(source, rec.ExternalID)
	in.CreatedAt = now
	in.UpdatedAt = now
	run.Claim(domain.EntityCustomers, in.ID)
	return AppliedCreated, m.records.SaveCustomer(ctx, in)
}

func (m *Matcher) upsertInvoice(ctx context.Context, source domain.SourceName, rec *domain.SourceRecord, run *RunContext) (Applied, error) {
	in := rec.Invoice
	if in == nil {
		return 0, fmt.Errorf("%w: invoice record missing body", domain.ErrRecordMapping)
	}

	own, err := m.records.GetInvoiceByExternalID(ctx, source, rec.ExternalID)
	if err != nil && !isNotFound(err) {
		return 0, err
	}

	var xref *domain.Invoice
	if rec.CrossRef != nil {
		xref, err = m.records.GetInvoiceByExternalID(ctx, rec.CrossRef.Source, rec.CrossRef.ExternalID)
		if err != nil && !isNotFound(err) {
			return 0, err
		}
	}

	switch {
	case own != nil && xref != nil && own.ID != xref.ID:
		if pureSource(own.ExternalIDs, source) {
			// The pure-source duplicate loses: re-home its payments onto
			// the cross-referenced row and delete it, then claim the
			// winner. The merge and the winner's save join the store's
			// batch transaction and commit together, so no intermediate
			// state is ever durable.
			if err := m.records.MergeInvoices(ctx, xref.ID, own.ID); err != nil {
				return 0, err
			}
			mergeInvoice(xref, in)
			xref.ExternalIDs.Set(source, rec.ExternalID)
			run.Claim(domain.EntityInvoices, xref.ID)
			return AppliedUpdated, m.records.SaveInvoice(ctx, xref)
		}
		logLinkageConflict(source, domain.EntityInvoices, rec.ExternalID, own.ID, xref.ID)
		fallthrough

	case own != nil:
		mergeInvoice(own, in)
		own.ExternalIDs.Set(source, rec.ExternalID)
		run.Claim(domain.EntityInvoices, own.ID)
		return AppliedUpdated, m.records.SaveInvoice(ctx, own)

	case xref != nil:
		mergeInvoice(xref, in)
		xref.ExternalIDs.Set(source, rec.ExternalID)
		run.Claim(domain.EntityInvoices, xref.ID)
		return AppliedUpdated, m.records.SaveInvoice(ctx, xref)
	}

	// Soft match: same customer, same amount, same calendar date, no id
	// yet for the current source.
	if in.CustomerID != "" {
		soft, err := m.records.FindInvoiceSoftMatch(ctx, in.CustomerID, in.Amount, in.IssueDate, source)
		if err != nil && !isNotFound(err) {
			return 0, err
		}
		if soft != nil && !run.Claimed(domain.EntityInvoices, soft.ID) {
			mergeInvoice(soft, in)
			soft.ExternalIDs.Set(source, rec.ExternalID)
			run.Claim(domain.EntityInvoices, soft.ID)
			return AppliedUpdated, m.records.SaveInvoice(ctx, soft)
		}
	}

	now := m.now()
	in.ID = domain.NewID()
	in.ExternalIDs.Set(source, rec.ExternalID)
	in.CreatedAt = now
	in.UpdatedAt = now
	run.Claim(domain.EntityInvoices, in.ID)
	return AppliedCreated, m.records.SaveInvoice(ctx, in)
}

func (m *Matcher) upsertPayment(ctx context.Context, source domain.SourceName, rec *domain.SourceRecord, run *RunContext) (Applied, error) {
	in := rec.Payment
	if in == nil {
		return 0, fmt.Errorf("%w: payment record missing body", domain.ErrRecordMapping)
	}

	own, err := m.records.GetPaymentByExternalID(ctx, source, rec.ExternalID)
	if err != nil && !isNotFound(err) {
		return 0, err
	}

	var xref *domain.Payment
	if rec.CrossRef != nil {
		xref, err = m.records.GetPaymentByExternalID(ctx, rec.CrossRef.Source, rec.CrossRef.ExternalID)
		if err != nil && !isNotFound(err) {
			return 0, err
		}
	}

	switch {
	case own != nil && xref != nil && own.ID != xref.ID:
		logLinkageConflict(source, domain.EntityPayments, rec.ExternalID, own.ID, xref.ID)
		fallthrough

	case own != nil:
		mergePayment(own, in)
		own.ExternalIDs.Set(source, rec.ExternalID)
		run.Claim(domain.EntityPayments, own.ID)
		return AppliedUpdated, m.records.SavePayment(ctx, own)

	case xref != nil:
		mergePayment(xref, in)
		xref.ExternalIDs.Set(source, rec.ExternalID)
		run.Claim(domain.EntityPayments, xref.ID)
		return AppliedUpdated, m.records.SavePayment(ctx, xref)
	}

	if in.CustomerID != "" {
		soft, err := m.records.FindPaymentSoftMatch(ctx, in.CustomerID, in.Amount, in.PaidAt, source)
		if err != nil && !isNotFound(err) {
			return 0, err
		}
		if soft != nil && !run.Claimed(domain.EntityPayments, soft.ID) {
			mergePayment(soft, in)
			soft.ExternalIDs.Set(source, rec.ExternalID)
			run.Claim(domain.EntityPayments, soft.ID)
			return AppliedUpdated, m.records.SavePayment(ctx, soft)
		}
	}

	now := m.now()
	in.ID = domain.NewID()
	in.ExternalIDs.Set(source, rec.ExternalID)
	in.CreatedAt = now
	in.UpdatedAt = now
	run.Claim(domain.EntityPayments, in.ID)
	return AppliedCreated, m.records.SavePayment(ctx, in)
}

func (m *Matcher) upsertTicket(ctx context.Context, source domain.SourceName, rec *domain.SourceRecord, run *RunContext) (Applied, error) {
	in := rec.Ticket
	if in == nil {
		return 0, fmt.Errorf("%w: ticket record missing body", domain.ErrRecordMapping)
	}

	own, err := m.records.GetTicketByExternalID(ctx, source, rec.ExternalID)
	if err != nil && !isNotFound(err) {
		return 0, err
	}

	if own != nil {
		mergeTicket(own, in)
		own.ExternalIDs.Set(source, rec.ExternalID)
		run.Claim(domain.EntityTickets, own.ID)
		return AppliedUpdated, m.records.SaveTicket(ctx, own)
	}

	now := m.now()
	in.ID = domain.NewID()
	in.ExternalIDs.Set(source, rec.ExternalID)
	in.CreatedAt = now
	in.UpdatedAt = now
	run.Claim(domain.EntityTickets, in.ID)
	return AppliedCreated, m.records.SaveTicket(ctx, in)
}

// pureSource reports whether a row carries only the given source's id,
// i.e. it was created from that source alone and never cross-linked.
func pureSource(ids domain.ExternalIDs, source domain.SourceName) bool {
	for _, s := range domain.SourceOrder {
		if s == source {
			continue
		}
		if ids.Get(s) != "" {
			return false
		}
	}
	return ids.Get(source) != ""
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// Field merges: non-empty incoming values win; existing values survive
// gaps in the incoming record.

func mergeCustomer(dst, src *domain.Customer) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Email != "" {
		dst.Email = src.Email
	}
	if src.Phone != "" {
		dst.Phone = src.Phone
	}
	if src.Address != "" {
		dst.Address = src.Address
	}
}

func mergeInvoice(dst, src *domain.Invoice) {
	if src.CustomerID != "" {
		dst.CustomerID = src.CustomerID
	}
	if src.Number != "" {
		dst.Number = src.Number
	}
	if src.Amount != 0 {
		dst.Amount = src.Amount
	}
	if src.Currency != "" {
		dst.Currency = src.Currency
	}
	if !src.IssueDate.IsZero() {
		dst.IssueDate = src.IssueDate
	}
	if !src.DueDate.IsZero() {
		dst.DueDate = src.DueDate
	}
	if src.Status != "" {
		dst.Status = src.Status
	}
}

func mergePayment(dst, src *domain.Payment) {
	if src.InvoiceID != "" {
		dst.InvoiceID = src.InvoiceID
	}
	if src.CustomerID != "" {
		dst.CustomerID = src.CustomerID
	}
	if src.Amount != 0 {
		dst.Amount = src.Amount
	}
	if src.Currency != "" {
		dst.Currency = src.Currency
	}
	if !src.PaidAt.IsZero() {
		dst.PaidAt = src.PaidAt
	}
	if src.Method != "" {
		dst.Method = src.Method
	}
}

func mergeTicket(dst, src *domain.Ticket) {
	if src.CustomerID != "" {
		dst.CustomerID = src.CustomerID
	}
	if src.Subject != "" {
		dst.Subject = src.Subject
	}
	if src.Status != "" {
		dst.Status = src.Status
	}
	if src.Priority != "" {
		dst.Priority = src.Priority
	}
	if !src.OpenedAt.IsZero() {
		dst.OpenedAt = src.OpenedAt
	}
	if !src.LastActivityAt.IsZero() {
		dst.LastActivityAt = src.LastActivityAt
	}
}
