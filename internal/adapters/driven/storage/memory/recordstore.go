package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory implementation of driven.RecordStore.
// Writes are visible immediately; Flush only counts calls so tests can
// assert the commit cadence.
type RecordStore struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
	invoices  map[string]domain.Invoice
	payments  map[string]domain.Payment
	tickets   map[string]domain.Ticket
	flushes   int
}

// NewRecordStore creates a new in-memory canonical record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		customers: make(map[string]domain.Customer),
		invoices:  make(map[string]domain.Invoice),
		payments:  make(map[string]domain.Payment),
		tickets:   make(map[string]domain.Ticket),
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// GetCustomerByExternalID looks a customer up by one source's native id.
func (s *RecordStore) GetCustomerByExternalID(_ context.Context, source domain.SourceName, externalID string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if c.ExternalIDs.Get(source) == externalID {
			c := c
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

// FindCustomerByEmail finds a customer by email with no id yet for source.
func (s *RecordStore) FindCustomerByEmail(_ context.Context, email string, source domain.SourceName) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if c.Email == email && c.ExternalIDs.Get(source) == "" {
			c := c
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

// SaveCustomer upserts a customer by canonical id.
func (s *RecordStore) SaveCustomer(_ context.Context, c *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = *c
	return nil
}

// MergeCustomers re-homes invoices, payments and tickets from loserID onto
// winnerID and deletes the loser.
func (s *RecordStore) MergeCustomers(_ context.Context, winnerID, loserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[loserID]; !ok {
		return domain.ErrNotFound
	}
	for id, inv := range s.invoices {
		if inv.CustomerID == loserID {
			inv.CustomerID = winnerID
			s.invoices[id] = inv
		}
	}
	for id, p := range s.payments {
		if p.CustomerID == loserID {
			p.CustomerID = winnerID
			s.payments[id] = p
		}
	}
	for id, tk := range s.tickets {
		if tk.CustomerID == loserID {
			tk.CustomerID = winnerID
			s.tickets[id] = tk
		}
	}
	delete(s.customers, loserID)
	return nil
}

// GetInvoiceByExternalID looks an invoice up by one source's native id.
func (s *RecordStore) GetInvoiceByExternalID(_ context.Context, source domain.SourceName, externalID string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invoices {
		if inv.ExternalIDs.Get(source) == externalID {
			inv := inv
			return &inv, nil
		}
	}
	return nil, domain.ErrNotFound
}

// FindInvoiceSoftMatch finds an invoice with the same customer, amount and
// calendar date that has no id yet for source.
func (s *RecordStore) FindInvoiceSoftMatch(_ context.Context, customerID string, amount int64, date time.Time, source domain.SourceName) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invoices {
		if inv.CustomerID == customerID && inv.Amount == amount && sameDay(inv.IssueDate, date) && inv.ExternalIDs.Get(source) == "" {
			inv := inv
			return &inv, nil
		}
	}
	return nil, domain.ErrNotFound
}

// SaveInvoice upserts an invoice by canonical id.
func (s *RecordStore) SaveInvoice(_ context.Context, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = *inv
	return nil
}

// MergeInvoices re-homes payments from loserID onto winnerID and deletes
// the loser.
func (s *RecordStore) MergeInvoices(_ context.Context, winnerID, loserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[loserID]; !ok {
		return domain.ErrNotFound
	}
	for id, p := range s.payments {
		if p.InvoiceID == loserID {
			p.InvoiceID = winnerID
			s.payments[id] = p
		}
	}
	delete(s.invoices, loserID)
	return nil
}

// GetPaymentByExternalID looks a payment up by one source's native id.
func (s *RecordStore) GetPaymentByExternalID(_ context.Context, source domain.SourceName, externalID string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if p.ExternalIDs.Get(source) == externalID {
			p := p
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

// FindPaymentSoftMatch finds a payment with the same customer, amount and
// calendar date that has no id yet for source.
func (s *RecordStore) FindPaymentSoftMatch(_ context.Context, customerID string, amount int64, date time.Time, source domain.SourceName) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if p.CustomerID == customerID && p.Amount == amount && sameDay(p.PaidAt, date) && p.ExternalIDs.Get(source) == "" {
			p := p
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

// SavePayment upserts a payment by canonical id.
func (s *RecordStore) SavePayment(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = *p
	return nil
}

// GetTicketByExternalID looks a ticket up by one source's native id.
func (s *RecordStore) GetTicketByExternalID(_ context.Context, source domain.SourceName, externalID string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tk := range s.tickets {
		if tk.ExternalIDs.Get(source) == externalID {
			tk := tk
			return &tk, nil
		}
	}
	return nil, domain.ErrNotFound
}

// SaveTicket upserts a ticket by canonical id.
func (s *RecordStore) SaveTicket(_ context.Context, tk *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[tk.ID] = *tk
	return nil
}

// Flush records the call; in-memory writes are already applied.
func (s *RecordStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

// Flushes returns how many times Flush has been called, for tests.
func (s *RecordStore) Flushes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flushes
}

// Counts returns per-entity row counts, for tests.
func (s *RecordStore) Counts() (customers, invoices, payments, tickets int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.customers), len(s.invoices), len(s.payments), len(s.tickets)
}

// Customers returns a snapshot of all customer rows, for tests.
func (s *RecordStore) Customers() []domain.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	return out
}

// Invoices returns a snapshot of all invoice rows, for tests.
func (s *RecordStore) Invoices() []domain.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		out = append(out, inv)
	}
	return out
}

// Payments returns a snapshot of all payment rows, for tests.
func (s *RecordStore) Payments() []domain.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out
}
