package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

// RecordStore is the transactional data-access layer over the canonical
// business tables. The sync core only defines the operations it needs for
// matching and upserting; the wider schema belongs to the serving side of
// the system.
//
// Lookups return domain.ErrNotFound when no row matches. Save operations
// are idempotent upserts keyed on the canonical row id.
type RecordStore interface {
	// Customers.
	GetCustomerByExternalID(ctx context.Context, source domain.SourceName, externalID string) (*domain.Customer, error)
	// FindCustomerByEmail returns a customer with the same email that has
	// no external id yet for source (the customer soft match).
	FindCustomerByEmail(ctx context.Context, email string, source domain.SourceName) (*domain.Customer, error)
	SaveCustomer(ctx context.Context, c *domain.Customer) error
	// MergeCustomers re-homes all rows referencing loserID (invoices,
	// payments, tickets) onto winnerID and deletes the loser, in one
	// transaction.
	MergeCustomers(ctx context.Context, winnerID, loserID string) error

	// Invoices.
	GetInvoiceByExternalID(ctx context.Context, source domain.SourceName, externalID string) (*domain.Invoice, error)
	// FindInvoiceSoftMatch returns an invoice with the same customer,
	// amount and calendar date that has no external id yet for source.
	FindInvoiceSoftMatch(ctx context.Context, customerID string, amount int64, date time.Time, source domain.SourceName) (*domain.Invoice, error)
	SaveInvoice(ctx context.Context, inv *domain.Invoice) error
	// MergeInvoices re-homes payments pointing at loserID onto winnerID
	// and deletes the loser, in one transaction.
	MergeInvoices(ctx context.Context, winnerID, loserID string) error

	// Payments.
	GetPaymentByExternalID(ctx context.Context, source domain.SourceName, externalID string) (*domain.Payment, error)
	FindPaymentSoftMatch(ctx context.Context, customerID string, amount int64, date time.Time, source domain.SourceName) (*domain.Payment, error)
	SavePayment(ctx context.Context, p *domain.Payment) error

	// Tickets.
	GetTicketByExternalID(ctx context.Context, source domain.SourceName, externalID string) (*domain.Ticket, error)
	SaveTicket(ctx context.Context, tk *domain.Ticket) error

	// Flush commits any batched writes. The runner calls this every
	// BatchSize records and at the end of each page, so a crash mid-page
	// never advances the watermark past undurable rows.
	Flush(ctx context.Context) error
}
