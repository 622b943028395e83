package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// recordStore implements driven.RecordStore over the canonical business
// tables. Writes accumulate in a batch transaction opened lazily on the
// first save and committed by Flush, so a page of upserts hits the disk
// once. Reads go through the open batch so a record can match against
// rows written earlier in the same page. Merges join the batch too,
// which keeps the loser's delete and the winner's upsert in one commit.
type recordStore struct {
	store *Store

	mu sync.Mutex
	tx *sql.Tx
}

var _ driven.RecordStore = (*recordStore)(nil)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the executor reads run on. Callers hold s.mu.
func (s *recordStore) conn() dbtx {
	if s.tx != nil {
		return s.tx
	}
	return s.store.db
}

// begin returns the open batch transaction, starting one if needed.
// Callers hold s.mu. Writes stay buffered until Flush commits them.
func (s *recordStore) begin(ctx context.Context) (dbtx, error) {
	if s.tx == nil {
		tx, err := s.store.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("beginning batch: %w", err)
		}
		s.tx = tx
	}
	return s.tx, nil
}

// Flush commits the open batch transaction, making every buffered write
// durable at once. No-op when nothing is buffered.
func (s *recordStore) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

// sourceColumn maps a source to its native-id column. The columns are
// fixed by the schema; an unknown source must never reach SQL text.
func sourceColumn(s domain.SourceName) (string, error) {
	switch s {
	case domain.SourceSplynx:
		return "splynx_id", nil
	case domain.SourceERPNext:
		return "erpnext_id", nil
	case domain.SourceChatwoot:
		return "chatwoot_id", nil
	}
	return "", fmt.Errorf("%w: unknown source %q", domain.ErrInvalidInput, s)
}

// ==================== Customers ====================

const customerColumns = `id, name, email, phone, address, splynx_id, erpnext_id, chatwoot_id, created_at, updated_at`

// GetCustomerByExternalID retrieves the customer claimed by a source's
// native id.
func (s *recordStore) GetCustomerByExternalID(ctx context.Context, source domain.SourceName, externalID string) (*domain.Customer, error) {
	col, err := sourceColumn(source)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.conn().QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE `+col+` = ?`, externalID)
	return scanCustomer(row)
}

// FindCustomerByEmail returns a customer with the same email that has no
// native id yet for source.
func (s *recordStore) FindCustomerByEmail(ctx context.Context, email string, source domain.SourceName) (*domain.Customer, error) {
	col, err := sourceColumn(source)
	if err != nil {
		return nil, err
	}
	if email == "" {
		return nil, domain.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.conn().QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE email = ? AND `+col+` IS NULL LIMIT 1`, email)
	return scanCustomer(row)
}

// SaveCustomer stores or updates a customer keyed on the canonical id.
func (s *recordStore) SaveCustomer(ctx context.Context, c *domain.Customer) error {
	if c == nil || c.ID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	exec, err := s.begin(ctx)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			address = excluded.address,
			splynx_id = excluded.splynx_id,
			erpnext_id = excluded.erpnext_id,
			chatwoot_id = excluded.chatwoot_id,
			updated_at = excluded.updated_at
	`, c.ID, c.Name, c.Email, c.Phone, c.Address,
		nullString(c.ExternalIDs.Splynx), nullString(c.ExternalIDs.ERPNext), nullString(c.ExternalIDs.Chatwoot),
		timestampOrNow(c.CreatedAt), timestampOrNow(c.UpdatedAt))

	if err != nil {
		return fmt.Errorf("saving customer: %w", err)
	}
	return nil
}

// MergeCustomers re-homes all rows referencing the loser (invoices,
// payments, tickets) onto the winner and deletes the loser. The
// statements join the batch transaction, so the merge and the winner's
// follow-up save commit together.
func (s *recordStore) MergeCustomers(ctx context.Context, winnerID, loserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, err := s.begin(ctx)
	if err != nil {
		return err
	}

	for _, table := range []string{"invoices", "payments", "tickets"} {
		if _, err := exec.ExecContext(ctx,
			"UPDATE "+table+" SET customer_id = ? WHERE customer_id = ?", winnerID, loserID); err != nil {
			return fmt.Errorf("re-homing %s: %w", table, err)
		}
	}
	if _, err := exec.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", loserID); err != nil {
		return fmt.Errorf("deleting merged customer: %w", err)
	}
	return nil
}

// scanCustomer scans a single customer row.
func scanCustomer(row *sql.Row) (*domain.Customer, error) {
	var c domain.Customer
	var splynxID, erpnextID, chatwootID sql.NullString
	var createdAt, updatedAt sql.NullString

	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address,
		&splynxID, &erpnextID, &chatwootID, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning customer: %w", err)
	}

	c.ExternalIDs.Splynx = splynxID.String
	c.ExternalIDs.ERPNext = erpnextID.String
	c.ExternalIDs.Chatwoot = chatwootID.String
	c.CreatedAt = parseNullableTime(createdAt)
	c.UpdatedAt = parseNullableTime(updatedAt)

	return &c, nil
}

// ==================== Invoices ====================

const invoiceColumns = `id, customer_id, number, amount, currency, issue_date, due_date, status, splynx_id, erpnext_id, chatwoot_id, created_at, updated_at`

// GetInvoiceByExternalID retrieves the invoice claimed by a source's
// native id.
func (s *recordStore) GetInvoiceByExternalID(ctx context.Context, source domain.SourceName, externalID string) (*domain.Invoice, error) {
	col, err := sourceColumn(source)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.conn().QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE `+col+` = ?`, externalID)
	return scanInvoice(row)
}

// FindInvoiceSoftMatch returns an invoice with the same customer, amount
// and calendar date that has no native id yet for source.
func (s *recordStore) FindInvoiceSoftMatch(ctx context.Context, customerID string, amount int64, date time.Time, source domain.SourceName) (*domain.Invoice, error) {
	col, err := sourceColumn(source)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.conn().QueryRowContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE customer_id = ? AND amount = ? AND date(issue_date) = date(?) AND `+col+` IS NULL
		LIMIT 1
	`, customerID, amount, date.UTC().Format(time.RFC3339))
	return scanInvoice(row)
}

// SaveInvoice stores or updates an invoice keyed on the canonical id.
func (s *recordStore) SaveInvoice(ctx context.Context, inv *domain.Invoice) error {
	if inv == nil || inv.ID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	exec, err := s.begin(ctx)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id = excluded.customer_id,
			number = excluded.number,
			amount = excluded.amount,
			currency = excluded.currency,
			issue_date = excluded.issue_date,
			due_date = excluded.due_date,
			status = excluded.status,
			splynx_id = excluded.splynx_id,
			erpnext_id = excluded.erpnext_id,
			chatwoot_id = excluded.chatwoot_id,
			updated_at = excluded.updated_at
	`, inv.ID, inv.CustomerID, inv.Number, inv.Amount, inv.Currency,
		formatNullableTime(inv.IssueDate), formatNullableTime(inv.DueDate), inv.Status,
		nullString(inv.ExternalIDs.Splynx), nullString(inv.ExternalIDs.ERPNext), nullString(inv.ExternalIDs.Chatwoot),
		timestampOrNow(inv.CreatedAt), timestampOrNow(inv.UpdatedAt))

	if err != nil {
		return fmt.Errorf("saving invoice: %w", err)
	}
	return nil
}

// MergeInvoices re-homes payments pointing at the loser onto the winner
// and deletes the loser. The statements join the batch transaction, so
// the merge and the winner's follow-up save commit together.
func (s *recordStore) MergeInvoices(ctx context.Context, winnerID, loserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, err := s.begin(ctx)
	if err != nil {
		return err
	}

	if _, err := exec.ExecContext(ctx,
		"UPDATE payments SET invoice_id = ? WHERE invoice_id = ?", winnerID, loserID); err != nil {
		return fmt.Errorf("re-homing payments: %w", err)
	}
	if _, err := exec.ExecContext(ctx, "DELETE FROM invoices WHERE id = ?", loserID); err != nil {
		return fmt.Errorf("deleting merged invoice: %w", err)
	}
	return nil
}

// scanInvoice scans a single invoice row.
func scanInvoice(row *sql.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	var issueDate, dueDate sql.NullString
	var splynxID, erpnextID, chatwootID sql.NullString
	var createdAt, updatedAt sql.NullString

	if err := row.Scan(&inv.ID, &inv.CustomerID, &inv.Number, &inv.Amount, &inv.Currency,
		&issueDate, &dueDate, &inv.Status,
		&splynxID, &erpnextID, &chatwootID, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning invoice: %w", err)
	}

	inv.IssueDate = parseNullableTime(issueDate)
	inv.DueDate = parseNullableTime(dueDate)
	inv.ExternalIDs.Splynx = splynxID.String
	inv.ExternalIDs.ERPNext = erpnextID.String
	inv.ExternalIDs.Chatwoot = chatwootID.String
	inv.CreatedAt = parseNullableTime(createdAt)
	inv.UpdatedAt = parseNullableTime(updatedAt)

	return &inv, nil
}

// ==================== Payments ====================

const paymentColumns = `id, invoice_id, customer_id, amount, currency, paid_at, method, splynx_id, erpnext_id, chatwoot_id, created_at, updated_at`

// GetPaymentByExternalID retrieves the payment claimed by a source's
// native id.
func (s *recordStore) GetPaymentByExternalID(ctx context.Context, source domain.SourceName, externalID string) (*domain.Payment, error) {
	col, err := sourceColumn(source)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.conn().QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE `+col+` = ?`, externalID)
	return scanPayment(row)
}

// FindPaymentSoftMatch returns a payment with the same customer, amount
// and calendar date that has no native id yet for source.
func (s *recordStore) FindPaymentSoftMatch(ctx context.Context, customerID string, amount int64, date time.Time, source domain.SourceName) (*domain.Payment, error) {
	col, err := sourceColumn(source)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.conn().QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE customer_id = ? AND amount = ? AND date(paid_at) = date(?) AND `+col+` IS NULL
		LIMIT 1
	`, customerID, amount, date.UTC().Format(time.RFC3339))
	return scanPayment(row)
}

// SavePayment stores or updates a payment keyed on the canonical id.
func (s *recordStore) SavePayment(ctx context.Context, p *domain.Payment) error {
	if p == nil || p.ID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	exec, err := s.begin(ctx)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			invoice_id = excluded.invoice_id,
			customer_id = excluded.customer_id,
			amount = excluded.amount,
			currency = excluded.currency,
			paid_at = excluded.paid_at,
			method = excluded.method,
			splynx_id = excluded.splynx_id,
			erpnext_id = excluded.erpnext_id,
			chatwoot_id = excluded.chatwoot_id,
			updated_at = excluded.updated_at
	`, p.ID, p.InvoiceID, p.CustomerID, p.Amount, p.Currency,
		formatNullableTime(p.PaidAt), p.Method,
		nullString(p.ExternalIDs.Splynx), nullString(p.ExternalIDs.ERPNext), nullString(p.ExternalIDs.Chatwoot),
		timestampOrNow(p.CreatedAt), timestampOrNow(p.UpdatedAt))

	if err != nil {
		return fmt.Errorf("saving payment: %w", err)
	}
	return nil
}

// scanPayment scans a single payment row.
func scanPayment(row *sql.Row) (*domain.Payment, error) {
	var p domain.Payment
	var paidAt sql.NullString
	var splynxID, erpnextID, chatwootID sql.NullString
	var createdAt, updatedAt sql.NullString

	if err := row.Scan(&p.ID, &p.InvoiceID, &p.CustomerID, &p.Amount, &p.Currency,
		&paidAt, &p.Method,
		&splynxID, &erpnextID, &chatwootID, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning payment: %w", err)
	}

	p.PaidAt = parseNullableTime(paidAt)
	p.ExternalIDs.Splynx = splynxID.String
	p.ExternalIDs.ERPNext = erpnextID.String
	p.ExternalIDs.Chatwoot = chatwootID.String
	p.CreatedAt = parseNullableTime(createdAt)
	p.UpdatedAt = parseNullableTime(updatedAt)

	return &p, nil
}

// ==================== Tickets ====================

const ticketColumns = `id, customer_id, subject, status, priority, splynx_id, erpnext_id, chatwoot_id, opened_at, last_activity_at, created_at, updated_at`

// GetTicketByExternalID retrieves the ticket claimed by a source's native id.
func (s *recordStore) GetTicketByExternalID(ctx context.Context, source domain.SourceName, externalID string) (*domain.Ticket, error) {
	col, err := sourceColumn(source)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.conn().QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE `+col+` = ?`, externalID)
	return scanTicket(row)
}

// SaveTicket stores or updates a ticket keyed on the canonical id.
func (s *recordStore) SaveTicket(ctx context.Context, tk *domain.Ticket) error {
	if tk == nil || tk.ID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	exec, err := s.begin(ctx)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id = excluded.customer_id,
			subject = excluded.subject,
			status = excluded.status,
			priority = excluded.priority,
			splynx_id = excluded.splynx_id,
			erpnext_id = excluded.erpnext_id,
			chatwoot_id = excluded.chatwoot_id,
			opened_at = excluded.opened_at,
			last_activity_at = excluded.last_activity_at,
			updated_at = excluded.updated_at
	`, tk.ID, tk.CustomerID, tk.Subject, tk.Status, tk.Priority,
		nullString(tk.ExternalIDs.Splynx), nullString(tk.ExternalIDs.ERPNext), nullString(tk.ExternalIDs.Chatwoot),
		formatNullableTime(tk.OpenedAt), formatNullableTime(tk.LastActivityAt),
		timestampOrNow(tk.CreatedAt), timestampOrNow(tk.UpdatedAt))

	if err != nil {
		return fmt.Errorf("saving ticket: %w", err)
	}
	return nil
}

// scanTicket scans a single ticket row.
func scanTicket(row *sql.Row) (*domain.Ticket, error) {
	var tk domain.Ticket
	var splynxID, erpnextID, chatwootID sql.NullString
	var openedAt, lastActivityAt, createdAt, updatedAt sql.NullString

	if err := row.Scan(&tk.ID, &tk.CustomerID, &tk.Subject, &tk.Status, &tk.Priority,
		&splynxID, &erpnextID, &chatwootID,
		&openedAt, &lastActivityAt, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning ticket: %w", err)
	}

	tk.ExternalIDs.Splynx = splynxID.String
	tk.ExternalIDs.ERPNext = erpnextID.String
	tk.ExternalIDs.Chatwoot = chatwootID.String
	tk.OpenedAt = parseNullableTime(openedAt)
	tk.LastActivityAt = parseNullableTime(lastActivityAt)
	tk.CreatedAt = parseNullableTime(createdAt)
	tk.UpdatedAt = parseNullableTime(updatedAt)

	return &tk, nil
}

// timestampOrNow formats a timestamp, falling back to the current time for
// zero values so NOT NULL columns are always satisfied.
func timestampOrNow(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}
