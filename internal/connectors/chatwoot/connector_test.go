package chatwoot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// stubResolver resolves contacts from a fixed map.
type stubResolver struct {
	customers map[string]string
}

func (r *stubResolver) ResolveCustomer(_ context.Context, _ domain.SourceName, externalID string) (string, error) {
	if id, ok := r.customers[externalID]; ok {
		return id, nil
	}
	return "", domain.ErrNotFound
}

// fakeChatwoot serves canned account-scoped list responses and records
// the page param of the last call.
type fakeChatwoot struct {
	t *testing.T

	contacts      map[string]string // page -> payload array
	conversations map[string]string
	lastPage      string
	status        int
}

func (f *fakeChatwoot) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/accounts/7/contacts", func(w http.ResponseWriter, r *http.Request) {
		f.serve(w, r, f.contacts, `{"meta": {}, "payload": %s}`)
	})
	mux.HandleFunc("/api/v1/accounts/7/conversations", func(w http.ResponseWriter, r *http.Request) {
		f.serve(w, r, f.conversations, `{"data": {"meta": {}, "payload": %s}}`)
	})
	return mux
}

func (f *fakeChatwoot) serve(w http.ResponseWriter, r *http.Request, pages map[string]string, envelope string) {
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	if r.Header.Get(authHeader) != "cw-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.lastPage = r.URL.Query().Get("page")
	payload, ok := pages[f.lastPage]
	if !ok {
		payload = "[]"
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(fmt.Sprintf(envelope, payload)))
}

func newTestConnector(t *testing.T, fake *fakeChatwoot, resolver Resolver) *Connector {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	if resolver == nil {
		resolver = &stubResolver{}
	}
	return New(domain.SourceConfig{
		BaseURL:           srv.URL,
		APIKey:            "cw-token",
		AccountID:         "7",
		RequestsPerSecond: 1000,
	}, resolver)
}

func TestConnector_Identity(t *testing.T) {
	conn := New(domain.SourceConfig{BaseURL: "http://localhost"}, &stubResolver{})

	assert.Equal(t, domain.SourceChatwoot, conn.Source())
	assert.Equal(t, []domain.EntityType{domain.EntityCustomers, domain.EntityTickets}, conn.EntityTypes())

	caps := conn.Capabilities(domain.EntityTickets)
	assert.True(t, caps.UsesContinuationToken, "position is carried as a page token")
	assert.False(t, caps.SupportsModifiedSince)
}

func TestConnector_TestConnection(t *testing.T) {
	t.Run("succeeds with valid token", func(t *testing.T) {
		conn := newTestConnector(t, &fakeChatwoot{t: t}, nil)
		assert.True(t, conn.TestConnection(context.Background()))
	})

	t.Run("fails with rejected token", func(t *testing.T) {
		fake := &fakeChatwoot{t: t}
		srv := httptest.NewServer(fake.handler())
		t.Cleanup(srv.Close)

		conn := New(domain.SourceConfig{
			BaseURL:           srv.URL,
			APIKey:            "wrong",
			AccountID:         "7",
			RequestsPerSecond: 1000,
		}, &stubResolver{})

		assert.False(t, conn.TestConnection(context.Background()))
	})
}

func TestConnector_FetchContacts(t *testing.T) {
	fake := &fakeChatwoot{t: t, contacts: map[string]string{
		"1": `[
			{"id": 9, "name": "Alice Jones", "email": "alice@example.com", "phone_number": "+31 6 1234",
			 "created_at": 1709280000, "last_activity_at": 1709540000,
			 "custom_attributes": {"splynx_id": "42"}},
			{"id": 10, "name": "Walk In", "custom_attributes": {}}
		]`,
	}}
	conn := newTestConnector(t, fake, nil)

	page, err := conn.FetchPage(context.Background(), domain.EntityCustomers, driven.PageRequest{Page: 1, Size: 100})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "2", page.NextCursor, "token points at the next page")
	assert.Equal(t, "1", fake.lastPage, "no cursor starts at page one")

	linked := page.Records[0]
	require.NoError(t, linked.MapErr)
	assert.Equal(t, "9", linked.ExternalID)
	assert.Equal(t, time.Unix(1709540000, 0).UTC(), linked.ModifiedAt)
	require.NotNil(t, linked.CrossRef)
	assert.Equal(t, domain.SourceSplynx, linked.CrossRef.Source)
	assert.Equal(t, "42", linked.CrossRef.ExternalID)
	assert.Equal(t, "+31 6 1234", linked.Customer.Phone)

	anonymous := page.Records[1]
	require.NoError(t, anonymous.MapErr)
	assert.Nil(t, anonymous.CrossRef)
	assert.Equal(t, time.Time{}, anonymous.ModifiedAt, "no activity and no created_at leaves it zero")
}

func TestConnector_FetchContacts_ResumesFromCursor(t *testing.T) {
	fake := &fakeChatwoot{t: t, contacts: map[string]string{"3": `[{"id": 30}]`}}
	conn := newTestConnector(t, fake, nil)

	page, err := conn.FetchPage(context.Background(), domain.EntityCustomers,
		driven.PageRequest{Page: 1, Size: 100, Cursor: "3"})
	require.NoError(t, err)
	assert.Equal(t, "3", fake.lastPage)
	assert.Equal(t, "4", page.NextCursor)
	require.Len(t, page.Records, 1)
}

func TestConnector_FetchContacts_EmptyPageEndsCollection(t *testing.T) {
	fake := &fakeChatwoot{t: t}
	conn := newTestConnector(t, fake, nil)

	page, err := conn.FetchPage(context.Background(), domain.EntityCustomers, driven.PageRequest{Page: 1, Size: 100})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
}

func TestConnector_FetchConversations(t *testing.T) {
	resolver := &stubResolver{customers: map[string]string{"9": "cust-row-1"}}
	fake := &fakeChatwoot{t: t, conversations: map[string]string{
		"1": `[
			{"id": 101, "status": "open", "priority": "high",
			 "meta": {"sender": {"id": 9}},
			 "additional_attributes": {"subject": "No internet since Monday"},
			 "created_at": 1709280000, "last_activity_at": 1709540000},
			{"id": 102, "status": "resolved", "meta": {"sender": {"id": 77}}, "created_at": 1709280000}
		]`,
	}}
	conn := newTestConnector(t, fake, resolver)

	page, err := conn.FetchPage(context.Background(), domain.EntityTickets, driven.PageRequest{Page: 1, Size: 100})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)

	ticket := page.Records[0]
	require.NoError(t, ticket.MapErr)
	require.NotNil(t, ticket.Ticket)
	assert.Equal(t, "cust-row-1", ticket.Ticket.CustomerID)
	assert.Equal(t, "No internet since Monday", ticket.Ticket.Subject)
	assert.Equal(t, "open", ticket.Ticket.Status)
	assert.Equal(t, "high", ticket.Ticket.Priority)
	assert.Equal(t, time.Unix(1709280000, 0).UTC(), ticket.Ticket.OpenedAt)
	assert.Equal(t, time.Unix(1709540000, 0).UTC(), ticket.Ticket.LastActivityAt)

	orphan := page.Records[1]
	assert.ErrorIs(t, orphan.MapErr, domain.ErrRecordMapping, "conversation for an unsynced contact dead-letters")
}

func TestConnector_FetchConversations_DefaultSubject(t *testing.T) {
	resolver := &stubResolver{customers: map[string]string{"9": "cust-row-1"}}
	fake := &fakeChatwoot{t: t, conversations: map[string]string{
		"1": `[{"id": 103, "status": "open", "meta": {"sender": {"id": 9}}, "created_at": 1709280000}]`,
	}}
	conn := newTestConnector(t, fake, resolver)

	page, err := conn.FetchPage(context.Background(), domain.EntityTickets, driven.PageRequest{Page: 1, Size: 100})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	require.NoError(t, page.Records[0].MapErr)
	assert.Equal(t, "Conversation #103", page.Records[0].Ticket.Subject)
}

func TestConnector_FetchPage_RateLimited(t *testing.T) {
	fake := &fakeChatwoot{t: t, status: http.StatusTooManyRequests}
	conn := newTestConnector(t, fake, nil)

	_, err := conn.FetchPage(context.Background(), domain.EntityCustomers, driven.PageRequest{Page: 1, Size: 10})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestConnector_FetchPage_UnknownEntity(t *testing.T) {
	conn := New(domain.SourceConfig{BaseURL: "http://localhost"}, &stubResolver{})

	_, err := conn.FetchPage(context.Background(), domain.EntityInvoices, driven.PageRequest{Page: 1, Size: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
