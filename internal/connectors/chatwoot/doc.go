// Package chatwoot pulls contacts and conversations from a Chatwoot
// account. Contacts enrich canonical customers (phone numbers and contact
// details the billing systems lack) and conversations become support
// tickets; Chatwoot never owns invoices or payments.
//
// Authentication is the static api_access_token header. List endpoints
// pick their own page size and report position through a page token the
// engine persists as a continuation cursor, so a capped run resumes where
// it stopped. There is no server-side modified-since filter.
package chatwoot
