// Package splynx pulls customers, invoices and payments from a Splynx
// billing instance. Splynx is the master record for billing identity, so
// this adapter runs first in every orchestrated sync.
//
// Authentication is Splynx's signed nonce exchange: POST a nonce plus an
// HMAC-SHA256 signature of it to /auth/tokens, receive a short-lived
// access token. The token is cached and transparently renewed before
// expiry through oauth2.ReuseTokenSource.
//
// Listing endpoints paginate by limit/offset and have no server-side
// modified-since filter; the sync runner discards stale records
// client-side. On HTTP 403/405/429 the client retries the request once
// against the legacy API path before giving up.
package splynx
