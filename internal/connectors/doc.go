// Package connectors holds the source adapters that pull records from the
// upstream systems, one sub-package per source (splynx, erpnext, chatwoot).
//
// Each sub-package implements driven.Connector: it owns its source's
// authentication scheme, pagination style and field mapping, and nothing
// else. Cursor bookkeeping, breaker guarding, dead-letter routing and the
// upsert loop all live in the service layer; a connector only turns "page
// N of entity E" into mapped canonical records.
//
// The root package carries the pieces the sub-packages share: the
// store-backed reference resolver that translates upstream parent ids
// (a Splynx invoice's customer_id, say) into canonical row ids during
// mapping, and the minor-unit money parsing helpers.
package connectors
