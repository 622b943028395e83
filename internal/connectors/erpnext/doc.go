// Package erpnext pulls customers, sales invoices and payment entries
// from an ERPNext instance. ERPNext documents carry custom fields holding
// the Splynx id of the same real-world entity; the adapter surfaces those
// as explicit cross-references so the matcher can link rows across
// sources instead of creating duplicates.
//
// Authentication is a static "token api_key:api_secret" Authorization
// header. The Frappe list API filters server-side on the modified
// timestamp and paginates by limit_start/limit_page_length.
package erpnext
