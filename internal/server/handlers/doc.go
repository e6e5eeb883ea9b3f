// Package handlers implements the tax portal REST API served by
// tra-mock-server, plus the common infrastructure handlers (health, version).
//
// All handlers share a Store: the repository, the mock ledger and the audit
// log. Writes to taxpayers, VAT transactions, audits and assessments are
// recorded on the ledger and the transaction id is returned with the record.
//
// Assessments are stored and served with PascalCase keys (Tin, TaxType...)
// while every other record uses camelCase, as the production backend does.
// Request bodies are accepted in either casing.
package handlers
