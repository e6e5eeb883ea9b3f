// Package services is the typed client for the tax administration REST API.
//
// There is one method per backend operation. Each method copies only the
// filter or payload keys it recognizes into the request (anything else is
// silently dropped), leaves out nil and empty values, and sends the request
// through the retry policy.
//
// Every response body passes through canon before it is decoded, so the
// returned records always use one field naming whatever casing the backend used.
//
// Writes return a Result carrying the ledger transaction id and the time the
// response was received. POST requests carry an Idempotency-Key that stays the
// same across retries of one call.
package services
