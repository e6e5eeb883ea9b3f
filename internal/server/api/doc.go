// Package api holds the error types and response helpers shared by the mock
// server handlers and middleware.
//
// Successful responses are wrapped as {"success": true, "data": ...}, lists
// add a pagination object. Errors come in three layouts (see Shape).
package api
