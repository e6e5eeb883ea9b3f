// Package server provides tra-mock-server, a development backend for the
// tax portal API.
//
// The server is configured through environment variables
// (see internal/config for details) and stores its records through
// database.Repository: in memory by default, in PostgreSQL when
// DATABASE_URL is set.
//
// The package includes
//   - the /api routes (handlers in internal/server/handlers)
//   - health, readiness, version and Prometheus metrics endpoints
//
// middleware is in internal/server/middleware
package server
