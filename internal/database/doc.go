// Package database stores the records served by tra-mock-server.
//
// Records are JSON documents grouped by kind (taxpayers, assessments, chain
// records...). The server owns their shape; this package only persists and
// orders them. Two implementations are provided:
//   - Memory, the default, used for demos and tests
//   - Postgres, used when DATABASE_URL is set. The schema is managed by goose
//     with the migrations embedded in this package.
package database
