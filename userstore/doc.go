// Package userstore holds user records for the authentication engine.
//
// [Store] is the contract the engine depends on. [Memory] serves tests and
// the development daemon; [Postgres] is the production implementation on
// database/sql with the pgx driver and goose migrations.
//
// Lookups only return active users. Absent or inactive users are
// [ErrNotFound]; backend failures wrap [ErrUnavailable].
package userstore
