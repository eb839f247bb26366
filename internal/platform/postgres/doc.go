// Package postgres provides PostgreSQL implementations of the store
// interfaces. Each store accepts a store.DBTX so the same code runs
// against a plain connection pool or inside a transaction.
package postgres
