package database

import "context"

// Querier is the read/write surface shared by DBPool and Tx. Store methods
// that must run either standalone or inside a transaction take a Querier.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Exec(ctx context.Context, query string, args ...any) (Result, error)
}

var (
	_ Querier = (DBPool)(nil)
	_ Querier = (Tx)(nil)
)
