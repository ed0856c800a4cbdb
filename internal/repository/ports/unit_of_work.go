package ports

import "context"

// UnitOfWork runs fn inside a single storage transaction. Every repository
// call made with the context passed to fn joins that transaction; either all
// mutations commit together or none do.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
