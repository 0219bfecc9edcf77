//services/billing-service/internal/store/store.go

package store

import "context"

// TransactionManager abstracts the database transaction.
// Everything fn does through a store that honours the injected tx commits or rolls back together.
// Required wherever a gate check and a write must be atomic (item edits vs finalize, ledger append).
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
