package ledger

import (
	"context"
	"fmt"
)

type commitHooksKey struct{}

// commitHooks collects side effects of the outermost transaction
type commitHooks struct {
	fns []func(ctx context.Context)
}

// afterCommit runs fn once the outermost transaction carried by ctx commits,
// and drops it on rollback. Outside a transaction fn runs immediately.
func afterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if hooks, ok := ctx.Value(commitHooksKey{}).(*commitHooks); ok {
		hooks.fns = append(hooks.fns, fn)
		return
	}
	fn(ctx)
}

func withinTx(ctx context.Context, repo Repository, fn func(ctx context.Context) error) error {
	if repo.InTx(ctx) {
		return fn(ctx)
	}

	txCtx, err := repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	hooks := &commitHooks{}
	txCtx = context.WithValue(txCtx, commitHooksKey{}, hooks)

	committed := false
	defer func() {
		if !committed {
			// the operation already failed; a rollback error adds nothing
			_ = repo.RollbackTx(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := repo.CommitTx(txCtx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	// ctx carries no transaction, so hooks never touch the committed one
	for _, run := range hooks.fns {
		run(ctx)
	}
	return nil
}
