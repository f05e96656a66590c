// investment/reconcile.go
package investment

import (
	"auto_zonky_go/errs"
	"auto_zonky_go/logs"
	"auto_zonky_go/remote"
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
)

// LedgerClient is the part of the platform API the reconciler needs.
type LedgerClient interface {
	GetLoan(ctx context.Context, id int) (*remote.Loan, error)
	GetBlockedAmounts(ctx context.Context, offset, size int) ([]remote.BlockedAmount, error)
}

// ReconcilerOptions tunes Reconcile.
type ReconcilerOptions struct {
	PageSize int // Blocked amounts per request
	Workers  int // Parallel loan lookups
}

// DefaultReconcilerOptions are used for zero fields.
var DefaultReconcilerOptions = ReconcilerOptions{PageSize: 100, Workers: 4}

// maxBlockedAmountPages guards against a platform that never returns a short page.
const maxBlockedAmountPages = 10000

// FetchAllBlockedAmounts walks the blocked-amount pages until a short one.
func FetchAllBlockedAmounts(ctx context.Context, client LedgerClient, pageSize int) ([]remote.BlockedAmount, error) {
	if pageSize <= 0 {
		pageSize = DefaultReconcilerOptions.PageSize
	}
	var all []remote.BlockedAmount
	for page := 0; page < maxBlockedAmountPages; page++ {
		batch, err := client.GetBlockedAmounts(ctx, page*pageSize, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch blocked amounts page %d: %w", page, err)
		}
		all = append(all, batch...)
		if len(batch) < pageSize {
			return all, nil
		}
	}
	return nil, fmt.Errorf("blocked amounts did not end after %d pages", maxBlockedAmountPages)
}

// Reconcile turns the account's blocked amounts into one investment per loan, with the
// amount summed over all entries for that loan, in order of first appearance. Fee
// entries are dropped. Every loan is looked up once; if any lookup fails nothing is
// returned.
func Reconcile(ctx context.Context, client LedgerClient) ([]remote.Investment, error) {
	return ReconcileWithOptions(ctx, client, DefaultReconcilerOptions)
}

// ReconcileWithOptions is Reconcile with explicit paging and parallelism.
func ReconcileWithOptions(ctx context.Context, client LedgerClient, opts ReconcilerOptions) ([]remote.Investment, error) {
	start := time.Now()
	if opts.Workers <= 0 {
		opts.Workers = DefaultReconcilerOptions.Workers
	}

	blocked, err := FetchAllBlockedAmounts(ctx, client, opts.PageSize)
	if err != nil {
		return nil, errs.New("reconcile", errs.CodeReconciliation, errs.WithCause(err))
	}

	var order []int
	sums := make(map[int]decimal.Decimal)
	for _, b := range blocked {
		if b.IsFee() {
			continue
		}
		if _, seen := sums[b.LoanID]; !seen {
			order = append(order, b.LoanID)
		}
		sums[b.LoanID] = sums[b.LoanID].Add(b.Amount)
	}

	loans := make([]remote.Loan, len(order))
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError().WithMaxGoroutines(opts.Workers)
	for idx, loanID := range order {
		i, id := idx, loanID
		p.Go(func(ctx context.Context) error {
			loan, err := client.GetLoan(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to look up loan %d: %w", id, err)
			}
			if loan == nil || loan.ID != id {
				return fmt.Errorf("lookup of loan %d returned a different loan", id)
			}
			loans[i] = *loan
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, errs.New("reconcile", errs.CodeReconciliation, errs.WithCause(err))
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.New("reconcile", errs.CodeReconciliation, errs.WithCause(err))
	}

	result := make([]remote.Investment, len(order))
	for i, id := range order {
		result[i] = remote.NewInvestment(loans[i], sums[id])
	}
	logs.Debugf("[Reconcile] %d blocked amounts -> %d investments in %s.", len(blocked), len(result), time.Since(start))
	return result, nil
}
