// monitor/rest.go
package monitor

import (
	"auto_zonky_go/config"
	"auto_zonky_go/errs"
	"auto_zonky_go/investment"
	"auto_zonky_go/logs"
	"auto_zonky_go/metrics"
	"auto_zonky_go/profit"
	"auto_zonky_go/remote"
	"auto_zonky_go/state"
	"auto_zonky_go/strategy"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Runner polls the platform and runs one investing cycle per tick.
type Runner struct {
	client   remote.Client
	factory  strategy.Factory
	store    state.LedgerStore
	metrics  *metrics.Metrics // may be nil
	cfg      *config.Config
	reconOpt investment.ReconcilerOptions
	session  *profit.Accountant

	mu     sync.Mutex // one cycle at a time
	ledger []remote.Investment
}

// NewRunner starts from ledger, the investments loaded from the store.
func NewRunner(client remote.Client, factory strategy.Factory, store state.LedgerStore, m *metrics.Metrics, cfg *config.Config, ledger []remote.Investment) *Runner {
	return &Runner{
		client:  client,
		factory: factory,
		store:   store,
		metrics: m,
		cfg:     cfg,
		reconOpt: investment.ReconcilerOptions{
			PageSize: cfg.Investing.BlockedAmountsPageSize,
			Workers:  cfg.Investing.ReconcileWorkers,
		},
		session: profit.NewAccountant(),
		ledger:  append([]remote.Investment(nil), ledger...),
	}
}

// Session returns the accountant of investments made since the runner was created.
func (r *Runner) Session() *profit.Accountant {
	return r.session
}

// Ledger returns a copy of the investments known so far.
func (r *Runner) Ledger() []remote.Investment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]remote.Investment(nil), r.ledger...)
}

// Start runs a cycle right away and then on every tick until stopChan is closed.
// Cycles run on this goroutine only, so they never overlap.
func (r *Runner) Start(ctx context.Context, stopChan <-chan struct{}) {
	ticker := time.NewTicker(time.Duration(r.cfg.Normal.CycleIntervalSeconds) * time.Second)
	defer ticker.Stop()

	lastHeartbeat := time.Now()
	heartbeatInterval := time.Duration(r.cfg.Normal.HeartbeatIntervalMinutes) * time.Minute

	r.runLogged(ctx)
	for {
		select {
		case <-stopChan:
			logs.Info("Monitor received stop signal, exiting.")
			return
		case <-ctx.Done():
			logs.Info("Monitor context cancelled, exiting.")
			return
		case <-ticker.C:
			r.runLogged(ctx)

			if heartbeatInterval > 0 && time.Since(lastHeartbeat) >= heartbeatInterval {
				logs.Infof("[Heartbeat] Monitor still running, %d investments in ledger.", len(r.Ledger()))
				lastHeartbeat = time.Now()
			}
		}
	}
}

func (r *Runner) runLogged(ctx context.Context) {
	if _, err := r.RunCycle(ctx); err != nil {
		// the next tick starts over with fresh data
		logs.Errorf("[Monitor-Error] Cycle failed: %v", err)
	}
}

// RunCycle fetches fresh balance and statistics, rebuilds the existing-investment
// snapshot, makes at most one investment and persists the ledger.
func (r *Runner) RunCycle(ctx context.Context) (inv *remote.Investment, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cycleID := uuid.New().String()
	log := logs.WithFields(logs.Fields{"cycle": cycleID})
	defer func() {
		r.countCycle(inv, err)
	}()

	wallet, err := r.client.GetWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	stats, err := r.client.GetStatistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	balance := wallet.AvailableBalance
	if r.metrics != nil {
		r.metrics.AvailableBalance.Set(balance.InexactFloat64())
	}
	log.Debugf("[Monitor] Available balance %s.", balance)

	reconciled, err := r.reconcile(ctx)
	if err != nil {
		return nil, err
	}
	existing := investment.Merge(r.ledger, reconciled)

	marketplace, err := r.client.GetAvailableLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get marketplace: %w", err)
	}

	investor := investment.NewInvestor(r.client, r.factory(marketplace))
	investor.SkipExistingLoans = r.cfg.Investing.SkipExistingLoans
	investor.DryRun = r.cfg.DryRun
	investor.Logger = log
	investor.Observer = r.observe

	inv, err = investor.AttemptInvestment(ctx, balance, stats, existing)
	if err != nil {
		// the reconciled snapshot is still worth keeping
		r.persist(ctx, existing, log)
		return nil, err
	}
	if inv != nil {
		existing = investment.Merge(existing, []remote.Investment{*inv})
		log.Infof("[Monitor] Cycle invested %s into loan %d.", inv.Amount, inv.LoanID)
	}
	r.persist(ctx, existing, log)
	return inv, nil
}

func (r *Runner) reconcile(ctx context.Context) ([]remote.Investment, error) {
	timeout := time.Duration(r.cfg.Normal.ReconcileTimeoutSeconds) * time.Second
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	reconciled, err := investment.ReconcileWithOptions(rctx, r.client, r.reconOpt)
	if r.metrics != nil {
		r.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("cycle abandoned: %w", err)
	}
	return reconciled, nil
}

// persist updates the in-memory ledger and the store. A store failure keeps the
// in-memory ledger so the next save catches up.
func (r *Runner) persist(ctx context.Context, ledger []remote.Investment, log logs.Logger) {
	r.ledger = ledger
	if r.metrics != nil {
		r.metrics.LedgerSize.Set(float64(len(ledger)))
	}
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, ledger); err != nil {
		log.Errorf("[Monitor-Error] Failed to persist ledger: %v", err)
	}
}

func (r *Runner) observe(loan remote.Loan, amount decimal.Decimal, outcome investment.Outcome) {
	switch outcome {
	case investment.OutcomeInvested:
		r.session.RecordInvestment(loan, amount)
	case investment.OutcomeRejected:
		r.session.RecordRejection()
	}
	if r.metrics != nil {
		r.metrics.InvestmentAttempts.WithLabelValues(string(outcome)).Inc()
	}
}

func (r *Runner) countCycle(inv *remote.Investment, err error) {
	if err != nil && errs.IsCode(err, errs.CodeReconciliation) {
		logs.Warnf("[Monitor] Existing investments could not be reconciled, nothing was invested this cycle.")
	}
	if r.metrics == nil {
		return
	}
	switch {
	case err != nil:
		r.metrics.Cycles.WithLabelValues(metrics.CycleFailed).Inc()
	case inv != nil:
		r.metrics.Cycles.WithLabelValues(metrics.CycleInvested).Inc()
	default:
		r.metrics.Cycles.WithLabelValues(metrics.CycleIdle).Inc()
	}
}
