// orchestrator.go
package main

import (
	"auto_zonky_go/config"
	"auto_zonky_go/logs"
	"auto_zonky_go/metrics"
	"auto_zonky_go/monitor"
	"auto_zonky_go/remote"
	"auto_zonky_go/state"
	"auto_zonky_go/strategy"
	versioncheck "auto_zonky_go/version"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Orchestrator struct {
	client  remote.Client
	store   state.LedgerStore
	metrics *metrics.Metrics
	runner  *monitor.Runner
	checker *versioncheck.Checker
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	cfg     *config.Config
	version string
}

func NewOrchestrator(cfg *config.Config, envCfg *config.EnvConfig, currentVersion string) (*Orchestrator, error) {
	var client remote.Client
	if cfg.UseSimulation {
		mockClient := remote.NewMockClient()
		seedSimulation(mockClient)
		client = mockClient
		logs.Warnf("<<<<<<<<<< WARNING: Running in simulation mode >>>>>>>>>>")
	} else {
		if envCfg.AccessToken == "" {
			return nil, fmt.Errorf("ZONKY_ACCESS_TOKEN is not set")
		}
		client = remote.NewAPIClient(envCfg.BaseURL, envCfg.AccessToken, cfg.Normal.HTTPTimeoutSeconds, cfg.Normal.LookupTimeoutSeconds, cfg.Normal.RequestsPerSecond)
	}
	if cfg.DryRun {
		logs.Warnf("[Orchestrator] Dry run: investments are logged, never submitted.")
	}

	store, err := state.Open(cfg.State, cfg.Normal.StateDirectory, envCfg.RedisPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ledger, err := store.Load(ctx)
	if err != nil {
		cancel()
		store.Close()
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	logs.Infof("[Orchestrator] Ledger store (%s) loaded with %d investments.", cfg.State.Backend, len(ledger))

	simple, err := strategy.NewSimpleStrategy(cfg.Simple)
	if err != nil {
		cancel()
		store.Close()
		return nil, fmt.Errorf("invalid simple strategy: %w", err)
	}
	m := metrics.New()

	o := &Orchestrator{
		client:  client,
		store:   store,
		metrics: m,
		runner:  monitor.NewRunner(client, simple.Factory(), store, m, cfg, ledger),
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		version: currentVersion,
	}
	if cfg.Version.Check {
		o.checker = &versioncheck.Checker{
			Current: currentVersion,
			Fetch:   versioncheck.HTTPFetcher(cfg.Version.LatestURL, time.Duration(cfg.Normal.HTTPTimeoutSeconds)*time.Second),
		}
	}

	if err := o.reportInvestmentsOnStartup(); err != nil {
		o.cancel()
		store.Close()
		return nil, err
	}
	return o, nil
}

// reportInvestmentsOnStartup logs the platform's investments in the configured statuses.
func (o *Orchestrator) reportInvestmentsOnStartup() error {
	text := strings.TrimSpace(o.cfg.Investing.ReportStatuses)
	if text == "" {
		return nil
	}
	statuses, err := remote.ParseInvestmentStatuses(text)
	if err != nil {
		return fmt.Errorf("invalid investing.report_statuses: %w", err)
	}
	if statuses.Len() == 0 {
		return nil
	}

	investments, err := o.client.GetInvestments(o.ctx, statuses)
	if err != nil {
		// informational only
		logs.Warnf("[Orchestrator] Unable to list investments in %s: %v", statuses, err)
		return nil
	}
	total := decimal.Zero
	for _, inv := range investments {
		total = total.Add(inv.Amount)
	}
	logs.Infof("[Orchestrator] Platform reports %d investments in %s, %s in total.", len(investments), statuses, total)
	return nil
}

func (o *Orchestrator) Start() {
	if o.checker != nil {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			versioncheck.Report(o.version, <-o.checker.CheckAsync(o.ctx))
		}()
	}

	metrics.Serve(o.ctx, o.cfg.Normal.MetricsAddr, o.metrics.Registry)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runner.Start(o.ctx, o.ctx.Done())
	}()
	logs.Infof("Investing every %ds, press Ctrl+C to exit.", o.cfg.Normal.CycleIntervalSeconds)
}

func (o *Orchestrator) Stop() {
	logs.Info("Received close signal, starting graceful shutdown...")

	// Send cancellation signal to all goroutines and wait for the running cycle
	o.cancel()
	o.wg.Wait()

	o.printFinalSummary()

	if err := o.store.Close(); err != nil {
		logs.Errorf("Failed to close ledger store: %v", err)
	}
	logs.Info("All services stopped successfully.")
}

func (o *Orchestrator) printFinalSummary() {
	ledger := o.runner.Ledger()
	total := decimal.Zero
	for _, inv := range ledger {
		total = total.Add(inv.Amount)
	}
	session := o.runner.Session().GetSessionState()

	logs.Info("--- Final Summary ---")
	logs.Infof("Invested this session: %d investments, %s in total (%d rejected).", session.Count, session.TotalInvested, session.Rejections)
	for _, rating := range session.SortedRatings() {
		logs.Infof("  %-5s %s", rating, session.InvestedByRating[rating])
	}
	if session.Count > 0 {
		logs.Infof("Weighted interest rate: %s", session.WeightedRate)
	}
	logs.Infof("Investments known: %d, %s in total.", len(ledger), total)
	logs.Info("---------------------")
}

// seedSimulation puts a small marketplace into the mock platform.
func seedSimulation(c *remote.MockClient) {
	c.SetBalance(decimal.NewFromInt(10000))
	c.SetStatistics(remote.Statistics{
		RiskPortfolio: []remote.RiskPortfolio{
			{Rating: remote.RatingAA, Unpaid: decimal.NewFromInt(2000)},
			{Rating: remote.RatingB, Unpaid: decimal.NewFromInt(1000)},
		},
	})
	ratings := remote.Ratings()
	for i := 1; i <= 24; i++ {
		amount := decimal.NewFromInt(int64(20000 + 5000*(i%7)))
		c.AddLoan(remote.Loan{
			ID:                  100000 + i,
			Name:                fmt.Sprintf("Simulated loan %d", i),
			Rating:              ratings[i%len(ratings)],
			TermInMonths:        12 * (1 + i%6),
			InterestRate:        decimal.NewFromFloat(0.04 + 0.01*float64(i%len(ratings))),
			Amount:              amount,
			RemainingInvestment: amount.Div(decimal.NewFromInt(int64(1 + i%4))),
		})
	}
}
