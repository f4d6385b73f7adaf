// Package optimizer runs parameter sweeps: it expands explicit parameter
// grids into trials and executes each trial's private engine in a bounded
// worker pool. It ranks results; it does not search. Plug a smarter search
// in front of it by generating the configs yourself.
package optimizer

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/heliosquant/tradecore/internal/backtest"
	"github.com/heliosquant/tradecore/internal/feed"
	"github.com/heliosquant/tradecore/internal/logger"
	"github.com/heliosquant/tradecore/internal/types"
	"github.com/heliosquant/tradecore/pkg/errors"
)

// PenaltyScore is assigned to trials that error or panic so they sink to the
// bottom of any ranking without poisoning the sweep.
const PenaltyScore = -1e9

// ScoreFunc ranks a finished trial. Higher is better.
type ScoreFunc func(stats types.TradeStats) float64

// SharpeScore is the default ranking: the Sharpe ratio over per-exit net
// returns.
func SharpeScore(stats types.TradeStats) float64 {
	return stats.TradeResult.SharpeRatio
}

// TrialResult is the outcome of one trial. Err is set and Score is the
// penalty when the trial failed.
type TrialResult struct {
	Index  int
	Config backtest.Config
	Score  float64
	Stats  types.TradeStats
	Err    error
}

// Sweep executes trials over a shared immutable bar slice.
type Sweep struct {
	log     *logger.Logger
	workers int
	score   ScoreFunc
}

// NewSweep builds a sweep runner. Zero workers selects NumCPU; a nil score
// function selects SharpeScore.
func NewSweep(log *logger.Logger, workers int, score ScoreFunc) *Sweep {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if score == nil {
		score = SharpeScore
	}

	return &Sweep{
		log:     log,
		workers: workers,
		score:   score,
	}
}

// Run executes every config as an isolated trial. Workers share nothing but
// the read-only bar slice; results come back ordered by trial index, not by
// completion order.
func (s *Sweep) Run(ctx context.Context, configs []backtest.Config, bars []types.Bar) ([]TrialResult, error) {
	if len(configs) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyGrid, "no trial configs to run")
	}

	// Validate ordering once instead of per trial.
	if _, err := feed.NewSliceSource(bars); err != nil {
		return nil, err
	}

	s.log.Info("starting sweep",
		zap.Int("trials", len(configs)),
		zap.Int("workers", s.workers),
		zap.Int("bars", len(bars)),
	)

	results := make([]TrialResult, len(configs))
	jobs := make(chan int)

	var wg sync.WaitGroup

	for w := 0; w < s.workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for index := range jobs {
				results[index] = s.runTrial(ctx, index, configs[index], bars)
			}
		}()
	}

	for index := range configs {
		jobs <- index
	}

	close(jobs)
	wg.Wait()

	failed := 0

	for _, result := range results {
		if result.Err != nil {
			failed++
		}
	}

	s.log.Info("sweep finished",
		zap.Int("trials", len(results)),
		zap.Int("failed", failed),
	)

	return results, nil
}

// runTrial executes one config against a private engine. Panics are
// recovered into a penalized result so one bad parameter combination cannot
// take down the sweep.
func (s *Sweep) runTrial(ctx context.Context, index int, cfg backtest.Config, bars []types.Bar) (result TrialResult) {
	result = TrialResult{
		Index:  index,
		Config: cfg,
	}

	defer func() {
		if r := recover(); r != nil {
			result.Score = PenaltyScore
			result.Err = errors.Newf(errors.ErrCodeTrialFailed, "trial %d panicked: %v", index, r)

			s.log.Warn("trial panicked", zap.Int("trial", index), zap.Any("panic", r))
		}
	}()

	source, err := feed.NewSliceSource(bars)
	if err != nil {
		result.Score = PenaltyScore
		result.Err = errors.Wrapf(errors.ErrCodeTrialFailed, err, "trial %d source", index)

		return result
	}

	engine, err := backtest.NewEngine(cfg, s.log)
	if err != nil {
		result.Score = PenaltyScore
		result.Err = errors.Wrapf(errors.ErrCodeTrialFailed, err, "trial %d config", index)

		return result
	}

	run, err := engine.Run(ctx, source)
	if err != nil {
		result.Score = PenaltyScore
		result.Err = errors.Wrapf(errors.ErrCodeTrialFailed, err, "trial %d run", index)

		return result
	}

	result.Stats = run.Stats
	result.Score = s.score(run.Stats)

	return result
}

// Rank returns the results ordered best first. Ties keep trial-index order
// so a re-run ranks identically.
func Rank(results []TrialResult) []TrialResult {
	ranked := make([]TrialResult, len(results))
	copy(ranked, results)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

// WriteTrialStats persists the statistics of every successful trial to a
// YAML file, preserving the order given. Pass the results through Rank first
// to store them best first.
func WriteTrialStats(path string, results []TrialResult) error {
	stats := make([]types.TradeStats, 0, len(results))

	for _, result := range results {
		if result.Err != nil {
			continue
		}

		stats = append(stats, result.Stats)
	}

	return types.WriteTradeStats(path, stats)
}

// Describe summarizes a trial for log output.
func (r TrialResult) Describe() string {
	if r.Err != nil {
		return fmt.Sprintf("trial %d failed: %v", r.Index, r.Err)
	}

	return fmt.Sprintf("trial %d score=%.4f fills=%d win_rate=%.2f",
		r.Index, r.Score, r.Stats.TradeResult.NumberOfFills, r.Stats.TradeResult.WinRate)
}
