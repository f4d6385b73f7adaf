// Package backtest runs the bar-by-bar event loop: evaluate, size, execute,
// record. The loop is single-goroutine and deterministic; identical bars and
// config produce identical trades.
package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/heliosquant/tradecore/internal/feed"
	"github.com/heliosquant/tradecore/internal/ledger"
	"github.com/heliosquant/tradecore/internal/logger"
	"github.com/heliosquant/tradecore/internal/position"
	"github.com/heliosquant/tradecore/internal/risk"
	"github.com/heliosquant/tradecore/internal/strategy"
	"github.com/heliosquant/tradecore/internal/types"
	"github.com/heliosquant/tradecore/pkg/errors"
)

// OnBarCallback is invoked after each processed bar, for progress reporting.
type OnBarCallback func(index int, total int, bar types.Bar)

// Result is the outcome of one finished run.
type Result struct {
	RunID               string
	Trades              []types.Trade
	FinalPortfolioValue float64
	// OpenPosition is the position still held when the bars ran out. It is
	// reported, never force-liquidated.
	OpenPosition optional.Option[types.Position]
	Stats        types.TradeStats
	EquityCurve  []float64
	EquityTimes  []time.Time
}

// Engine wires the evaluator, sizer, tracker and ledger together and drives
// them over a bar source.
type Engine struct {
	cfg       Config
	log       *logger.Logger
	evaluator *strategy.Evaluator
	sizer     *risk.Sizer
	tracker   *position.Tracker
	book      *ledger.Ledger
	onBar     OnBarCallback
}

// NewEngine validates the config and builds the run components.
func NewEngine(cfg Config, log *logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	evaluator, err := strategy.New(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	// The evaluator defaulted the strategy parameters; read them back so the
	// sizer and ledger see the same values.
	params := evaluator.Config()

	return &Engine{
		cfg:       cfg,
		log:       log,
		evaluator: evaluator,
		sizer:     risk.NewSizer(params.RiskPerTrade, params.Commission),
		tracker:   position.NewTracker(log),
		book:      ledger.NewLedger(log, cfg.InitialCapital, params.Commission),
	}, nil
}

// SetOnBarCallback registers a progress callback. Must be called before Run.
func (e *Engine) SetOnBarCallback(callback OnBarCallback) {
	e.onBar = callback
}

// Run consumes the source bar by bar. Decisions for a bar use only that bar
// and its predecessor. Invariant violations and out-of-order bars abort the
// run; a zero size from the sizer skips the entry silently.
func (e *Engine) Run(ctx context.Context, source feed.BarSource) (Result, error) {
	total, err := source.Count(e.cfg.StartTime, e.cfg.EndTime)
	if err != nil {
		return Result{}, err
	}

	runID := uuid.New().String()

	e.log.Info("starting backtest",
		zap.String("run_id", runID),
		zap.String("strategy", e.evaluator.Name()),
		zap.String("symbol", e.cfg.Strategy.Symbol),
		zap.Int("bars", total),
		zap.Float64("initial_capital", e.cfg.InitialCapital),
	)

	var (
		prev     types.Bar
		havePrev bool
		lastTime time.Time
		index    int
		runErr   error
	)

	source.ReadAll(e.cfg.StartTime, e.cfg.EndTime)(func(bar types.Bar, err error) bool {
		if err != nil {
			runErr = err

			return false
		}

		if err := ctx.Err(); err != nil {
			runErr = err

			return false
		}

		if havePrev && !bar.Timestamp.After(prev.Timestamp) {
			runErr = errors.Newf(errors.ErrCodeInvalidBarOrder,
				"bar at %s does not advance past %s", bar.Timestamp, prev.Timestamp)

			return false
		}

		if havePrev {
			if err := e.processBar(prev, bar); err != nil {
				runErr = err

				return false
			}
		}

		if e.onBar != nil {
			e.onBar(index, total, bar)
		}

		index++
		lastTime = bar.Timestamp
		prev = bar
		havePrev = true

		return true
	})

	if runErr != nil {
		return Result{}, runErr
	}

	equity, equityTimes := e.book.EquityCurve()

	result := Result{
		RunID:               runID,
		Trades:              e.book.Trades(),
		FinalPortfolioValue: e.book.PortfolioValue(),
		OpenPosition:        e.tracker.Position(),
		Stats:               e.book.Stats(runID, e.cfg.Strategy.Symbol, e.evaluator.Name(), lastTime),
		EquityCurve:         equity,
		EquityTimes:         equityTimes,
	}

	e.log.Info("backtest finished",
		zap.String("run_id", runID),
		zap.Int("fills", len(result.Trades)),
		zap.Float64("final_portfolio_value", result.FinalPortfolioValue),
		zap.Bool("open_position", result.OpenPosition.IsSome()),
	)

	return result, nil
}

// processBar applies one bar: manage the held position, otherwise look for
// an entry. A bar that closes a position never opens a new one; the next
// entry opportunity is the following bar.
func (e *Engine) processBar(prev, cur types.Bar) error {
	pos := e.tracker.Position()
	if pos.IsSome() {
		return e.manage(cur, pos.Unwrap())
	}

	return e.tryEnter(prev, cur)
}

func (e *Engine) manage(cur types.Bar, pos types.Position) error {
	decision := e.evaluator.EvaluateExit(cur, pos)

	fill, err := e.tracker.Apply(cur, decision)
	if err != nil {
		return err
	}

	if fill.IsNone() {
		return nil
	}

	f := fill.Unwrap()

	_, err = e.book.RecordExit(f.Time, pos.Symbol, f.Price, f.Size, f.Reason)

	return err
}

func (e *Engine) tryEnter(prev, cur types.Bar) error {
	signal, ok := e.evaluator.EvaluateEntry(prev, cur)
	if !ok {
		return nil
	}

	size := e.sizer.Size(signal.Price, signal.StopLoss, e.book.PortfolioValue()) * signal.SizeScale
	if size <= 0 {
		e.log.Debug("entry signal skipped, degenerate size",
			zap.Time("time", cur.Timestamp),
			zap.Float64("price", signal.Price),
		)

		return nil
	}

	if err := e.tracker.Open(e.cfg.Strategy.Symbol, cur.Timestamp, signal, size); err != nil {
		if errors.IsInvariantViolation(err) {
			return err
		}

		// Degenerate levels reject the entry, not the run.
		e.log.Warn("entry rejected", zap.Error(err), zap.Time("time", cur.Timestamp))

		return nil
	}

	_, err := e.book.RecordEntry(cur.Timestamp, e.cfg.Strategy.Symbol, signal.Price, size)

	return err
}
