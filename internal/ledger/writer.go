package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/heliosquant/tradecore/internal/types"
)

// ResultWriter persists a finished run.
type ResultWriter interface {
	// WriteTrades writes the fill sequence.
	WriteTrades(trades []types.Trade) error

	// WriteEquityCurve writes the portfolio-after-fill series.
	WriteEquityCurve(equityCurve []float64, timestamps []time.Time) error

	// WriteOpenPosition writes the position still held when the bars ran
	// out, if any.
	WriteOpenPosition(pos optional.Option[types.Position]) error

	// WriteStats writes the run statistics.
	WriteStats(stats types.TradeStats) error

	// Close finalizes the writing process.
	Close() error
}

// CSVWriter implements ResultWriter with CSV files plus a YAML stats file in
// a per-run directory.
type CSVWriter struct {
	runDir string

	tradesFile      *os.File
	equityCurveFile *os.File

	tradesCsv      *csv.Writer
	equityCurveCsv *csv.Writer
}

// NewCSVWriter creates the run directory under baseDir, named by the current
// timestamp, and opens the output files in it.
func NewCSVWriter(baseDir string) (*CSVWriter, error) {
	runDir := filepath.Join(baseDir, time.Now().Format("2006-01-02_15-04-05"))

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	writer := &CSVWriter{
		runDir: runDir,
	}

	if err := writer.initFiles(); err != nil {
		return nil, err
	}

	return writer, nil
}

// RunDir returns the directory the outputs land in.
func (w *CSVWriter) RunDir() string {
	return w.runDir
}

func (w *CSVWriter) initFiles() error {
	tradesFile, err := os.Create(filepath.Join(w.runDir, "trades.csv"))
	if err != nil {
		return fmt.Errorf("failed to create trades file: %w", err)
	}

	w.tradesFile = tradesFile
	w.tradesCsv = csv.NewWriter(tradesFile)

	if err := w.tradesCsv.Write([]string{
		"id", "timestamp", "symbol", "side", "price", "size",
		"commission", "portfolio_value", "reason",
		"raw_pnl_pct", "commission_pct", "net_pnl_pct",
	}); err != nil {
		return fmt.Errorf("failed to write trades header: %w", err)
	}

	equityCurveFile, err := os.Create(filepath.Join(w.runDir, "equity_curve.csv"))
	if err != nil {
		return fmt.Errorf("failed to create equity curve file: %w", err)
	}

	w.equityCurveFile = equityCurveFile
	w.equityCurveCsv = csv.NewWriter(equityCurveFile)

	if err := w.equityCurveCsv.Write([]string{"timestamp", "equity"}); err != nil {
		return fmt.Errorf("failed to write equity curve header: %w", err)
	}

	return nil
}

// WriteTrades implements ResultWriter.
func (w *CSVWriter) WriteTrades(trades []types.Trade) error {
	for _, trade := range trades {
		record := []string{
			trade.ID,
			trade.Timestamp.Format(time.RFC3339),
			trade.Symbol,
			string(trade.Side),
			fmt.Sprintf("%f", trade.Price),
			fmt.Sprintf("%f", trade.Size),
			fmt.Sprintf("%f", trade.Commission),
			fmt.Sprintf("%f", trade.PortfolioValue),
			string(trade.Reason),
			fmt.Sprintf("%f", trade.RawPnlPct),
			fmt.Sprintf("%f", trade.CommissionPct),
			fmt.Sprintf("%f", trade.NetPnlPct),
		}

		if err := w.tradesCsv.Write(record); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}

	w.tradesCsv.Flush()

	return w.tradesCsv.Error()
}

// WriteEquityCurve implements ResultWriter.
func (w *CSVWriter) WriteEquityCurve(equityCurve []float64, timestamps []time.Time) error {
	for i, equity := range equityCurve {
		record := []string{
			timestamps[i].Format(time.RFC3339),
			fmt.Sprintf("%f", equity),
		}

		if err := w.equityCurveCsv.Write(record); err != nil {
			return fmt.Errorf("failed to write equity curve point: %w", err)
		}
	}

	w.equityCurveCsv.Flush()

	return w.equityCurveCsv.Error()
}

// WriteOpenPosition implements ResultWriter. Nothing is written when the run
// ended flat.
func (w *CSVWriter) WriteOpenPosition(pos optional.Option[types.Position]) error {
	if pos.IsNone() {
		return nil
	}

	data, err := yaml.Marshal(pos.Unwrap())
	if err != nil {
		return fmt.Errorf("failed to marshal open position: %w", err)
	}

	if err := os.WriteFile(filepath.Join(w.runDir, "open_position.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write open position: %w", err)
	}

	return nil
}

// WriteStats implements ResultWriter.
func (w *CSVWriter) WriteStats(stats types.TradeStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	if err := os.WriteFile(filepath.Join(w.runDir, "stats.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}

	return nil
}

// Close implements ResultWriter.
func (w *CSVWriter) Close() error {
	if w.tradesCsv != nil {
		w.tradesCsv.Flush()
	}

	if w.equityCurveCsv != nil {
		w.equityCurveCsv.Flush()
	}

	if w.tradesFile != nil {
		w.tradesFile.Close()
	}

	if w.equityCurveFile != nil {
		w.equityCurveFile.Close()
	}

	return nil
}
