// Package mocks generates realistic indicator-annotated bars for testing and
// benchmarking. Prices follow geometric Brownian motion; the indicator
// columns are computed from the generated series the same way an external
// feature pipeline would deliver them.
package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/heliosquant/tradecore/internal/types"
)

// BarGenerator generates reproducible bar series from a seed.
type BarGenerator struct {
	rng *rand.Rand
}

// NewBarGenerator creates a generator. Use a fixed seed for reproducible
// results in tests.
func NewBarGenerator(seed int64) *BarGenerator {
	return &BarGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures the generated series.
type GeneratorConfig struct {
	// Symbol is the trading symbol.
	Symbol string
	// StartTime is the beginning of the series.
	StartTime time.Time
	// Interval is the duration between bars.
	Interval time.Duration
	// Count is the number of bars to generate.
	Count int
	// InitialPrice is the starting price.
	InitialPrice float64
	// Volatility controls per-bar price movement (0.002 = 0.2% per bar).
	Volatility float64
	// Trend is the total drift distributed across the series.
	Trend float64
	// VolumeBase is the average volume per bar.
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0).
	VolumeVariance float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "TEST",
		StartTime:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:       time.Hour,
		Count:          5000,
		InitialPrice:   100.0,
		Volatility:     0.002,
		Trend:          0.0,
		VolumeBase:     10000,
		VolumeVariance: 0.3,
	}
}

// Generate creates a bar series with indicator columns attached. Bars inside
// the warmup window of an indicator simply lack that key, matching how a
// real pipeline leaves leading rows empty.
func (g *BarGenerator) Generate(config GeneratorConfig) []types.Bar {
	bars := make([]types.Bar, config.Count)
	currentPrice := config.InitialPrice
	currentTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		open := currentPrice

		// Box-Muller transform for a normally distributed step.
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		priceChange := config.Volatility * z
		drift := config.Trend / float64(config.Count)

		close := open * (1 + priceChange + drift)
		if close <= 0 {
			close = open * 0.99
		}

		highExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)
		lowExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)

		high := math.Max(open, close) + highExtension

		low := math.Min(open, close) - lowExtension
		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		volumeVariation := 1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance

		volume := config.VolumeBase * volumeVariation
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		bars[i] = types.Bar{
			Timestamp: currentTime,
			Symbol:    config.Symbol,
			Open:      roundToDecimals(open, 4),
			High:      roundToDecimals(high, 4),
			Low:       roundToDecimals(low, 4),
			Close:     roundToDecimals(close, 4),
			Volume:    roundToDecimals(volume, 2),
		}

		currentPrice = close
		currentTime = currentTime.Add(config.Interval)
	}

	annotate(bars)

	return bars
}

// annotate computes the indicator columns over a finished OHLCV series.
func annotate(bars []types.Bar) {
	const (
		fastPeriod  = 9
		midPeriod   = 21
		slowPeriod  = 50
		rsiPeriod   = 14
		atrPeriod   = 14
		atrMAPeriod = 20
		volPeriod   = 20
	)

	emaFast := newEMA(fastPeriod)
	emaMid := newEMA(midPeriod)
	emaSlow := newEMA(slowPeriod)

	var (
		avgGain, avgLoss float64
		atr              float64
		atrHistory       []float64
		volumes          []float64
	)

	for i := range bars {
		bar := &bars[i]
		bar.Indicators = make(map[string]float64)

		fast := emaFast.update(bar.Close)
		mid := emaMid.update(bar.Close)
		slow := emaSlow.update(bar.Close)

		volumes = append(volumes, bar.Volume)

		if i == 0 {
			continue
		}

		prev := bars[i-1]

		// Wilder's RSI.
		change := bar.Close - prev.Close
		gain := math.Max(change, 0)
		loss := math.Max(-change, 0)
		avgGain = (avgGain*float64(rsiPeriod-1) + gain) / float64(rsiPeriod)
		avgLoss = (avgLoss*float64(rsiPeriod-1) + loss) / float64(rsiPeriod)

		// True range smoothed the same way.
		tr := math.Max(bar.High-bar.Low,
			math.Max(math.Abs(bar.High-prev.Close), math.Abs(bar.Low-prev.Close)))
		atr = (atr*float64(atrPeriod-1) + tr) / float64(atrPeriod)
		atrHistory = append(atrHistory, atr)

		if i < slowPeriod {
			continue
		}

		bar.Indicators[types.IndicatorEMAFast] = fast
		bar.Indicators[types.IndicatorEMAMid] = mid
		bar.Indicators[types.IndicatorEMASlow] = slow

		if avgLoss == 0 {
			bar.Indicators[types.IndicatorRSI] = 100
		} else {
			rs := avgGain / avgLoss
			bar.Indicators[types.IndicatorRSI] = 100 - 100/(1+rs)
		}

		bar.Indicators[types.IndicatorATR] = atr
		bar.Indicators[types.IndicatorATRMA] = mean(tail(atrHistory, atrMAPeriod))
		bar.Indicators[types.IndicatorVolumeSMA] = mean(tail(volumes, volPeriod))

		if bar.Close > slow {
			bar.Indicators[types.IndicatorSuperTrend] = 1
			bar.Indicators[types.IndicatorSuperTrendStop] = bar.Close - 2*atr
		} else {
			bar.Indicators[types.IndicatorSuperTrend] = 0
		}
	}
}

type ema struct {
	alpha float64
	value float64
	seen  bool
}

func newEMA(period int) *ema {
	return &ema{alpha: 2.0 / (float64(period) + 1)}
}

func (e *ema) update(price float64) float64 {
	if !e.seen {
		e.value = price
		e.seen = true

		return e.value
	}

	e.value = e.alpha*price + (1-e.alpha)*e.value

	return e.value
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}

	return values[len(values)-n:]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(val*pow) / pow
}
