package strategy

import (
	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/mat"

	"github.com/sabinquant/hftbt/internal/book"
	"github.com/sabinquant/hftbt/internal/telemetry"
)

const (
	smaPeriod  = 20
	voiDepth   = 5
	numFeatures = 4 // intercept, imbalance, voi, sma-deviation
)

// LinearModelStrategy predicts the next mid-price move from a small
// feature set (book imbalance, Cont/Kukanov VOI, deviation from a
// trailing SMA of the mid price) and trades in the predicted direction
// once the fitted model clears a threshold. Weights are fit once, from
// training messages, via ordinary least squares.
type LinearModelStrategy struct {
	State
	weights   []float64 // intercept, imbalance, voi, sma-deviation
	threshold float64
	fitted    bool
}

func NewLinearModelStrategy(instrument string, sink *telemetry.Sink) *LinearModelStrategy {
	return &LinearModelStrategy{
		State:     NewState(instrument, sink),
		threshold: 0.01,
	}
}

func (s *LinearModelStrategy) Name() string         { return "linear_model_strat" }
func (s *LinearModelStrategy) RequiresFitting() bool { return true }

// FitModel replays trainMessages through ob, collecting one feature
// sample per message where the top of book is two-sided, then solves the
// least-squares regression of next-step mid-price change on those
// features. It resets ob afterward so the caller hands a clean book to
// the live replay.
func (s *LinearModelStrategy) FitModel(ob *book.Orderbook, trainMessages []book.Message) {
	var imbalances, vois, mids []float64

	for _, msg := range trainMessages {
		if err := ob.ProcessMessage(msg); err != nil {
			continue
		}
		mid, ok := ob.MidPrice()
		if !ok {
			continue
		}
		ob.CalculateVols(voiDepth)
		imbalances = append(imbalances, ob.CalculateImbalance())
		vois = append(vois, ob.CalculateVOI())
		mids = append(mids, mid)
	}
	ob.Reset()

	if len(mids) < smaPeriod+2 {
		s.weights = make([]float64, numFeatures)
		s.fitted = true
		return
	}

	sma := talib.Sma(mids, smaPeriod)

	n := len(mids) - 1
	rows := 0
	features := make([][numFeatures]float64, 0, n)
	labels := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if sma[i] == 0 {
			continue
		}
		smaDev := (mids[i] - sma[i]) / sma[i]
		features = append(features, [numFeatures]float64{1, imbalances[i], vois[i], smaDev})
		labels = append(labels, mids[i+1]-mids[i])
		rows++
	}
	if rows < numFeatures {
		s.weights = make([]float64, numFeatures)
		s.fitted = true
		return
	}

	xData := make([]float64, 0, rows*numFeatures)
	for _, row := range features {
		xData = append(xData, row[:]...)
	}
	X := mat.NewDense(rows, numFeatures, xData)
	y := mat.NewDense(rows, 1, labels)

	var beta mat.Dense
	if err := beta.Solve(X, y); err != nil {
		s.weights = make([]float64, numFeatures)
	} else {
		s.weights = []float64{beta.At(0, 0), beta.At(1, 0), beta.At(2, 0), beta.At(3, 0)}
	}
	s.fitted = true
}

func (s *LinearModelStrategy) predict(imbalance, voi, smaDev float64) float64 {
	if !s.fitted {
		return 0
	}
	return s.weights[0] + s.weights[1]*imbalance + s.weights[2]*voi + s.weights[3]*smaDev
}

func (s *LinearModelStrategy) OnBookUpdate(ob *book.Orderbook) {
	mid, ok := ob.MidPrice()
	if !ok {
		return
	}
	ob.CalculateVols(voiDepth)
	imbalance := ob.CalculateImbalance()
	voi := ob.CalculateVOI()

	history := ob.MidPriceHistory()
	smaDev := 0.0
	if len(history) >= smaPeriod {
		window := history[len(history)-smaPeriod:]
		sma := talib.Sma(window, smaPeriod)
		last := sma[len(sma)-1]
		if last != 0 {
			smaDev = (mid - last) / last
		}
	}

	signal := s.predict(imbalance, voi, smaDev)
	switch {
	case signal > s.threshold && s.Position() < s.MaxPos:
		ask, ok := ob.BestAskPrice()
		if !ok {
			return
		}
		s.ExecuteTrade(book.Bid, ask, 1)
	case signal < -s.threshold && s.Position() > -s.MaxPos:
		bid, ok := ob.BestBidPrice()
		if !ok {
			return
		}
		s.ExecuteTrade(book.Ask, bid, 1)
	default:
		return
	}

	s.updateTheoValues(ob)
	s.calculatePnL()
}

func (s *LinearModelStrategy) ClosePositions(ob *book.Orderbook, timestampNS uint64) {
	s.State.ClosePositions(ob, timestampNS, s.ExecuteTrade)
}
