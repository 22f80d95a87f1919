// Package indicators computes the entry-condition signal from recent
// candles: sample volatility, linear-regression trend, a volume
// z-score and a composite sentiment, per spec §4.11. Pure stdlib
// math — no pack repo imports a TA-indicator library and the spec's
// composite sentiment formula doesn't match any well-known
// indicator's output closely enough to ground it on one.
package indicators

import "math"

// Signal is the computed entry-condition snapshot for one pair.
type Signal struct {
	Volatility float64 // std-dev of one-bar returns
	Trend      float64 // regression slope of closes / first close
	VolumeZ    float64 // z-score of the latest bar's volume
	Sentiment  float64 // composite score in [0, 100]
	Confidence float64 // sentiment / 100
}

// Enter reports whether spec §4.11's three entry conditions all hold.
func (s Signal) Enter() bool {
	return s.Sentiment > 40 && s.Volatility > 1e-4 && s.Confidence > 0.2
}

// Compute derives a Signal from the last len(closes) one-minute
// candles' closes and volumes (both slices must be the same length,
// oldest first). Fewer than 3 bars yields a zero-confidence signal.
func Compute(closes, volumes []float64) Signal {
	n := len(closes)
	if n < 3 || n != len(volumes) {
		return Signal{}
	}

	vol := stdDevReturns(closes)
	trend := regressionSlope(closes) / closes[0]
	volZ := zScore(volumes)
	sentiment := compositeSentiment(trend, volZ)

	return Signal{
		Volatility: vol,
		Trend:      trend,
		VolumeZ:    volZ,
		Sentiment:  sentiment,
		Confidence: sentiment / 100,
	}
}

func returns(closes []float64) []float64 {
	r := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		r = append(r, (closes[i]-closes[i-1])/closes[i-1])
	}
	return r
}

func stdDevReturns(closes []float64) float64 {
	r := returns(closes)
	if len(r) < 2 {
		return 0
	}
	mean := mean(r)
	var sumSq float64
	for _, v := range r {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(r)-1))
}

// regressionSlope fits y = a + b*x over x = 0..n-1 and returns b.
func regressionSlope(ys []float64) float64 {
	n := float64(len(ys))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func zScore(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, v := range xs {
		d := v - m
		sumSq += d * d
	}
	sd := math.Sqrt(sumSq / float64(n-1))
	if sd == 0 {
		return 0
	}
	return (xs[n-1] - m) / sd
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

// compositeSentiment squashes trend and volume-z into [0, 100] via a
// logistic curve centered on neutral (trend == 0, volumeZ == 0) ==
// 50. Positive trend and above-average volume push it up.
func compositeSentiment(trend, volumeZ float64) float64 {
	x := trend*400 + volumeZ*0.5
	return 100 / (1 + math.Exp(-x))
}
