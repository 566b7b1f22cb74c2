// Package calibration implements bucketed confidence-vs-accuracy analysis
// (Expected Calibration Error) over judgment data points.
package calibration

import (
	"fmt"
	"math"
)

// DefaultBuckets is the number of equal-width confidence buckets.
const DefaultBuckets = 10

// neutralBand is the +/- band around zero within which confidence is
// considered well calibrated.
const neutralBand = 0.05

type point struct {
	confidence float64
	correct    bool
}

// Calibrator accumulates (confidence, correctness) data points and computes
// calibration statistics. All computations are order-independent.
type Calibrator struct {
	buckets int
	points  []point
}

// New creates a Calibrator with the given number of equal-width buckets over
// [0,1]. Non-positive counts fall back to DefaultBuckets.
func New(buckets int) *Calibrator {
	if buckets <= 0 {
		buckets = DefaultBuckets
	}
	return &Calibrator{buckets: buckets}
}

// AddPoint records one data point. Nil confidence is ignored; out-of-range
// confidence is clamped to [0,1].
func (c *Calibrator) AddPoint(confidence *float64, correct bool) {
	if confidence == nil {
		return
	}
	conf := *confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	c.points = append(c.points, point{confidence: conf, correct: correct})
}

// Bucket holds per-bucket calibration results.
type Bucket struct {
	Low            float64
	High           float64
	Count          int
	MeanConfidence float64
	Accuracy       float64
}

// Result is the output of Calibrate.
type Result struct {
	Buckets          []Bucket
	ECE              float64
	TotalPoints      int
	InsufficientData bool
}

// Calibrate assigns every point to its bucket (confidence exactly 1.0 falls
// in the last bucket), computes per-bucket accuracy and mean confidence, and
// the Expected Calibration Error: the count-weighted mean absolute gap
// between bucket mean confidence and bucket accuracy over non-empty buckets.
// An empty dataset yields InsufficientData, not an error.
func (c *Calibrator) Calibrate() Result {
	res := Result{TotalPoints: len(c.points)}
	width := 1.0 / float64(c.buckets)
	for i := 0; i < c.buckets; i++ {
		res.Buckets = append(res.Buckets, Bucket{Low: float64(i) * width, High: float64(i+1) * width})
	}
	if len(c.points) == 0 {
		res.InsufficientData = true
		return res
	}

	confSum := make([]float64, c.buckets)
	correct := make([]int, c.buckets)
	for _, p := range c.points {
		idx := int(p.confidence / width)
		if idx >= c.buckets {
			idx = c.buckets - 1
		}
		res.Buckets[idx].Count++
		confSum[idx] += p.confidence
		if p.correct {
			correct[idx]++
		}
	}

	var ece float64
	for i := range res.Buckets {
		b := &res.Buckets[i]
		if b.Count == 0 {
			continue
		}
		b.MeanConfidence = confSum[i] / float64(b.Count)
		b.Accuracy = float64(correct[i]) / float64(b.Count)
		ece += float64(b.Count) / float64(len(c.points)) * math.Abs(b.MeanConfidence-b.Accuracy)
	}
	res.ECE = ece
	return res
}

// Bias describes the direction of miscalibration.
type Bias struct {
	Direction        string // "overconfident", "underconfident", "calibrated"
	Gap              float64
	Description      string
	InsufficientData bool
}

// AnalyzeBias reports whether the dataset is over- or under-confident:
// mean confidence minus mean accuracy beyond a +/-0.05 neutral band.
func (c *Calibrator) AnalyzeBias() Bias {
	if len(c.points) == 0 {
		return Bias{
			Direction:        "calibrated",
			Description:      "insufficient data for bias analysis",
			InsufficientData: true,
		}
	}

	var confSum, accSum float64
	for _, p := range c.points {
		confSum += p.confidence
		if p.correct {
			accSum++
		}
	}
	gap := confSum/float64(len(c.points)) - accSum/float64(len(c.points))

	b := Bias{Gap: gap}
	switch {
	case gap > neutralBand:
		b.Direction = "overconfident"
		b.Description = fmt.Sprintf("%s overconfident: stated confidence exceeds accuracy by %.0f points", magnitude(gap), gap*100)
	case gap < -neutralBand:
		b.Direction = "underconfident"
		b.Description = fmt.Sprintf("%s underconfident: accuracy exceeds stated confidence by %.0f points", magnitude(-gap), -gap*100)
	default:
		b.Direction = "calibrated"
		b.Description = "confidence is well calibrated"
	}
	return b
}

func magnitude(gap float64) string {
	switch {
	case gap > 0.25:
		return "severely"
	case gap > 0.15:
		return "significantly"
	default:
		return "slightly"
	}
}
