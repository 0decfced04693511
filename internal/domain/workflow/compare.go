package workflow

import "sort"

// Recommendation summarises a version comparison.
type Recommendation string

// Comparison verdicts.
const (
	Recommend      Recommendation = "RECOMMEND"
	NotRecommended Recommendation = "NOT_RECOMMENDED"
	Neutral        Recommendation = "NEUTRAL"
)

// MetricDelta is the change of one metric between two versions.
type MetricDelta struct {
	Baseline       float64 `json:"baseline"`
	Comparison     float64 `json:"comparison"`
	AbsoluteChange float64 `json:"absoluteChange"`
	PercentChange  float64 `json:"percentChange"`
}

// Comparison is the outcome of comparing two versions of a workflow.
type Comparison struct {
	Baseline       Key
	Candidate      Key
	Performance    map[string]MetricDelta
	Quality        map[string]MetricDelta
	PerformanceAvg float64
	QualityAvg     float64
	Recommendation Recommendation
	Summary        string
}

// Compare computes per-metric deltas and a recommendation for candidate over baseline.
func Compare(baseline, candidate Version) Comparison {
	perf := Deltas(baseline.performanceMetrics, candidate.performanceMetrics)
	qual := Deltas(baseline.qualityMetrics, candidate.qualityMetrics)
	pAvg, qAvg := meanPercent(perf), meanPercent(qual)
	rec, summary := Verdict(pAvg, qAvg)
	return Comparison{
		Baseline:       baseline.Key(),
		Candidate:      candidate.Key(),
		Performance:    perf,
		Quality:        qual,
		PerformanceAvg: pAvg,
		QualityAvg:     qAvg,
		Recommendation: rec,
		Summary:        summary,
	}
}

// Deltas compares the metrics present in both maps. Percent change is 0 when the baseline is 0.
func Deltas(baseline, comparison map[string]float64) map[string]MetricDelta {
	out := make(map[string]MetricDelta)
	for k, b := range baseline {
		c, ok := comparison[k]
		if !ok {
			continue
		}
		d := MetricDelta{Baseline: b, Comparison: c, AbsoluteChange: c - b}
		if b != 0 {
			d.PercentChange = (c - b) / b * 100
		}
		out[k] = d
	}
	return out
}

func meanPercent(deltas map[string]MetricDelta) float64 {
	if len(deltas) == 0 {
		return 0
	}
	keys := make([]string, 0, len(deltas))
	for k := range deltas {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sum float64
	for _, k := range keys {
		sum += deltas[k].PercentChange
	}
	return sum / float64(len(keys))
}

// Verdict maps mean performance and quality changes (percent) to a verdict.
func Verdict(perf, quality float64) (Recommendation, string) {
	switch {
	case perf > 5 && quality > 5:
		return Recommend, "significant improvements in both performance and quality"
	case perf > 10:
		return Recommend, "significant performance improvement"
	case quality > 10:
		return Recommend, "significant quality improvement"
	case perf < -10 || quality < -10:
		return NotRecommended, "performance or quality degradation detected"
	default:
		return Neutral, "minor differences detected, consider business requirements"
	}
}
