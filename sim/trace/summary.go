package trace

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ClassSummary aggregates the outcomes of one traffic class.
type ClassSummary struct {
	Total     int
	Satisfied int
	Lost      int
	LossRate  float64 // Lost / Total, 0 when Total is 0
	WaitMean  float64 // mean waiting time of satisfied requests
	WaitVar   float64 // unbiased sample variance of the waiting time
	WaitCI95  float64 // half-width of the 95% confidence interval of WaitMean
	MaxWait   float64
}

// TraceSummary aggregates outcome records per traffic class.
type TraceSummary struct {
	Classes map[string]*ClassSummary
}

// ClassNames returns the summarized class names, sorted.
func (s *TraceSummary) ClassNames() []string {
	names := make([]string, 0, len(s.Classes))
	for name := range s.Classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summarize computes per-class statistics from outcome records.
// Safe for nil or empty input (returns an empty summary).
func Summarize(records []OutcomeRecord) *TraceSummary {
	summary := &TraceSummary{Classes: make(map[string]*ClassSummary)}
	waits := make(map[string][]float64)
	for _, r := range records {
		cs, ok := summary.Classes[r.Event]
		if !ok {
			cs = &ClassSummary{}
			summary.Classes[r.Event] = cs
		}
		cs.Total++
		if !r.Satisfied {
			cs.Lost++
			continue
		}
		cs.Satisfied++
		w := r.Wait()
		waits[r.Event] = append(waits[r.Event], w)
		cs.MaxWait = math.Max(cs.MaxWait, w)
	}
	for name, cs := range summary.Classes {
		cs.LossRate = float64(cs.Lost) / float64(cs.Total)
		cs.WaitMean, cs.WaitCI95 = MeanCI(waits[name], 0.95)
		if len(waits[name]) > 1 {
			_, cs.WaitVar = stat.MeanVariance(waits[name], nil)
		}
	}
	return summary
}

// MeanCI returns the sample mean of xs and the half-width of its two-sided
// Student-t confidence interval at the given level. The half-width is 0 for
// fewer than two samples; the mean is 0 for none.
func MeanCI(xs []float64, level float64) (mean, halfWidth float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	mean, variance := stat.MeanVariance(xs, nil)
	n := float64(len(xs))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 1}.Quantile(1 - (1-level)/2)
	return mean, t * math.Sqrt(variance/n)
}
