// sim/metrics_utils.go
package sim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// recordWait adds one satisfied waiting time to the class aggregate.
func (c *ClassStats) recordWait(w float64) {
	c.WaitSum += w
	c.MaxWait = max(c.MaxWait, w)
	c.waits = append(c.waits, w)
}

// WaitPercentile returns the p-th percentile (0..100) of the waiting time
// of satisfied requests, 0 when none were satisfied.
func (c *ClassStats) WaitPercentile(p float64) float64 {
	if len(c.waits) == 0 {
		return 0
	}
	sorted := make([]float64, len(c.waits))
	copy(sorted, c.waits)
	sort.Float64s(sorted)
	return stat.Quantile(p/100, stat.LinInterp, sorted, nil)
}

// ClassResult is the JSON form of one class's statistics.
type ClassResult struct {
	Arrivals     int64   `json:"arrivals"`
	Satisfied    int64   `json:"satisfied"`
	Missed       int64   `json:"missed"`
	BufferDrops  int64   `json:"buffer_drops"`
	PendingAtEnd int64   `json:"pending_at_end"`
	LossRate     float64 `json:"loss_rate"`
	AvgWait      float64 `json:"avg_wait"`
	P95Wait      float64 `json:"p95_wait"`
	MaxWait      float64 `json:"max_wait"`
}

// Results is the JSON output of one run.
type Results struct {
	Seed                  int64                  `json:"seed"`
	Strategies            map[string]string      `json:"strategies"`
	Classes               map[string]ClassResult `json:"classes"`
	Frames                int64                  `json:"frames"`
	UnitsTotal            int64                  `json:"units_total"`
	UnitsUsed             int64                  `json:"units_used"`
	UnitsWasted           int64                  `json:"units_wasted"`
	UnitsIdle             int64                  `json:"units_idle"`
	Collisions            int64                  `json:"collisions"`
	CollidedTransmissions int64                  `json:"collided_transmissions"`
	SequenceExhaustions   int64                  `json:"sequence_exhaustions"`
	Measurements          []Measurement          `json:"measurements,omitempty"`
}

// Results converts the statistics into their JSON output form.
func (s *Stats) Results(cfg *Config) Results {
	res := Results{
		Seed:                  cfg.Simulation.Seed,
		Strategies:            make(map[string]string),
		Classes:               make(map[string]ClassResult),
		Frames:                s.Frames,
		UnitsTotal:            s.UnitsTotal,
		UnitsUsed:             s.UnitsUsed,
		UnitsWasted:           s.UnitsWasted,
		UnitsIdle:             s.UnitsIdle,
		Collisions:            s.Collisions,
		CollidedTransmissions: s.CollidedTransmissions,
		SequenceExhaustions:   s.SequenceExhaustions,
		Measurements:          s.Measurements,
	}
	for _, c := range Classes {
		cs := &s.Classes[c]
		res.Strategies[c.String()] = cfg.Policy.Strategy(c)
		res.Classes[c.String()] = ClassResult{
			Arrivals:     cs.Arrivals,
			Satisfied:    cs.Satisfied,
			Missed:       cs.Missed,
			BufferDrops:  cs.BufferDrops,
			PendingAtEnd: cs.PendingAtEnd,
			LossRate:     cs.LossRate(),
			AvgWait:      cs.AvgWait(),
			P95Wait:      cs.WaitPercentile(95),
			MaxWait:      cs.MaxWait,
		}
	}
	return res
}

// SaveResults writes the run's results as indented JSON to fileName.
func (s *Stats) SaveResults(cfg *Config, fileName string) error {
	data, err := json.MarshalIndent(s.Results(cfg), "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling results: %w", err)
	}
	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating results file %s: %w", fileName, err)
	}
	writer := bufio.NewWriter(file)
	if _, err := writer.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("writing results: %w", err)
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flushing results: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing results file %s: %w", fileName, err)
	}
	logrus.Debugf("Successfully wrote to '%s'", fileName)
	return nil
}
