package trace

import (
	"fmt"
	"sort"
)

// Sink receives request outcomes and aggregate counters from a running
// simulation. Calls never block the simulation on a reply; persistent sinks
// buffer and report write failures from Close.
type Sink interface {
	RecordOutcome(record OutcomeRecord)
	RecordCounter(name string, delta int64)
	Close() error
}

// SinkKind selects the sink implementation.
type SinkKind string

const (
	// SinkNone discards everything.
	SinkNone SinkKind = "none"
	// SinkMemory keeps records in memory.
	SinkMemory SinkKind = "memory"
	// SinkCSV appends records to a CSV file.
	SinkCSV SinkKind = "csv"
	// SinkSQLite inserts records into a SQLite database in batched transactions.
	SinkSQLite SinkKind = "sqlite"
)

// validSinkKinds maps accepted sink kind strings.
var validSinkKinds = map[SinkKind]bool{
	SinkNone:   true,
	SinkMemory: true,
	SinkCSV:    true,
	SinkSQLite: true,
	"":         true, // empty defaults to none
}

// IsValidSinkKind returns true if the given string is a recognized sink kind.
func IsValidSinkKind(kind string) bool {
	return validSinkKinds[SinkKind(kind)]
}

// Open creates a sink of the given kind. path is the output file stem for
// the file-backed sinks; empty picks a unique generated name.
func Open(kind SinkKind, path string) (Sink, error) {
	switch kind {
	case "", SinkNone:
		return NopSink{}, nil
	case SinkMemory:
		return NewMemorySink(), nil
	case SinkCSV:
		return NewCSVSink(path)
	case SinkSQLite:
		return NewSQLiteSink(path)
	default:
		return nil, fmt.Errorf("unknown trace sink %q", kind)
	}
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordOutcome(OutcomeRecord)  {}
func (NopSink) RecordCounter(string, int64) {}
func (NopSink) Close() error                { return nil }

// MemorySink collects outcome records and counter totals in memory.
type MemorySink struct {
	Outcomes []OutcomeRecord
	Counters map[string]int64
}

// NewMemorySink creates a MemorySink ready for recording.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		Outcomes: make([]OutcomeRecord, 0),
		Counters: make(map[string]int64),
	}
}

// RecordOutcome appends an outcome record.
func (m *MemorySink) RecordOutcome(record OutcomeRecord) {
	m.Outcomes = append(m.Outcomes, record)
}

// RecordCounter adds delta to the named counter.
func (m *MemorySink) RecordCounter(name string, delta int64) {
	m.Counters[name] += delta
}

func (m *MemorySink) Close() error { return nil }

// CounterNames returns the recorded counter names, sorted.
func (m *MemorySink) CounterNames() []string {
	names := make([]string, 0, len(m.Counters))
	for name := range m.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tee forwards every call to all sinks.
type Tee []Sink

func (t Tee) RecordOutcome(record OutcomeRecord) {
	for _, s := range t {
		s.RecordOutcome(record)
	}
}

func (t Tee) RecordCounter(name string, delta int64) {
	for _, s := range t {
		s.RecordCounter(name, delta)
	}
}

// Close closes every sink and returns the first error.
func (t Tee) Close() error {
	var first error
	for _, s := range t {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
