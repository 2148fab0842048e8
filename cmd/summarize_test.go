package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaoruiPeng/massive-mimo-slicing/sim/trace"
)

func writeTrace(t *testing.T, kind trace.SinkKind, stem string) {
	t.Helper()
	sink, err := trace.Open(kind, stem)
	require.NoError(t, err)
	sink.RecordOutcome(trace.OutcomeRecord{Event: "urllc", Node: 1, Counter: 1, Arrival: 0, Dead: 2, Departure: 1, Pilot: 0, Satisfied: true})
	sink.RecordOutcome(trace.OutcomeRecord{Event: "urllc", Node: 2, Counter: 1, Arrival: 0, Dead: 2, Departure: 3, Pilot: -1})
	require.NoError(t, sink.Close())
}

func TestReadTrace_ByExtension(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, trace.SinkCSV, filepath.Join(dir, "a"))
	writeTrace(t, trace.SinkSQLite, filepath.Join(dir, "b"))

	for _, path := range []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.sqlite3")} {
		records, err := readTrace(path)
		require.NoError(t, err, path)
		require.Len(t, records, 2, path)

		s := trace.Summarize(records)
		assert.Equal(t, 0.5, s.Classes["urllc"].LossRate, path)
	}
}

func TestReadTrace_UnknownExtension(t *testing.T) {
	_, err := readTrace("trace.parquet")
	assert.Error(t, err)
}

func TestPrintSummary(t *testing.T) {
	s := trace.Summarize([]trace.OutcomeRecord{
		{Event: "mmtc", Arrival: 1, Departure: 4, Pilot: 2, Satisfied: true},
	})

	var buf bytes.Buffer
	printSummary(&buf, "x.csv", s)

	out := buf.String()
	assert.Contains(t, out, "=== Trace Summary: x.csv ===")
	assert.Contains(t, out, "--- mmtc ---")
	assert.Contains(t, out, "Wait mean            : 3.0000 ± 0.0000 (95% CI)")
}

func TestOpenRunSink_SummaryKeepsOutcomesInMemory(t *testing.T) {
	// GIVEN a csv trace requested together with a summary
	stem := filepath.Join(t.TempDir(), "run")
	sink, memory, err := openRunSink(trace.SinkCSV, stem, true)
	require.NoError(t, err)
	require.NotNil(t, memory)

	// WHEN outcomes and counters are recorded
	sink.RecordOutcome(trace.OutcomeRecord{Event: "urllc", Node: 1, Counter: 1, Departure: 1, Pilot: 0, Satisfied: true})
	sink.RecordCounter("collisions", 2)
	sink.RecordCounter("buffer_drops", 1)
	require.NoError(t, sink.Close())

	// THEN the file and the memory copy both hold the outcome
	records, err := readTrace(stem + ".csv")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Len(t, memory.Outcomes, 1)

	// AND the counters print sorted by name
	var buf bytes.Buffer
	printCounters(&buf, memory)
	assert.Equal(t, "=== Trace Counters ===\nbuffer_drops         : 1\ncollisions           : 2\n", buf.String())
}

func TestOpenRunSink_WithoutSummary(t *testing.T) {
	sink, memory, err := openRunSink(trace.SinkNone, "", false)
	require.NoError(t, err)
	assert.Nil(t, memory)
	assert.Equal(t, trace.NopSink{}, sink)
}
