package trace

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleRecords() []OutcomeRecord {
	return []OutcomeRecord{
		{Event: "urllc", Node: 0, Counter: 1, Arrival: 0.25, Dead: 2.25, Departure: 1, Pilot: 3, Satisfied: true},
		{Event: "mmtc", Node: 12, Counter: 4, Arrival: 10.5, Dead: 60.5, Departure: 61, Pilot: -1},
		{Event: "urllc", Node: 2, Counter: 9, Arrival: 100.125, Dead: 102.125, Departure: 102, Pilot: 0, Satisfied: true},
	}
}

func TestCSVSink_WritesReadableTrace(t *testing.T) {
	// GIVEN a CSV sink with a small buffer
	stem := filepath.Join(t.TempDir(), "run")
	s, err := NewCSVSink(stem)
	if err != nil {
		t.Fatal(err)
	}
	s.bufferSize = 2

	// WHEN records are written and the sink closed
	for _, r := range sampleRecords() {
		s.RecordOutcome(r)
	}
	s.RecordCounter("collisions", 5)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// THEN reading the file back yields the same records
	if s.Path() != stem+".csv" {
		t.Errorf("Path() = %s", s.Path())
	}
	got, err := ReadCSV(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, sampleRecords()) {
		t.Errorf("ReadCSV() = %+v\nwant %+v", got, sampleRecords())
	}
}

func TestCSVSink_HeaderFirst(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "hdr")
	s, err := NewCSVSink(stem)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(stem + ".csv")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Event,Node,Counter,Arrival,Dead,Departure,Pilot\n" {
		t.Errorf("file = %q", data)
	}
}

func TestCSVSink_RefusesExistingFile(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "taken")
	if err := os.WriteFile(stem+".csv", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewCSVSink(stem); err == nil {
		t.Error("expected an error for an existing trace file")
	}
}

func TestCSVSink_CloseIsIdempotent(t *testing.T) {
	s, err := NewCSVSink(filepath.Join(t.TempDir(), "twice"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	// records after close are ignored
	s.RecordOutcome(sampleRecords()[0])
}

func TestReadCSV_RejectsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	body := "Event,Node,Counter,Arrival,Dead,Departure,Pilot\nurllc,zero,1,0,1,1,0\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadCSV(path); err == nil {
		t.Error("expected a parse error")
	}
}
