package trace

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// CSVSink buffers outcome records and writes them to a CSV file. The file
// carries outcomes only; counters are dropped.
type CSVSink struct {
	path       string
	file       *os.File
	w          *csv.Writer
	buffer     []OutcomeRecord
	bufferSize int
	err        error
	closed     bool
}

// NewCSVSink creates <stem>.csv and writes the header. An empty stem picks
// a unique generated name. An existing file is never overwritten.
func NewCSVSink(stem string) (*CSVSink, error) {
	if stem == "" {
		stem = "pilots_trace_" + xid.New().String()
	}
	filename := stem + ".csv"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("trace file %s already exists", filename)
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("creating trace file: %w", err)
	}
	s := &CSVSink{
		path:       filename,
		file:       file,
		w:          csv.NewWriter(file),
		bufferSize: 1000,
	}
	if err := s.w.Write(csvHeader); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing trace header: %w", err)
	}
	atexit.Register(func() { s.Close() })
	return s, nil
}

// Path returns the file the sink writes to.
func (s *CSVSink) Path() string { return s.path }

// RecordOutcome buffers a record, flushing when the buffer is full.
func (s *CSVSink) RecordOutcome(record OutcomeRecord) {
	if s.closed {
		return
	}
	s.buffer = append(s.buffer, record)
	if len(s.buffer) >= s.bufferSize {
		s.Flush()
	}
}

func (s *CSVSink) RecordCounter(string, int64) {}

// Flush writes all buffered records.
func (s *CSVSink) Flush() {
	if s.err != nil {
		s.buffer = nil
		return
	}
	for _, r := range s.buffer {
		if err := s.w.Write(csvRow(r)); err != nil {
			s.err = fmt.Errorf("writing trace row: %w", err)
			break
		}
	}
	s.buffer = nil
	s.w.Flush()
	if err := s.w.Error(); err != nil && s.err == nil {
		s.err = fmt.Errorf("flushing trace: %w", err)
	}
}

// Close flushes pending records and closes the file. It is safe to call
// more than once.
func (s *CSVSink) Close() error {
	if s.closed {
		return s.err
	}
	s.Flush()
	s.closed = true
	if err := s.file.Close(); err != nil && s.err == nil {
		s.err = fmt.Errorf("closing trace file: %w", err)
	}
	return s.err
}

func csvRow(r OutcomeRecord) []string {
	return []string{
		r.Event,
		strconv.Itoa(r.Node),
		strconv.FormatInt(r.Counter, 10),
		strconv.FormatFloat(r.Arrival, 'f', -1, 64),
		strconv.FormatFloat(r.Dead, 'f', -1, 64),
		strconv.FormatFloat(r.Departure, 'f', -1, 64),
		strconv.Itoa(r.Pilot),
	}
}

// ReadCSV loads outcome records written by CSVSink. A record is considered
// satisfied when it carries a pilot.
func ReadCSV(path string) ([]OutcomeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing trace: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("trace %s has no header", path)
	}
	out := make([]OutcomeRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		r, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("trace %s line %d: %w", path, i+2, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func parseRow(row []string) (OutcomeRecord, error) {
	var r OutcomeRecord
	if len(row) != len(csvHeader) {
		return r, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(row))
	}
	var err error
	r.Event = row[0]
	if r.Node, err = strconv.Atoi(row[1]); err != nil {
		return r, err
	}
	if r.Counter, err = strconv.ParseInt(row[2], 10, 64); err != nil {
		return r, err
	}
	if r.Arrival, err = strconv.ParseFloat(row[3], 64); err != nil {
		return r, err
	}
	if r.Dead, err = strconv.ParseFloat(row[4], 64); err != nil {
		return r, err
	}
	if r.Departure, err = strconv.ParseFloat(row[5], 64); err != nil {
		return r, err
	}
	if r.Pilot, err = strconv.Atoi(row[6]); err != nil {
		return r, err
	}
	r.Satisfied = r.Pilot >= 0
	return r, nil
}
