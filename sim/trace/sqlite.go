package trace

import (
	"database/sql"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// SQLiteSink writes outcome records and counter deltas to a SQLite database.
// Records are buffered and inserted in one transaction per batch.
type SQLiteSink struct {
	*sql.DB
	outcomeStmt *sql.Stmt
	counterStmt *sql.Stmt

	dbName    string
	outcomes  []OutcomeRecord
	counters  map[string]int64
	batchSize int
	err       error
	closed    bool
}

// NewSQLiteSink creates <stem>.sqlite3 with the outcome and counter tables.
// An empty stem picks a unique generated name. An existing database is
// never reused.
func NewSQLiteSink(stem string) (*SQLiteSink, error) {
	if stem == "" {
		stem = "pilots_trace_" + xid.New().String()
	}
	s := &SQLiteSink{
		dbName:    stem + ".sqlite3",
		counters:  make(map[string]int64),
		batchSize: 100000,
	}
	if err := s.init(); err != nil {
		if s.DB != nil {
			s.DB.Close()
		}
		return nil, err
	}
	atexit.Register(func() { s.Close() })
	return s, nil
}

func (s *SQLiteSink) init() error {
	if _, err := os.Stat(s.dbName); err == nil {
		return fmt.Errorf("trace database %s already exists", s.dbName)
	}
	db, err := sql.Open("sqlite3", s.dbName)
	if err != nil {
		return fmt.Errorf("opening trace database: %w", err)
	}
	s.DB = db

	if _, err := s.Exec(`
		create table outcome
		(
			event     varchar(16) not null,
			node      integer     not null,
			counter   integer     not null,
			arrival   float       not null,
			dead      float       not null,
			departure float       not null,
			pilot     integer     not null,
			satisfied integer     not null
		);
	`); err != nil {
		return fmt.Errorf("creating outcome table: %w", err)
	}
	if _, err := s.Exec(`create index outcome_event_index on outcome (event);`); err != nil {
		return fmt.Errorf("creating outcome index: %w", err)
	}
	if _, err := s.Exec(`
		create table counter
		(
			name  varchar(64) primary key,
			total integer     not null
		);
	`); err != nil {
		return fmt.Errorf("creating counter table: %w", err)
	}

	if s.outcomeStmt, err = s.Prepare(`INSERT INTO outcome VALUES (?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
		return fmt.Errorf("preparing outcome insert: %w", err)
	}
	if s.counterStmt, err = s.Prepare(
		`INSERT INTO counter (name, total) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET total = total + excluded.total`); err != nil {
		return fmt.Errorf("preparing counter upsert: %w", err)
	}
	return nil
}

// Path returns the database file name.
func (s *SQLiteSink) Path() string { return s.dbName }

// RecordOutcome buffers a record, flushing when the batch is full.
func (s *SQLiteSink) RecordOutcome(record OutcomeRecord) {
	if s.closed {
		return
	}
	s.outcomes = append(s.outcomes, record)
	if len(s.outcomes) >= s.batchSize {
		s.Flush()
	}
}

// RecordCounter accumulates delta; totals are written on Flush.
func (s *SQLiteSink) RecordCounter(name string, delta int64) {
	if s.closed {
		return
	}
	s.counters[name] += delta
}

// Flush writes all buffered records and counter deltas in one transaction.
func (s *SQLiteSink) Flush() {
	if s.err != nil || (len(s.outcomes) == 0 && len(s.counters) == 0) {
		return
	}
	if err := s.flush(); err != nil {
		s.err = err
	}
	s.outcomes = nil
	s.counters = make(map[string]int64)
}

func (s *SQLiteSink) flush() error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("beginning trace transaction: %w", err)
	}
	outcomeStmt := tx.Stmt(s.outcomeStmt)
	for _, r := range s.outcomes {
		satisfied := 0
		if r.Satisfied {
			satisfied = 1
		}
		if _, err := outcomeStmt.Exec(r.Event, r.Node, r.Counter, r.Arrival, r.Dead, r.Departure, r.Pilot, satisfied); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting outcome %s: %w", r, err)
		}
	}
	counterStmt := tx.Stmt(s.counterStmt)
	for name, delta := range s.counters {
		if _, err := counterStmt.Exec(name, delta); err != nil {
			tx.Rollback()
			return fmt.Errorf("updating counter %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing trace transaction: %w", err)
	}
	return nil
}

// Close flushes and closes the database. It is safe to call more than once.
func (s *SQLiteSink) Close() error {
	if s.closed {
		return s.err
	}
	s.Flush()
	s.closed = true
	if err := s.DB.Close(); err != nil && s.err == nil {
		s.err = fmt.Errorf("closing trace database: %w", err)
	}
	return s.err
}

// ReadSQLite loads all outcome records from a database written by SQLiteSink.
func ReadSQLite(path string) ([]OutcomeRecord, map[string]int64, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening trace database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT event, node, counter, arrival, dead, departure, pilot, satisfied FROM outcome`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []OutcomeRecord
	for rows.Next() {
		var r OutcomeRecord
		var satisfied int
		if err := rows.Scan(&r.Event, &r.Node, &r.Counter, &r.Arrival, &r.Dead, &r.Departure, &r.Pilot, &satisfied); err != nil {
			return nil, nil, fmt.Errorf("scanning outcome: %w", err)
		}
		r.Satisfied = satisfied == 1
		outcomes = append(outcomes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading outcomes: %w", err)
	}

	crows, err := db.Query(`SELECT name, total FROM counter`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying counters: %w", err)
	}
	defer crows.Close()
	counters := make(map[string]int64)
	for crows.Next() {
		var name string
		var total int64
		if err := crows.Scan(&name, &total); err != nil {
			return nil, nil, fmt.Errorf("scanning counter: %w", err)
		}
		counters[name] = total
	}
	return outcomes, counters, crows.Err()
}
