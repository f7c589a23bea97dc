package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/kamusis/fitmatch/internal/fit"
)

// Destination names a result set. Production and validation runs never share
// records.
type Destination string

const (
	Production Destination = "production"
	Validation Destination = "validation"
)

// ParseDestination accepts "production" or "validation" (case-insensitive).
// The empty string means Production.
func ParseDestination(s string) (Destination, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Production):
		return Production, nil
	case string(Validation):
		return Validation, nil
	default:
		return "", fmt.Errorf("unknown result destination %q (want production or validation)", s)
	}
}

func (d Destination) String() string { return string(d) }

func resultPrefix(d Destination) []byte { return []byte("r/" + string(d) + "/") }
func recordPrefix(d Destination) []byte { return []byte("r/" + string(d) + "/a/") }
func runKey(d Destination) []byte       { return []byte("r/" + string(d) + "/run") }

func recordKey(d Destination, seq uint32) []byte {
	return binary.BigEndian.AppendUint32(recordPrefix(d), seq)
}

// Record is one stored assignment.
type Record struct {
	Seq   int    `json:"seq"`
	RunID string `json:"run_id"`
	fit.Assignment
}

// RunTables names the tables a run read from.
type RunTables struct {
	Training string `json:"training"`
	Ideal    string `json:"ideal"`
	Test     string `json:"test"`
}

// RunMeta describes the run that filled a destination.
type RunMeta struct {
	RunID     string    `json:"run_id"`
	CreatedAt string    `json:"created_at"`
	Tables    RunTables `json:"tables"`
	// IdealDigest is the TableMeta.Digest of the ideal table the run read.
	IdealDigest string          `json:"ideal_digest"`
	Matches     []fit.Match     `json:"matches"`
	Thresholds  map[int]float64 `json:"thresholds"`
	Points      int             `json:"points"`
	Accepted    int             `json:"accepted"`
	Rejected    int             `json:"rejected"`
	Misses      int             `json:"lookup_misses"`
}

// Batch buffers assignments until Commit writes them all at once.
type Batch struct {
	s       *Store
	dest    Destination
	run     RunMeta
	pending []fit.Assignment
}

// Begin starts a batch for dest. run is stored alongside the records.
func (s *Store) Begin(dest Destination, run RunMeta) *Batch {
	return &Batch{s: s, dest: dest, run: run}
}

// Append queues an assignment.
func (b *Batch) Append(a fit.Assignment) {
	b.pending = append(b.pending, a)
}

// Len returns the number of queued assignments.
func (b *Batch) Len() int {
	return len(b.pending)
}

// Commit writes every queued assignment and the run record in one
// transaction. When the destination already holds results it returns a
// *ConflictError and writes nothing.
func (b *Batch) Commit(ctx context.Context) (int, error) {
	err := b.s.update(ctx, func(txn *badger.Txn) error {
		existing, err := countRecords(txn, b.dest)
		if err != nil {
			return err
		}
		_, runErr := txn.Get(runKey(b.dest))
		if runErr != nil && !errors.Is(runErr, badger.ErrKeyNotFound) {
			return runErr
		}
		if existing > 0 || runErr == nil {
			return &ConflictError{
				Destination: b.dest,
				Expected:    len(b.pending),
				Observed:    existing + len(b.pending),
			}
		}

		for i, a := range b.pending {
			v, err := json.Marshal(Record{Seq: i, RunID: b.run.RunID, Assignment: a})
			if err != nil {
				return err
			}
			if err := txn.Set(recordKey(b.dest, uint32(i)), v); err != nil {
				return err
			}
		}
		rv, err := json.Marshal(b.run)
		if err != nil {
			return err
		}
		return txn.Set(runKey(b.dest), rv)
	})
	if err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			return 0, err
		}
		return 0, fmt.Errorf("cannot commit results to %s: %w", b.dest, err)
	}
	n := len(b.pending)
	b.pending = nil
	return n, nil
}

func countRecords(txn *badger.Txn, d Destination) (int, error) {
	n := 0
	err := scan(txn, recordPrefix(d), false, func(*badger.Item) error {
		n++
		return nil
	})
	return n, err
}

// Results returns the stored records of dest in commit order.
func (s *Store) Results(ctx context.Context, dest Destination) ([]Record, error) {
	var out []Record
	err := s.view(ctx, func(txn *badger.Txn) error {
		return scan(txn, recordPrefix(dest), true, func(item *badger.Item) error {
			var r Record
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &r) }); err != nil {
				return fmt.Errorf("corrupt result record in %s: %w", dest, err)
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Run returns the run record of dest, or nil when dest is empty.
func (s *Store) Run(ctx context.Context, dest Destination) (*RunMeta, error) {
	var run RunMeta
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, runKey(dest), &run)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// CountResults returns the number of records stored in dest.
func (s *Store) CountResults(ctx context.Context, dest Destination) (int, error) {
	var n int
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		n, err = countRecords(txn, dest)
		return err
	})
	return n, err
}

// ClearResults removes every record and the run record of dest and returns
// how many records were removed.
func (s *Store) ClearResults(ctx context.Context, dest Destination) (int, error) {
	n, err := s.CountResults(ctx, dest)
	if err != nil {
		return 0, err
	}
	if err := s.db.DropPrefix(resultPrefix(dest)); err != nil {
		return 0, fmt.Errorf("cannot clear %s: %w", dest, err)
	}
	return n, nil
}
