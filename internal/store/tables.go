package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/kamusis/fitmatch/internal/series"
)

// TableMeta describes a stored table.
type TableMeta struct {
	Name     string      `json:"name"`
	Role     series.Role `json:"role"`
	Header   []string    `json:"header"`
	Rows     int         `json:"rows"`
	Checksum string      `json:"checksum,omitempty"`
	// Digest identifies the stored contents; it changes whenever the header
	// or any row changes.
	Digest   string `json:"digest"`
	Source   string `json:"source,omitempty"`
	LoadedAt string `json:"loaded_at"`
}

func tablePrefix(name string) []byte { return []byte("t/" + name + "/") }
func metaKey(name string) []byte     { return []byte("t/" + name + "/meta") }
func rowPrefix(name string) []byte   { return []byte("t/" + name + "/r/") }
func xPrefix(name string) []byte     { return []byte("t/" + name + "/x/") }

func rowKey(name string, seq uint32) []byte {
	return binary.BigEndian.AppendUint32(rowPrefix(name), seq)
}

func xKey(name string, x float64) []byte {
	return binary.BigEndian.AppendUint64(xPrefix(name), series.XKey(x))
}

func encodeRow(row []float64) []byte {
	b := make([]byte, 8*len(row))
	for i, v := range row {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return b
}

func decodeRow(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("row size is not a multiple of 8 bytes: %d", len(b))
	}
	row := make([]float64, len(b)/8)
	for i := range row {
		row[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return row, nil
}

// digest hashes the header and rows of t.
func digest(t *series.Table) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(t.Header, "\x00")))
	for _, row := range t.Rows {
		h.Write(encodeRow(row))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func checkName(name string) error {
	if !series.ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// PutTable replaces the table t.Name with t. checksum and source are kept in
// the metadata so identical reloads can be detected.
func (s *Store) PutTable(ctx context.Context, t *series.Table, checksum, source string) (*TableMeta, error) {
	if err := checkName(t.Name); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.db.DropPrefix(tablePrefix(t.Name)); err != nil {
		return nil, fmt.Errorf("cannot replace table %s: %w", t.Name, err)
	}

	meta := &TableMeta{
		Name:     t.Name,
		Role:     t.Role,
		Header:   t.Header,
		Rows:     len(t.Rows),
		Checksum: checksum,
		Digest:   digest(t),
		Source:   source,
		LoadedAt: time.Now().UTC().Format(time.RFC3339),
	}
	mb, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	seen := make(map[uint64]struct{}, len(t.Rows))
	for i, row := range t.Rows {
		seq := uint32(i)
		if err := wb.Set(rowKey(t.Name, seq), encodeRow(row)); err != nil {
			return nil, fmt.Errorf("cannot write table %s: %w", t.Name, err)
		}
		// First row at an x wins lookups.
		k := series.XKey(row[0])
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if err := wb.Set(xKey(t.Name, row[0]), binary.BigEndian.AppendUint32(nil, seq)); err != nil {
			return nil, fmt.Errorf("cannot write table %s: %w", t.Name, err)
		}
	}
	// Meta goes last: a table without meta is treated as absent.
	if err := wb.Set(metaKey(t.Name), mb); err != nil {
		return nil, fmt.Errorf("cannot write table %s: %w", t.Name, err)
	}
	if err := wb.Flush(); err != nil {
		return nil, fmt.Errorf("cannot write table %s: %w", t.Name, err)
	}
	return meta, nil
}

// TableMeta returns the metadata of a stored table.
func (s *Store) TableMeta(ctx context.Context, name string) (*TableMeta, error) {
	var meta TableMeta
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, metaKey(name), &meta)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// Table loads a whole table in row order.
func (s *Store) Table(ctx context.Context, name string) (*series.Table, error) {
	meta, err := s.TableMeta(ctx, name)
	if err != nil {
		return nil, err
	}
	t := &series.Table{Name: meta.Name, Role: meta.Role, Header: meta.Header}
	t.Rows = make([][]float64, 0, meta.Rows)
	err = s.view(ctx, func(txn *badger.Txn) error {
		return scan(txn, rowPrefix(name), true, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				row, err := decodeRow(val)
				if err != nil {
					return fmt.Errorf("table %s: %w", name, err)
				}
				t.Rows = append(t.Rows, row)
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	if len(t.Rows) != meta.Rows {
		return nil, fmt.Errorf("table %s: metadata lists %d rows, found %d", name, meta.Rows, len(t.Rows))
	}
	return t, nil
}

// Columns returns a stored table column-wise; element 0 is x.
func (s *Store) Columns(ctx context.Context, name string) ([][]float64, error) {
	t, err := s.Table(ctx, name)
	if err != nil {
		return nil, err
	}
	return t.Columns(), nil
}

// Rows returns a stored table row-wise.
func (s *Store) Rows(ctx context.Context, name string) ([][]float64, error) {
	t, err := s.Table(ctx, name)
	if err != nil {
		return nil, err
	}
	return t.Rows, nil
}

// Row returns the first row of table name whose x equals x exactly.
func (s *Store) Row(ctx context.Context, name string, x float64) ([]float64, error) {
	if _, err := s.TableMeta(ctx, name); err != nil {
		return nil, err
	}
	var row []float64
	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(xKey(name, x))
		if err != nil {
			return err
		}
		seqb, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(seqb) != 4 {
			return fmt.Errorf("table %s: corrupt x index entry", name)
		}
		item, err = txn.Get(rowKey(name, binary.BigEndian.Uint32(seqb)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			row, err = decodeRow(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s at x=%g", ErrRowNotFound, name, x)
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Tables lists the metadata of every stored table, ordered by name.
func (s *Store) Tables(ctx context.Context) ([]TableMeta, error) {
	var out []TableMeta
	err := s.view(ctx, func(txn *badger.Txn) error {
		return scan(txn, []byte("t/"), false, func(item *badger.Item) error {
			// Names never contain '/', so a meta key is exactly t/<name>/meta.
			rest := bytes.TrimPrefix(item.Key(), []byte("t/"))
			i := bytes.IndexByte(rest, '/')
			if i < 0 || string(rest[i+1:]) != "meta" {
				return nil
			}
			var meta TableMeta
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &meta) }); err != nil {
				return fmt.Errorf("corrupt table metadata %s: %w", item.Key(), err)
			}
			out = append(out, meta)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DropTable removes a table. Dropping a missing table is not an error.
func (s *Store) DropTable(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.DropPrefix(tablePrefix(name))
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}
