package kv

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SQLiteStore keeps items in a single (pk, sk, attrs) table. Conditional
// writes run read-check-write inside an immediate transaction; SQLite's
// single-writer lock makes that linearizable per key, matching the
// at-most-one-winner semantics the bid path relies on. The connection must be
// opened with _txlock=immediate (see internal/database).
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context, pk, sk string) (Attrs, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT attrs FROM items WHERE pk = ? AND sk = ?`, pk, sk,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return decodeAttrs(raw)
}

func (s *SQLiteStore) Put(ctx context.Context, pk, sk string, attrs Attrs, requireAbsent bool) (PutResult, error) {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return Created, fmt.Errorf("encode attrs: %w", err)
	}

	if requireAbsent {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO items (pk, sk, attrs) VALUES (?, ?, ?)
			 ON CONFLICT (pk, sk) DO NOTHING`, pk, sk, raw)
		if err != nil {
			return Created, fmt.Errorf("put item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return Created, fmt.Errorf("put item: %w", err)
		}
		if n == 0 {
			return AlreadyExists, nil
		}
		return Created, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (pk, sk, attrs) VALUES (?, ?, ?)
		 ON CONFLICT (pk, sk) DO UPDATE SET attrs = excluded.attrs`, pk, sk, raw)
	if err != nil {
		return Created, fmt.Errorf("put item: %w", err)
	}
	return Created, nil
}

func (s *SQLiteStore) ConditionalUpdate(ctx context.Context, pk, sk string, set Attrs, remove []string, cond *Condition) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	attrs := Attrs{}
	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT attrs FROM items WHERE pk = ? AND sk = ?`, pk, sk,
	).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// treated as "every attribute absent"
	case err != nil:
		return false, fmt.Errorf("read item: %w", err)
	default:
		if attrs, err = decodeAttrs(raw); err != nil {
			return false, err
		}
	}

	if !cond.holds(attrs) {
		return false, nil
	}

	for k, v := range set {
		attrs[k] = v
	}
	for _, k := range remove {
		delete(attrs, k)
	}

	merged, err := json.Marshal(attrs)
	if err != nil {
		return false, fmt.Errorf("encode attrs: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO items (pk, sk, attrs) VALUES (?, ?, ?)
		 ON CONFLICT (pk, sk) DO UPDATE SET attrs = excluded.attrs`, pk, sk, merged); err != nil {
		return false, fmt.Errorf("write item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit update: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) QueryByPrefix(ctx context.Context, pk, skPrefix string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sk, attrs FROM items
		 WHERE pk = ? AND substr(sk, 1, length(?)) = ?
		 ORDER BY sk`, pk, skPrefix, skPrefix)
	if err != nil {
		return nil, fmt.Errorf("query prefix: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var sk string
		var raw []byte
		if err := rows.Scan(&sk, &raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		attrs, err := decodeAttrs(raw)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{PK: pk, SK: sk, Attrs: attrs})
	}
	return items, rows.Err()
}

func (s *SQLiteStore) ScanWithFilter(ctx context.Context, attr string, equals any, limit int) ([]Item, error) {
	// JSON booleans compare as 0/1 through json_extract.
	if b, ok := equals.(bool); ok {
		if b {
			equals = 1
		} else {
			equals = 0
		}
	}

	query := `SELECT pk, sk, attrs FROM items WHERE json_extract(attrs, ?) = ?`
	args := []any{"$." + attr, equals}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var raw []byte
		if err := rows.Scan(&it.PK, &it.SK, &raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if it.Attrs, err = decodeAttrs(raw); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (c *Condition) holds(attrs Attrs) bool {
	if c == nil {
		return true
	}
	current, present := attrs.Int64(c.Attr)
	if !present {
		return c.OrAbsent
	}
	return current < c.LessThan
}

func decodeAttrs(raw []byte) (Attrs, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var attrs Attrs
	if err := dec.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("decode attrs: %w", err)
	}
	return attrs, nil
}
