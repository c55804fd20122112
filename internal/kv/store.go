// Package kv is the single-table item store every component bottoms out in.
// Items are addressed by (partition key, sort key) and hold a flat attribute
// map. The only concurrency primitive offered is the single-key conditional
// write; there are no multi-key transactions.
package kv

import (
	"context"
	"encoding/json"
)

type Attrs map[string]any

type Item struct {
	PK    string
	SK    string
	Attrs Attrs
}

// PutResult is the explicit outcome of a Put with requireAbsent: losing the
// create race is a normal result, not an error.
type PutResult int

const (
	Created PutResult = iota
	AlreadyExists
)

// Condition gates a ConditionalUpdate on one numeric attribute of the
// existing item. The update applies when the attribute is absent (only if
// OrAbsent is set) or its current value is strictly less than LessThan.
// An item that does not exist at all counts as "attribute absent".
type Condition struct {
	Attr     string
	LessThan int64
	OrAbsent bool
}

type Store interface {
	// Get returns the item's attributes, or nil when the item is absent.
	Get(ctx context.Context, pk, sk string) (Attrs, error)

	// Put writes the full item. With requireAbsent it creates the item only
	// if no item exists under (pk, sk) and reports AlreadyExists otherwise.
	Put(ctx context.Context, pk, sk string, attrs Attrs, requireAbsent bool) (PutResult, error)

	// ConditionalUpdate merges set into the item's attributes and deletes the
	// remove keys, atomically with the predicate check. A nil cond always
	// applies (plain merge upsert). Returns false when the predicate failed.
	ConditionalUpdate(ctx context.Context, pk, sk string, set Attrs, remove []string, cond *Condition) (bool, error)

	// QueryByPrefix returns all items under pk whose sort key starts with
	// skPrefix, ordered by sort key.
	QueryByPrefix(ctx context.Context, pk, skPrefix string) ([]Item, error)

	// ScanWithFilter returns items whose attribute equals the given value.
	// Full-table scan; only for low-volume lookups. limit <= 0 means no limit.
	ScanWithFilter(ctx context.Context, attr string, equals any, limit int) ([]Item, error)
}

// Attribute accessors tolerate the numeric representations the different
// backends hand back (int64 from writers, json.Number from SQLite rows,
// float64 from DynamoDB unmarshalling).

func (a Attrs) String(key string) string {
	v, ok := a[key].(string)
	if !ok {
		return ""
	}
	return v
}

func (a Attrs) Int64(key string) (int64, bool) {
	return asInt64(a[key])
}

func (a Attrs) Int(key string) int {
	n, _ := asInt64(a[key])
	return int(n)
}

func (a Attrs) Bool(key string) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	default:
		n, ok := asInt64(v)
		return ok && n != 0
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func (a Attrs) clone() Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
