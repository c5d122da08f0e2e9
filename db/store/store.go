package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Documents are shared with the web client, which reads amounts as numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// DefaultTxRetries matches the retry budget of the Realtime Database client.
const DefaultTxRetries = 25

var (
	// ErrAbort is returned by an UpdateFunc to abandon a transaction without writing.
	ErrAbort = errors.New("store: transaction aborted by update function")
	// ErrTooManyRetries is returned when a transaction keeps losing the race for its path.
	ErrTooManyRetries = errors.New("store: transaction aborted after failed retries")
	ErrInvalidPath    = errors.New("store: invalid path")
)

// Node is the raw value stored at a path.
type Node interface {
	Exists() bool
	Unmarshal(v interface{}) error
}

// UpdateFunc receives the current value of a path and returns its replacement.
// Returning ErrAbort (or any other error) abandons the transaction.
type UpdateFunc func(current Node) (interface{}, error)

// TxResult reports the outcome of a Transaction call. Value is the committed
// value when Committed is true and the last observed value otherwise.
type TxResult struct {
	Committed bool
	Value     Node
}

// Store is a document store addressed by slash-delimited paths. The only
// atomic primitive it offers is Transaction, a compare-and-swap on one path.
type Store interface {
	// Get loads the value at path into v and reports whether it existed.
	Get(ctx context.Context, path string, v interface{}) (bool, error)
	// Set overwrites the value at path.
	Set(ctx context.Context, path string, v interface{}) error
	// Update merges fields into the object at path, creating it when absent.
	Update(ctx context.Context, path string, fields map[string]interface{}) error
	// Push stores v under a newly generated child of path and returns the child key.
	Push(ctx context.Context, path string, v interface{}) (string, error)
	// Children returns the direct children of path keyed by their last segment.
	Children(ctx context.Context, path string) (map[string]Node, error)
	// Transaction runs fn against the current value of path and writes its result
	// only if nothing else wrote to path in between, retrying on conflict.
	Transaction(ctx context.Context, path string, fn UpdateFunc) (TxResult, error)
}

// RawNode is a Node backed by a JSON document. A nil Raw means the path is empty.
type RawNode struct {
	Raw []byte
}

func (n RawNode) Exists() bool {
	return len(n.Raw) > 0 && string(n.Raw) != "null"
}

func (n RawNode) Unmarshal(v interface{}) error {
	if !n.Exists() {
		return nil
	}
	return json.Unmarshal(n.Raw, v)
}

// CleanPath trims surrounding slashes and rejects empty segments.
func CleanPath(path string) (string, error) {
	p := strings.Trim(path, "/")
	if p == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return p, nil
}

// Join builds a path from segments.
func Join(segs ...string) string {
	return strings.Join(segs, "/")
}

// runUpdate invokes fn and encodes its result. A nil result is stored as JSON null.
func runUpdate(fn UpdateFunc, current []byte) ([]byte, error) {
	next, err := fn(RawNode{Raw: current})
	if err != nil {
		return nil, err
	}
	return json.Marshal(next)
}

// mergeFields applies a shallow merge of fields onto the JSON object in current.
// A nil field removes the key.
func mergeFields(current []byte, fields map[string]interface{}) ([]byte, error) {
	doc := map[string]interface{}{}
	if (RawNode{Raw: current}).Exists() {
		dec := json.NewDecoder(bytes.NewReader(current))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("store: value is not an object: %w", err)
		}
	}
	for k, v := range fields {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	return json.Marshal(doc)
}

// Overlay encodes v as a JSON object and lays its fields over the object in
// current, so fields v does not model survive a rewrite.
func Overlay(current Node, v interface{}) (json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	if current.Exists() {
		if err := current.Unmarshal(&doc); err != nil {
			return nil, fmt.Errorf("store: value is not an object: %w", err)
		}
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("store: overlay value is not an object: %w", err)
	}
	for k, f := range fields {
		doc[k] = f
	}
	return json.Marshal(doc)
}
