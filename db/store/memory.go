package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type memDoc struct {
	mu      sync.Mutex
	raw     []byte
	version uint64
}

// MemoryStore keeps documents in process. Each path has its own mutex and a
// version counter that Transaction compares before writing, so concurrent
// transactions on one path behave like the remote CAS while different paths
// proceed in parallel.
type MemoryStore struct {
	mu      sync.Mutex
	docs    map[string]*memDoc
	retries int

	// BeforeCommit, when set, runs after an update function returned and before
	// the version check. Tests use it to slip in a conflicting writer.
	BeforeCommit func(path string)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string]*memDoc),
		retries: DefaultTxRetries,
	}
}

func (m *MemoryStore) doc(path string) *memDoc {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[path]
	if !ok {
		d = &memDoc{}
		m.docs[path] = d
	}
	return d
}

func (m *MemoryStore) Get(ctx context.Context, path string, v interface{}) (bool, error) {
	p, err := CleanPath(path)
	if err != nil {
		return false, err
	}
	d := m.doc(p)
	d.mu.Lock()
	node := RawNode{Raw: d.raw}
	d.mu.Unlock()
	if !node.Exists() {
		return false, nil
	}
	return true, node.Unmarshal(v)
}

func (m *MemoryStore) Set(ctx context.Context, path string, v interface{}) error {
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	d := m.doc(p)
	d.mu.Lock()
	d.raw = raw
	d.version++
	d.mu.Unlock()
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return errors.New("store: update requires at least one field")
	}
	d := m.doc(p)
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, err := mergeFields(d.raw, fields)
	if err != nil {
		return err
	}
	d.raw = raw
	d.version++
	return nil
}

func (m *MemoryStore) Push(ctx context.Context, path string, v interface{}) (string, error) {
	p, err := CleanPath(path)
	if err != nil {
		return "", err
	}
	key := uuid.Must(uuid.NewV7()).String()
	if err := m.Set(ctx, Join(p, key), v); err != nil {
		return "", err
	}
	return key, nil
}

func (m *MemoryStore) Children(ctx context.Context, path string) (map[string]Node, error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	prefix := p + "/"

	m.mu.Lock()
	candidates := make(map[string]*memDoc)
	for k, d := range m.docs {
		if rest, ok := strings.CutPrefix(k, prefix); ok && !strings.Contains(rest, "/") {
			candidates[rest] = d
		}
	}
	m.mu.Unlock()

	out := make(map[string]Node, len(candidates))
	for key, d := range candidates {
		d.mu.Lock()
		node := RawNode{Raw: d.raw}
		d.mu.Unlock()
		if node.Exists() {
			out[key] = node
		}
	}
	return out, nil
}

func (m *MemoryStore) Transaction(ctx context.Context, path string, fn UpdateFunc) (TxResult, error) {
	p, err := CleanPath(path)
	if err != nil {
		return TxResult{}, err
	}
	d := m.doc(p)

	for i := 0; i < m.retries; i++ {
		if err := ctx.Err(); err != nil {
			return TxResult{}, err
		}

		d.mu.Lock()
		current, version := d.raw, d.version
		d.mu.Unlock()

		next, err := runUpdate(fn, current)
		if errors.Is(err, ErrAbort) {
			return TxResult{Committed: false, Value: RawNode{Raw: current}}, nil
		} else if err != nil {
			return TxResult{}, err
		}

		if m.BeforeCommit != nil {
			m.BeforeCommit(p)
		}

		d.mu.Lock()
		if d.version == version {
			d.raw = next
			d.version++
			d.mu.Unlock()
			return TxResult{Committed: true, Value: RawNode{Raw: next}}, nil
		}
		d.mu.Unlock()
	}
	return TxResult{}, ErrTooManyRetries
}

// Version returns how many times path has been written.
func (m *MemoryStore) Version(path string) uint64 {
	p, err := CleanPath(path)
	if err != nil {
		return 0
	}
	d := m.doc(p)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

// SetRetries changes how many times Transaction re-runs its callback after losing a race.
func (m *MemoryStore) SetRetries(n int) {
	if n > 0 {
		m.retries = n
	}
}
