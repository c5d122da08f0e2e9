package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

type FirebaseConfig struct {
	DatabaseURL     string
	CredentialsFile string
}

// FirebaseStore talks to the Realtime Database. Transaction maps directly onto
// db.Ref.Transaction, which is an ETag compare-and-swap loop on one path.
type FirebaseStore struct {
	client *db.Client
}

func NewFirebaseStore(ctx context.Context, config *FirebaseConfig) (*FirebaseStore, error) {
	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: config.DatabaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to realtime database: %w", err)
	}

	return &FirebaseStore{client: client}, nil
}

func (f *FirebaseStore) ref(path string) (*db.Ref, error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	return f.client.NewRef(p), nil
}

func (f *FirebaseStore) Get(ctx context.Context, path string, v interface{}) (bool, error) {
	r, err := f.ref(path)
	if err != nil {
		return false, err
	}
	var raw json.RawMessage
	if err := r.Get(ctx, &raw); err != nil {
		return false, err
	}
	node := RawNode{Raw: raw}
	if !node.Exists() {
		return false, nil
	}
	return true, node.Unmarshal(v)
}

func (f *FirebaseStore) Set(ctx context.Context, path string, v interface{}) error {
	r, err := f.ref(path)
	if err != nil {
		return err
	}
	return r.Set(ctx, v)
}

func (f *FirebaseStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	r, err := f.ref(path)
	if err != nil {
		return err
	}
	return r.Update(ctx, fields)
}

func (f *FirebaseStore) Push(ctx context.Context, path string, v interface{}) (string, error) {
	r, err := f.ref(path)
	if err != nil {
		return "", err
	}
	child, err := r.Push(ctx, v)
	if err != nil {
		return "", err
	}
	return child.Key, nil
}

func (f *FirebaseStore) Children(ctx context.Context, path string) (map[string]Node, error) {
	r, err := f.ref(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := r.Get(ctx, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]Node, len(raw))
	for k, v := range raw {
		node := RawNode{Raw: v}
		if node.Exists() {
			out[k] = node
		}
	}
	return out, nil
}

func (f *FirebaseStore) Transaction(ctx context.Context, path string, fn UpdateFunc) (TxResult, error) {
	r, err := f.ref(path)
	if err != nil {
		return TxResult{}, err
	}

	var last, written []byte
	err = r.Transaction(ctx, func(tn db.TransactionNode) (interface{}, error) {
		var current json.RawMessage
		if err := tn.Unmarshal(&current); err != nil {
			return nil, err
		}
		last = current
		next, err := runUpdate(fn, current)
		if err != nil {
			return nil, err
		}
		written = next
		return json.RawMessage(next), nil
	})
	if errors.Is(err, ErrAbort) {
		return TxResult{Committed: false, Value: RawNode{Raw: last}}, nil
	} else if err != nil {
		return TxResult{}, err
	}
	return TxResult{Committed: true, Value: RawNode{Raw: written}}, nil
}
