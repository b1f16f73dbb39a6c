package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/campuslink/api/internal/domain"
	"github.com/campuslink/api/internal/kv"
)

const pendingKey = "pending_signups"

// PendingStore keeps pending signups in the local kv layer, keyed by
// normalized email, regardless of which backend holds the user
// collection. At most one record exists per email. Unlike collection
// reads, a malformed record set is an error: verification is an auth
// check and never fails open.
type PendingStore struct {
	kv kv.Store
}

// NewPendingStore constructs a PendingStore over the kv layer.
func NewPendingStore(store kv.Store) *PendingStore {
	return &PendingStore{kv: store}
}

func (p *PendingStore) read(ctx context.Context) (map[string]domain.PendingSignup, error) {
	raw, err := p.kv.Get(ctx, pendingKey)
	if errors.Is(err, kv.ErrNoKey) {
		return map[string]domain.PendingSignup{}, nil
	}
	if err != nil {
		return nil, err
	}
	var pendings map[string]domain.PendingSignup
	if err := json.Unmarshal(raw, &pendings); err != nil {
		return nil, fmt.Errorf("decode pending signups: %w", err)
	}
	if pendings == nil {
		pendings = map[string]domain.PendingSignup{}
	}
	return pendings, nil
}

func (p *PendingStore) write(ctx context.Context, pendings map[string]domain.PendingSignup) error {
	raw, err := json.Marshal(pendings)
	if err != nil {
		return err
	}
	return p.kv.Set(ctx, pendingKey, raw)
}

// Get returns the pending signup for the email, or ErrNotFound.
func (p *PendingStore) Get(ctx context.Context, email string) (*domain.PendingSignup, error) {
	pendings, err := p.read(ctx)
	if err != nil {
		return nil, err
	}
	pending, ok := pendings[normalizePendingKey(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return &pending, nil
}

// Put stores the pending signup, overwriting any previous record for the
// same email.
func (p *PendingStore) Put(ctx context.Context, pending domain.PendingSignup) error {
	pendings, err := p.read(ctx)
	if err != nil {
		return err
	}
	pendings[normalizePendingKey(pending.Email)] = pending
	return p.write(ctx, pendings)
}

// Delete removes the pending signup for the email, if any.
func (p *PendingStore) Delete(ctx context.Context, email string) error {
	pendings, err := p.read(ctx)
	if err != nil {
		return err
	}
	delete(pendings, normalizePendingKey(email))
	return p.write(ctx, pendings)
}

func normalizePendingKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
