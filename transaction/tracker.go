// Package transaction issues transaction handles for query results.
//
// A handle names an immutable snapshot of the identifiers a query returned.
// The snapshot is taken when the query completes and does not follow later
// corpus changes, so a handle can be used to reproduce a result set or to
// draw a training sample from it.
package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/storage"
)

// Sampling bounds for training subsets.
const (
	MaxSampleSize = 200
	SampleDivisor = 10 // a sample never exceeds a tenth of the snapshot
)

// Tracker records and retrieves transaction snapshots.
type Tracker struct {
	repo   storage.SnapshotRepository
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Tracker.
type Option func(*Tracker) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) error {
		if logger == nil {
			logger = slog.Default()
		}
		t.logger = logger
		return nil
	}
}

// WithClock sets the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		t.now = now
		return nil
	}
}

// WithHandleGenerator replaces the random handle generator.
// Handles must be unique; a generator that repeats values makes Record fail.
func WithHandleGenerator(gen func() string) Option {
	return func(t *Tracker) error {
		if gen == nil {
			return errors.New("handle generator cannot be nil")
		}
		t.newID = gen
		return nil
	}
}

// NewTracker creates a tracker persisting into repo.
func NewTracker(repo storage.SnapshotRepository, opts ...Option) (*Tracker, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	t := &Tracker{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Identifiers derives the snapshot identifier list from a projection.
// A flat projection contributes its values. Records contribute the finest
// identifier field they carry, checked in SOP, series, study order, or
// their JSON encoding when they carry none.
func Identifiers(p *core.Projection) ([]string, error) {
	if p == nil {
		return nil, ErrNilProjection
	}
	if p.Flat() {
		ids := make([]string, 0, len(p.Values))
		for _, v := range p.Values {
			s, err := identifierString(v)
			if err != nil {
				return nil, err
			}
			ids = append(ids, s)
		}
		return ids, nil
	}

	field := ""
	for _, f := range core.IdentifierFields {
		if slices.Contains(p.Fields, f) {
			field = f
			break
		}
	}
	ids := make([]string, 0, len(p.Records))
	for _, rec := range p.Records {
		if field == "" {
			data, err := json.Marshal(rec)
			if err != nil {
				return nil, fmt.Errorf("encode record: %w", err)
			}
			ids = append(ids, string(data))
			continue
		}
		v, _ := rec.Get(field)
		s, err := identifierString(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, s)
	}
	return ids, nil
}

func identifierString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("encode identifier: %w", err)
		}
		return string(data), nil
	}
}

// Record issues a new handle and persists the projection's identifiers under it.
// Empty projections are recorded as empty snapshots.
func (t *Tracker) Record(ctx context.Context, p *core.Projection) (*core.Snapshot, error) {
	ids, err := Identifiers(p)
	if err != nil {
		return nil, err
	}
	snap := &core.Snapshot{
		Handle:      t.newID(),
		Identifiers: ids,
		Digest:      core.DigestIdentifiers(ids),
		CreatedAt:   t.now().UTC(),
	}
	if err := t.repo.SaveSnapshot(ctx, snap); err != nil {
		t.logger.Error("failed to save snapshot", "handle", snap.Handle, "err", err)
		return nil, fmt.Errorf("save snapshot %s: %w", snap.Handle, err)
	}
	t.logger.Debug("saved transaction", "handle", snap.Handle, "identifiers", len(ids))
	return snap, nil
}

// Load returns the snapshot behind a handle after checking its digest.
func (t *Tracker) Load(ctx context.Context, handle string) (*core.Snapshot, error) {
	snap, err := t.repo.LoadSnapshot(ctx, handle)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", handle, err)
	}
	if core.DigestIdentifiers(snap.Identifiers) != snap.Digest {
		t.logger.Error("snapshot digest mismatch", "handle", handle)
		return nil, fmt.Errorf("%w: %s", ErrDigestMismatch, handle)
	}
	return snap, nil
}

// SampleSize returns how many identifiers a sample of n identifiers holds.
func SampleSize(n int) int {
	return min(MaxSampleSize, n/SampleDivisor)
}

// Sample returns a random subset of a snapshot for training, in snapshot order.
// A nil rng uses a randomly seeded source.
func (t *Tracker) Sample(ctx context.Context, handle string, rng *rand.Rand) ([]string, error) {
	snap, err := t.Load(ctx, handle)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	size := SampleSize(len(snap.Identifiers))
	picks := rng.Perm(len(snap.Identifiers))[:size]
	slices.Sort(picks)

	sample := make([]string, size)
	for i, idx := range picks {
		sample[i] = snap.Identifiers[idx]
	}
	t.logger.Debug("sampled transaction", "handle", handle, "size", size, "of", len(snap.Identifiers))
	return sample, nil
}

// Purge deletes the snapshot behind a handle.
func (t *Tracker) Purge(ctx context.Context, handle string) error {
	err := t.repo.DeleteSnapshot(ctx, handle)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", handle, err)
	}
	t.logger.Info("purged transaction", "handle", handle)
	return nil
}

// List returns every recorded handle.
func (t *Tracker) List(ctx context.Context) ([]string, error) {
	return t.repo.ListSnapshots(ctx)
}
