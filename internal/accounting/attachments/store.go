package attachments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

const keyPrefix = "ledger:attachments"

// HeldGauge tracks the number of handles owned by live sessions.
type HeldGauge interface {
	AttachmentsHeld(delta int)
}

// Options configures a Store.
type Options struct {
	MaxBytes   int64
	SessionTTL time.Duration
	Gauge      HeldGauge
}

// Store owns the registry of live composition sessions.
type Store struct {
	blobs    BlobStore
	maxBytes int64
	ttl      time.Duration
	gauge    HeldGauge
	now      func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewStore constructs a Store backed by blobs.
func NewStore(blobs BlobStore, opts Options) *Store {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 << 20
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 2 * time.Hour
	}
	return &Store{
		blobs:    blobs,
		maxBytes: opts.MaxBytes,
		ttl:      opts.SessionTTL,
		gauge:    opts.Gauge,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// WithNow overrides the clock for testing.
func (s *Store) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Begin opens a composition session for owner.
func (s *Store) Begin(ctx context.Context, owner string) *Session {
	sess := &Session{
		id:    uuid.New(),
		owner: owner,
		store: s,
		held:  make(map[uuid.UUID]Attachment),
	}
	sess.touch()
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

// Lookup returns a live session.
func (s *Store) Lookup(id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: composition session %s", shared.ErrNotFound, id)
	}
	sess.touch()
	return sess, nil
}

// End abandons a session by id, releasing every handle it still holds.
func (s *Store) End(ctx context.Context, id uuid.UUID) error {
	sess, err := s.Lookup(id)
	if err != nil {
		return err
	}
	return sess.Abandon(ctx)
}

// Sweep abandons sessions idle for longer than the session TTL and returns
// how many were released.
func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	var stale []*Session
	for _, sess := range s.sessions {
		if now.Sub(sess.touchedAt()) >= s.ttl {
			stale = append(stale, sess)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, sess := range stale {
		if err := sess.Abandon(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return len(stale), errors.Join(errs...)
}

// Live returns the number of open sessions.
func (s *Store) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// MaxBytes returns the per-file size limit.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Read returns the bytes behind a blob reference.
func (s *Store) Read(ctx context.Context, ref string) ([]byte, error) {
	return s.blobs.Get(ctx, ref)
}

// ReleaseVoucher deletes every blob transferred to voucherID.
func (s *Store) ReleaseVoucher(ctx context.Context, voucherID int64) error {
	return s.blobs.DeleteMatching(ctx, fmt.Sprintf("%s:voucher:%d:*", keyPrefix, voucherID))
}

func (s *Store) forget(id uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Store) adjustHeld(delta int) {
	if s.gauge != nil {
		s.gauge.AttachmentsHeld(delta)
	}
}

func sessionKey(sessionID, attachmentID uuid.UUID) string {
	return fmt.Sprintf("%s:session:%s:%s", keyPrefix, sessionID, attachmentID)
}

func voucherKey(voucherID int64, attachmentID uuid.UUID) string {
	return fmt.Sprintf("%s:voucher:%d:%s", keyPrefix, voucherID, attachmentID)
}
