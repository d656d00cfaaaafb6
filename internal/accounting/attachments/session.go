package attachments

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type sessionState int

const (
	stateActive sessionState = iota
	stateSubmitted
	stateAbandoned
)

// Session is one composition session. It exclusively owns the handles it
// holds until they are detached, submitted to a voucher or abandoned.
type Session struct {
	id    uuid.UUID
	owner string
	store *Store

	lastSeen atomic.Int64

	mu    sync.Mutex
	state sessionState
	order []uuid.UUID
	held  map[uuid.UUID]Attachment
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Owner returns the actor that began the session.
func (s *Session) Owner() string { return s.owner }

// Held returns the attachments currently owned by the session in attach order.
func (s *Session) Held() []Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Attachment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.held[id])
	}
	return out
}

// Attach reads f, stores it under the session and returns the new handle.
func (s *Session) Attach(ctx context.Context, f File) (Attachment, error) {
	name := strings.TrimSpace(filepath.Base(strings.ReplaceAll(f.Name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return Attachment{}, fmt.Errorf("%w: file name required", shared.ErrValidation)
	}
	if f.Content == nil {
		return Attachment{}, fmt.Errorf("%w: file content required", shared.ErrValidation)
	}
	data, err := io.ReadAll(io.LimitReader(f.Content, s.store.maxBytes+1))
	if err != nil {
		return Attachment{}, fmt.Errorf("attachments: read upload: %w", err)
	}
	if len(data) == 0 {
		return Attachment{}, fmt.Errorf("%w: file %s is empty", shared.ErrValidation, name)
	}
	if int64(len(data)) > s.store.maxBytes {
		return Attachment{}, fmt.Errorf("%w: file %s exceeds %d bytes", shared.ErrValidation, name, s.store.maxBytes)
	}
	contentType := resolveContentType(f.ContentType, name, data[:min(len(data), 512)])
	if !contentTypeAllowed(contentType) {
		return Attachment{}, fmt.Errorf("%w: content type %s not accepted", shared.ErrValidation, contentType)
	}
	sum := blake2b.Sum256(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return Attachment{}, err
	}
	att := Attachment{
		ID:          uuid.New(),
		FileName:    name,
		ContentType: contentType,
		ByteSize:    int64(len(data)),
		Checksum:    hex.EncodeToString(sum[:]),
		CreatedAt:   s.store.now(),
	}
	att.BlobRef = sessionKey(s.id, att.ID)
	if err := s.store.blobs.Put(ctx, att.BlobRef, data, s.store.ttl); err != nil {
		return Attachment{}, err
	}
	s.held[att.ID] = att
	s.order = append(s.order, att.ID)
	s.touch()
	s.store.adjustHeld(1)
	return att, nil
}

// Detach releases a single handle. The handle is dropped locally even when
// the blob delete fails; the session TTL reaps the key.
func (s *Session) Detach(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return err
	}
	att, ok := s.held[id]
	if !ok {
		return fmt.Errorf("%w: attachment %s", shared.ErrNotFound, id)
	}
	s.dropLocked(id)
	s.touch()
	return s.store.blobs.Delete(ctx, att.BlobRef)
}

// Submit transfers every held handle to voucherID and closes the session.
// On failure the handles already moved are moved back and the session stays
// active so the caller may retry or abandon.
func (s *Session) Submit(ctx context.Context, voucherID int64) ([]Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return nil, err
	}
	out := make([]Attachment, 0, len(s.order))
	for _, id := range s.order {
		att := s.held[id]
		dest := voucherKey(voucherID, id)
		if err := s.store.blobs.Transfer(ctx, att.BlobRef, dest, 0); err != nil {
			s.revertLocked(ctx, out)
			return nil, err
		}
		vid := voucherID
		att.VoucherID = &vid
		att.BlobRef = dest
		out = append(out, att)
	}
	released := len(s.order)
	s.held = map[uuid.UUID]Attachment{}
	s.order = nil
	s.state = stateSubmitted
	s.store.adjustHeld(-released)
	s.store.forget(s.id)
	return out, nil
}

// Abandon releases every held handle and closes the session.
func (s *Session) Abandon(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateActive {
		return nil
	}
	return s.abandonLocked(ctx)
}

// Close releases whatever the session still holds. It is a no-op after
// Submit or Abandon and is meant to be deferred by every composer.
func (s *Session) Close(ctx context.Context) {
	_ = s.Abandon(ctx)
}

func (s *Session) abandonLocked(ctx context.Context) error {
	keys := make([]string, 0, len(s.order))
	for _, id := range s.order {
		keys = append(keys, s.held[id].BlobRef)
	}
	released := len(s.order)
	s.held = map[uuid.UUID]Attachment{}
	s.order = nil
	s.state = stateAbandoned
	s.store.adjustHeld(-released)
	s.store.forget(s.id)
	return s.store.blobs.Delete(ctx, keys...)
}

func (s *Session) revertLocked(ctx context.Context, moved []Attachment) {
	for _, att := range moved {
		_ = s.store.blobs.Transfer(ctx, att.BlobRef, sessionKey(s.id, att.ID), s.store.ttl)
	}
}

func (s *Session) dropLocked(id uuid.UUID) {
	delete(s.held, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.store.adjustHeld(-1)
}

func (s *Session) activeLocked() error {
	switch s.state {
	case stateSubmitted:
		return fmt.Errorf("%w: composition session already submitted", shared.ErrInvalidState)
	case stateAbandoned:
		return fmt.Errorf("%w: composition session abandoned", shared.ErrInvalidState)
	}
	return nil
}

func (s *Session) touch() {
	s.lastSeen.Store(s.store.now().UnixNano())
}

func (s *Session) touchedAt() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Verify recomputes the checksum of data against att.
func Verify(att Attachment, data []byte) error {
	sum := blake2b.Sum256(data)
	if hex.EncodeToString(sum[:]) != att.Checksum {
		return errors.New("attachments: checksum mismatch")
	}
	return nil
}
