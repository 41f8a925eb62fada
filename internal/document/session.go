// Package document orchestrates the lifecycle of the currently edited file:
// open, in-memory buffer, debounced autosave, close.
package document

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloudpad/internal/remote"
	"cloudpad/pkg/models"

	"github.com/rs/zerolog"
)

// State is the session lifecycle state
type State int

const (
	StateClosed State = iota
	StateLoading
	StateReady
	StateSaving
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

var (
	// ErrDeleted is returned by Save once the backing file has been
	// deleted or renamed away. The session never tries to resurrect it.
	ErrDeleted = errors.New("document backing file no longer exists")

	// ErrNoDocument is returned when no document is open
	ErrNoDocument = errors.New("no document open")
)

// DefaultAutosaveDelay is the quiet period after the last edit before an
// automatic save fires.
const DefaultAutosaveDelay = 2 * time.Second

// Session is the single open document. Edits land in the in-memory buffer
// and are flushed by a debounced save; rapid edits coalesce into one write
// and at most one save is in flight at a time.
type Session struct {
	storage       remote.Storage
	logger        zerolog.Logger
	autosaveDelay time.Duration

	// onSaveError makes failed background saves loud. Silent save failure
	// is a data-loss risk, so the default handler logs at error level.
	onSaveError func(error)

	mu      sync.Mutex
	state   State
	node    models.FileNode
	buffer  string
	dirty   bool
	deleted bool
	saving  bool
	timer   *time.Timer
	gen     int // open generation; stale reads from a superseded open are discarded
}

// NewSession creates a session over a storage adapter
func NewSession(storage remote.Storage, autosaveDelay time.Duration, logger zerolog.Logger) *Session {
	s := &Session{
		storage:       storage,
		logger:        logger.With().Str("component", "document").Logger(),
		autosaveDelay: autosaveDelay,
	}
	if s.autosaveDelay <= 0 {
		s.autosaveDelay = DefaultAutosaveDelay
	}
	s.onSaveError = func(err error) {
		s.logger.Error().Err(err).Msg("autosave failed")
	}
	return s
}

// SetSaveErrorHandler replaces the handler invoked when a debounced save
// fails in the background.
func (s *Session) SetSaveErrorHandler(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.onSaveError = fn
	}
}

// Open loads a file into the session. Metadata is checked first: a
// non-text file is rejected outright and its content is never fetched.
// Cancelling ctx aborts the load without touching session state.
func (s *Session) Open(ctx context.Context, id models.FileID) (string, error) {
	s.mu.Lock()
	s.closeLocked()
	s.state = StateLoading
	gen := s.gen
	s.mu.Unlock()

	md, err := s.storage.Metadata(ctx, id)
	if err != nil {
		s.settleFailedOpen(gen, StateClosed)
		return "", err
	}
	if md.IsDir() || !models.IsSupportedMimeType(md.MimeType) {
		s.settleFailedOpen(gen, StateRejected)
		return "", fmt.Errorf("%w: %s", remote.ErrUnsupportedFormat, md.MimeType)
	}

	content, err := s.storage.ReadContent(ctx, id)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Caller abandoned the open; no state to apply.
			s.settleFailedOpen(gen, StateClosed)
			return "", err
		}
		s.settleFailedOpen(gen, StateClosed)
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// A newer Open or Close superseded this load; drop the result.
		return "", context.Canceled
	}
	s.state = StateReady
	s.node = md
	s.node.ID = id
	s.buffer = content
	s.dirty = false
	s.deleted = false
	return content, nil
}

// settleFailedOpen moves the session out of Loading unless a newer open
// already owns the state.
func (s *Session) settleFailedOpen(gen int, to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.state == StateLoading {
		s.state = to
	}
}

// Edit replaces the buffer, marks it dirty and (re)arms the debounced
// autosave. Each edit pushes the save out by the full quiet period, which
// is also what guarantees at most one save per burst of typing.
func (s *Session) Edit(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady && s.state != StateSaving {
		return ErrNoDocument
	}
	s.buffer = text
	s.dirty = true

	if s.timer != nil {
		s.timer.Stop()
	}
	gen := s.gen
	s.timer = time.AfterFunc(s.autosaveDelay, func() {
		s.autosave(gen)
	})
	return nil
}

func (s *Session) autosave(gen int) {
	s.mu.Lock()
	stale := s.gen != gen || !s.dirty
	s.mu.Unlock()
	if stale {
		return
	}
	if err := s.Save(context.Background()); err != nil {
		s.onSaveError(err)
	}
}

// Save flushes the buffer to the provider. It refuses, without any network
// call, to write a document whose backing file is gone, and collapses into a
// no-op when a save is already in flight (the debounce re-arms for the
// newer content).
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateLoading || s.node.ID.IsZero() {
		s.mu.Unlock()
		return ErrNoDocument
	}
	if s.deleted {
		s.mu.Unlock()
		return ErrDeleted
	}
	if !s.dirty || s.saving {
		s.mu.Unlock()
		return nil
	}
	s.saving = true
	s.state = StateSaving
	snapshot := s.buffer
	id := s.node.ID
	s.mu.Unlock()

	err := s.storage.WriteContent(ctx, id, snapshot)

	s.mu.Lock()
	s.saving = false
	if s.state == StateSaving {
		s.state = StateReady
	}
	if err == nil && s.buffer == snapshot {
		s.dirty = false
	}
	s.mu.Unlock()

	// Failures leave the last-good buffer untouched; the caller decides
	// how to surface them. Edits are never dropped silently.
	return err
}

// MarkDeleted flags the session when the given entry stops existing. The
// tree cache calls this for every removed entry, so deleting an ancestor
// directory of the open document flags it too (the document itself is among
// the recursively removed entries).
func (s *Session) MarkDeleted(id models.FileID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed || s.node.ID != id {
		return
	}
	s.deleted = true
	s.state = StateRejected
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Close discards the session: the pending autosave timer is cancelled and
// any in-flight read is orphaned (its result will be discarded).
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	s.state = StateClosed
}

func (s *Session) closeLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.node = models.FileNode{}
	s.buffer = ""
	s.dirty = false
	s.deleted = false
	s.saving = false
	s.state = StateClosed
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Buffer returns the in-memory text
func (s *Session) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer
}

// Dirty reports whether the buffer has unsaved edits
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Deleted reports whether the backing file was removed while open
func (s *Session) Deleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted
}

// Node returns the metadata of the open document
func (s *Session) Node() models.FileNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.node
}
