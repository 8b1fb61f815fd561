// Package session runs turns on behalf of a transport: it serialises turns of
// the same session, restores the session snapshot, invokes the engine and
// stores the new snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-formchat/internal/logger"
	"github.com/goliatone/go-formchat/internal/store"
	"github.com/goliatone/go-formchat/pkg/schema"
	"github.com/goliatone/go-formchat/pkg/turn"
	"github.com/goliatone/go-formchat/pkg/validation"
)

// ErrInvalidDocument is returned by Submit when the document fails validation.
var ErrInvalidDocument = errors.New("session: document failed validation")

// Submitter stores completed documents.
type Submitter interface {
	Create(ctx context.Context, sessionID, userID, formSchemaID string, doc map[string]any) (*store.Submission, error)
}

// Request is one chat turn.
type Request struct {
	SessionID string
	Message   string
	// Document, when set, replaces the stored snapshot document.
	Document map[string]any
}

// Reply is the outcome of a turn.
type Reply struct {
	SessionID string `json:"session_id"`
	turn.Result
}

// SubmitRequest asks to persist the current document of a session.
type SubmitRequest struct {
	SessionID string
	UserID    string
	// Document, when set, is submitted instead of the stored snapshot.
	Document map[string]any
}

// SubmitError carries the field errors of a rejected submission.
type SubmitError struct {
	Errors []validation.FieldError
}

func (e *SubmitError) Error() string {
	if len(e.Errors) == 0 {
		return ErrInvalidDocument.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidDocument, e.Errors[0].Reason)
}

func (e *SubmitError) Unwrap() error { return ErrInvalidDocument }

// Service coordinates turns for one engine.
type Service struct {
	engine    *turn.Engine
	snapshots store.Snapshots
	submitter Submitter
	logger    *zap.Logger
	timeout   time.Duration
	locks     *keyedMutex
}

// Option customises a Service.
type Option func(*Service)

// WithSubmitter enables Submit.
func WithSubmitter(sub Submitter) Option {
	return func(s *Service) {
		s.submitter = sub
	}
}

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithTurnTimeout bounds each turn, extraction included.
func WithTurnTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// New builds a Service. A nil snapshot store keeps snapshots in memory.
func New(engine *turn.Engine, snapshots store.Snapshots, opts ...Option) *Service {
	if snapshots == nil {
		snapshots = store.NewMemorySnapshots(0, nil)
	}
	s := &Service{
		engine:    engine,
		snapshots: snapshots,
		logger:    zap.NewNop(),
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Form returns the form the service fills.
func (s *Service) Form() *schema.Form {
	return s.engine.Form()
}

// Turn runs one turn. An empty session id starts a new session.
func (s *Service) Turn(ctx context.Context, req Request) (Reply, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	snap, err := s.load(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	doc := snap.Document
	if req.Document != nil {
		doc = req.Document
	}

	result, err := s.engine.Process(ctx, turn.Input{
		Message:   req.Message,
		SessionID: sessionID,
		Document:  doc,
		Messages:  snap.Messages,
	})
	if err != nil {
		return Reply{}, err
	}

	next := store.Snapshot{
		SessionID: sessionID,
		FormID:    s.engine.Form().ID(),
		Document:  result.Document,
		Messages:  result.Messages,
	}
	if err := s.snapshots.Save(ctx, next); err != nil {
		return Reply{}, fmt.Errorf("session: save snapshot: %w", err)
	}

	s.logger.Info("turn completed",
		logger.Session(sessionID),
		zap.Strings("touched", result.Touched),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("asked", result.Asked),
	)
	return Reply{SessionID: sessionID, Result: result}, nil
}

// Snapshot returns the stored state of a session.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (store.Snapshot, error) {
	return s.snapshots.Load(ctx, sessionID)
}

// Reset forgets a session.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	return s.snapshots.Delete(ctx, sessionID)
}

// Submit validates and stores the session document.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*store.Submission, error) {
	if s.submitter == nil {
		return nil, errors.New("session: submissions are not configured")
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return nil, errors.New("session: session id is required")
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	doc := req.Document
	if doc == nil {
		snap, err := s.snapshots.Load(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("session: load snapshot: %w", err)
		}
		doc = snap.Document
	}

	form := s.engine.Form()
	if form == nil {
		return nil, turn.ErrNoForm
	}
	if errs := validation.ValidateDocument(doc, form.Schema); len(errs) > 0 {
		s.logger.Debug("submission rejected", logger.Session(sessionID), zap.Int("errors", len(errs)))
		return nil, &SubmitError{Errors: errs}
	}

	sub, err := s.submitter.Create(ctx, sessionID, req.UserID, form.ID(), doc)
	if err != nil {
		return nil, err
	}
	s.logger.Info("form submitted", logger.Session(sessionID), zap.String("form", form.ID()))
	return sub, nil
}

func (s *Service) load(ctx context.Context, sessionID string) (store.Snapshot, error) {
	snap, err := s.snapshots.Load(ctx, sessionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return store.Snapshot{SessionID: sessionID}, nil
	case err != nil:
		return store.Snapshot{}, fmt.Errorf("session: load snapshot: %w", err)
	}
	return snap, nil
}
