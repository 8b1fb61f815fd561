package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formchat/internal/store"
	"github.com/goliatone/go-formchat/pkg/testsupport"
	"github.com/goliatone/go-formchat/pkg/turn"
)

func fixedExtractor(fields map[string]any) turn.Extractor {
	return turn.ExtractorFunc(func(context.Context, turn.ExtractRequest) (turn.Extraction, error) {
		return turn.Extraction{Fields: fields, Confidence: 0.9, Ambiguous: []string{"deliveryLocation"}}, nil
	})
}

type fakeSubmitter struct {
	mu   sync.Mutex
	docs []map[string]any
}

func (f *fakeSubmitter) Create(_ context.Context, sessionID, userID, formID string, doc map[string]any) (*store.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
	return &store.Submission{ID: uuid.New(), SessionID: sessionID, UserID: userID, FormSchemaID: formID}, nil
}

func TestService_TurnPersistsSnapshot(t *testing.T) {
	engine := turn.New(testsupport.EquipmentForm(t), fixedExtractor(map[string]any{"requestTime": "09:00"}))
	svc := New(engine, nil)
	ctx := context.Background()

	first, err := svc.Turn(ctx, Request{Message: "first"})
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if _, err := uuid.Parse(first.SessionID); err != nil {
		t.Fatalf("expected generated session id, got %q", first.SessionID)
	}
	if !first.Asked {
		t.Fatalf("expected a clarification question")
	}

	second, err := svc.Turn(ctx, Request{SessionID: first.SessionID, Message: "second"})
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("session id changed")
	}

	snap, err := svc.Snapshot(ctx, first.SessionID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.FormID != "equipment_form@1.2.0" {
		t.Fatalf("unexpected form id %q", snap.FormID)
	}
	testsupport.AssertDocument(t, map[string]any{"requestTime": "09:00"}, snap.Document)

	var users []string
	for _, msg := range snap.Messages {
		if msg.Role == turn.RoleUser {
			users = append(users, msg.Content)
		}
	}
	if diff := cmp.Diff([]string{"first", "second"}, users); diff != "" {
		t.Fatalf("conversation mismatch (-want +got):\n%s", diff)
	}
	if last := snap.Messages[len(snap.Messages)-1]; last.Role != turn.RoleAssistant || last.Content != second.Response {
		t.Fatalf("expected the assistant reply to close the conversation, got %+v", last)
	}
}

func TestService_ClientDocumentWins(t *testing.T) {
	engine := turn.New(testsupport.EquipmentForm(t), fixedExtractor(map[string]any{"requestTime": "09:00"}))
	svc := New(engine, nil)
	ctx := context.Background()

	reply, err := svc.Turn(ctx, Request{SessionID: "s1", Message: "hi", Document: map[string]any{"fullName": "Somchai"}})
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	testsupport.AssertDocument(t, map[string]any{"fullName": "Somchai", "requestTime": "09:00"}, reply.Document)
}

func TestService_SerialisesSameSession(t *testing.T) {
	var inflight, peak atomic.Int32
	extractor := turn.ExtractorFunc(func(context.Context, turn.ExtractRequest) (turn.Extraction, error) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inflight.Add(-1)
		return turn.Extraction{Fields: map[string]any{}, Confidence: 1}, nil
	})
	svc := New(turn.New(testsupport.EquipmentForm(t), extractor), nil)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := svc.Turn(ctx, Request{SessionID: "shared", Message: "hello"})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("turns: %v", err)
	}
	if peak.Load() != 1 {
		t.Fatalf("expected serialised turns, saw %d concurrent", peak.Load())
	}

	snap, err := svc.Snapshot(context.Background(), "shared")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	users := 0
	for _, msg := range snap.Messages {
		if msg.Role == turn.RoleUser {
			users++
		}
	}
	if users != 8 {
		t.Fatalf("expected 8 user messages, got %d", users)
	}
	if svc.locks.size() != 0 {
		t.Fatalf("expected idle locks to be released")
	}
}

func TestService_Submit(t *testing.T) {
	sub := &fakeSubmitter{}
	engine := turn.New(testsupport.EquipmentForm(t), fixedExtractor(map[string]any{}))
	svc := New(engine, nil, WithSubmitter(sub))
	ctx := context.Background()

	_, err := svc.Submit(ctx, SubmitRequest{SessionID: "s1", Document: map[string]any{"fullName": "A"}})
	var submitErr *SubmitError
	if !errors.As(err, &submitErr) || !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected SubmitError, got %v", err)
	}
	if len(submitErr.Errors) == 0 {
		t.Fatalf("expected field errors")
	}

	if _, err := svc.Submit(ctx, SubmitRequest{SessionID: "missing"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown session, got %v", err)
	}

	valid := testsupport.JSONDocument(t, `{
		"fullName": "Somchai Jaidee",
		"phoneNumber": "0812345678",
		"equipments": [{"type": "Notebook", "quantity": 2}],
		"requestDate": "2026-10-15",
		"requestTime": "09:00",
		"deliveryLocation": "ตึก A"
	}`)
	got, err := svc.Submit(ctx, SubmitRequest{SessionID: "s1", UserID: "u1", Document: valid})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.FormSchemaID != "equipment_form@1.2.0" || got.UserID != "u1" {
		t.Fatalf("unexpected submission %+v", got)
	}
	if len(sub.docs) != 1 {
		t.Fatalf("expected one stored document, got %d", len(sub.docs))
	}

	noStore := New(engine, nil)
	if _, err := noStore.Submit(ctx, SubmitRequest{SessionID: "s1", Document: valid}); err == nil {
		t.Fatalf("expected error without submitter")
	}
}

func TestService_Reset(t *testing.T) {
	svc := New(turn.New(testsupport.EquipmentForm(t), fixedExtractor(map[string]any{})), nil)
	ctx := context.Background()
	if _, err := svc.Turn(ctx, Request{SessionID: "s1", Message: "hi"}); err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if err := svc.Reset(ctx, "s1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := svc.Snapshot(ctx, "s1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_NoForm(t *testing.T) {
	svc := New(turn.New(nil, fixedExtractor(nil)), nil)
	if _, err := svc.Turn(context.Background(), Request{Message: "hi"}); !errors.Is(err, turn.ErrNoForm) {
		t.Fatalf("expected ErrNoForm, got %v", err)
	}
}
