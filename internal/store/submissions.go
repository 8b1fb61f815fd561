package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/goliatone/go-formchat/pkg/turn"
)

// Submission is a completed form document.
type Submission struct {
	ID           uuid.UUID      `gorm:"type:text;primaryKey" json:"id"`
	UserID       string         `gorm:"type:text;index" json:"user_id,omitempty"`
	SessionID    string         `gorm:"type:text;not null;index" json:"session_id"`
	FormSchemaID string         `gorm:"type:text;not null;index" json:"form_schema_id"`
	SubmittedAt  time.Time      `gorm:"not null;index" json:"submitted_at"`
	Data         datatypes.JSON `json:"data"`
}

func (Submission) TableName() string { return "form_submissions" }

// Map renders the submission as a generic document for the history context.
func (s Submission) Map() map[string]any {
	out := map[string]any{
		"id":             s.ID.String(),
		"session_id":     s.SessionID,
		"form_schema_id": s.FormSchemaID,
		"submitted_at":   s.SubmittedAt.UTC().Format(time.RFC3339),
	}
	if s.UserID != "" {
		out["user_id"] = s.UserID
	}
	var data any
	if len(s.Data) > 0 && json.Unmarshal(s.Data, &data) == nil {
		out["data"] = data
	}
	return out
}

// HistoryQuery selects prior submissions.
type HistoryQuery struct {
	SessionID string
	UserID    string
	Limit     int
}

// DefaultHistoryLimit bounds History queries that do not set a limit.
const DefaultHistoryLimit = 5

// Submissions stores submissions with gorm.
type Submissions struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

var _ turn.HistoryLookup = (*Submissions)(nil)

// OpenSQLite opens (creating if needed) a sqlite database and migrates the
// submissions table.
func OpenSQLite(dsn string, logger *zap.Logger) (*Submissions, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("store: sqlite dsn is required")
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: sqlite handle: %w", err)
	}
	// A single connection keeps in-memory databases alive.
	sqlDB.SetMaxOpenConns(1)

	subs := NewSubmissions(db, logger)
	if err := subs.Migrate(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return subs, nil
}

// NewSubmissions wraps an existing gorm handle.
func NewSubmissions(db *gorm.DB, logger *zap.Logger) *Submissions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submissions{db: db, logger: logger.Named("submissions"), now: time.Now}
}

// Migrate creates or updates the submissions table.
func (s *Submissions) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Submission{}); err != nil {
		return fmt.Errorf("store: migrate submissions: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Submissions) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create stores a submission built from doc, assigning its id and timestamp.
func (s *Submissions) Create(ctx context.Context, sessionID, userID, formSchemaID string, doc map[string]any) (*Submission, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("store: session id is required")
	}
	if strings.TrimSpace(formSchemaID) == "" {
		return nil, errors.New("store: form schema id is required")
	}
	if doc == nil {
		doc = map[string]any{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("store: encode submission: %w", err)
	}

	sub := &Submission{
		ID:           uuid.New(),
		UserID:       strings.TrimSpace(userID),
		SessionID:    sessionID,
		FormSchemaID: formSchemaID,
		SubmittedAt:  s.now().UTC(),
		Data:         datatypes.JSON(raw),
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("store: create submission: %w", err)
	}
	return sub, nil
}

// Get returns the submission with id.
func (s *Submissions) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	var sub Submission
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get submission: %w", err)
	}
	return &sub, nil
}

// History returns submissions matching q, most recent first.
func (s *Submissions) History(ctx context.Context, q HistoryQuery) ([]Submission, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	tx := s.db.WithContext(ctx).Model(&Submission{})
	if q.SessionID != "" {
		tx = tx.Where("session_id = ?", q.SessionID)
	}
	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}

	var out []Submission
	if err := tx.Order("submitted_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	return out, nil
}

// Recent implements turn.HistoryLookup.
func (s *Submissions) Recent(ctx context.Context, sessionID string, limit int) ([]map[string]any, error) {
	subs, err := s.History(ctx, HistoryQuery{SessionID: sessionID, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub.Map())
	}
	return out, nil
}
