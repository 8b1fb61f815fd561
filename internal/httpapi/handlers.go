package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-formchat/internal/session"
	"github.com/goliatone/go-formchat/internal/store"
	"github.com/goliatone/go-formchat/pkg/forms"
	"github.com/goliatone/go-formchat/pkg/lookup"
	"github.com/goliatone/go-formchat/pkg/turn"
)

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Message   string         `json:"message" binding:"required"`
	SessionID string         `json:"session_id"`
	FormData  map[string]any `json:"form_data"`
}

// FormSchemaResponse is the body of GET /api/v1/form-schema/:name.
type FormSchemaResponse struct {
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Schema  map[string]any `json:"schema"`
}

// LookupRequest is the body of POST /api/v1/lookup.
type LookupRequest struct {
	Field     string   `json:"field" binding:"required"`
	Query     string   `json:"query" binding:"required"`
	Form      string   `json:"form"`
	Threshold *float64 `json:"threshold"`
}

// LookupResponse lists the ranked candidates.
type LookupResponse struct {
	Field      string             `json:"field"`
	Candidates []lookup.Candidate `json:"candidates"`
}

// SubmissionRequest is the body of POST /api/v1/submissions.
type SubmissionRequest struct {
	SessionID string         `json:"session_id" binding:"required"`
	UserID    string         `json:"user_id"`
	FormData  map[string]any `json:"form_data"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type handler struct {
	sessions *session.Service
	forms    *forms.Registry
	version  string
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: h.version})
}

func (h *handler) chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	reply, err := h.sessions.Turn(c.Request.Context(), session.Request{
		SessionID: req.SessionID,
		Message:   req.Message,
		Document:  req.FormData,
	})
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "turn_failed", err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *handler) resetSession(c *gin.Context) {
	if err := h.sessions.Reset(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "reset_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) formSchema(c *gin.Context) {
	name := c.Param("name")
	form, err := h.forms.Get(name, c.Query("version"))
	switch {
	case errors.Is(err, forms.ErrFormNotFound):
		respondError(c, http.StatusNotFound, "form_not_found", fmt.Errorf("form schema %q not found", name))
		return
	case err != nil:
		respondError(c, http.StatusBadRequest, "invalid_version", err)
		return
	}
	c.JSON(http.StatusOK, FormSchemaResponse{Name: form.Name, Version: form.Version, Schema: form.Definition})
}

func (h *handler) lookup(c *gin.Context) {
	var req LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	form := h.sessions.Form()
	if name := strings.TrimSpace(req.Form); name != "" {
		found, err := h.forms.Latest(name)
		if err != nil {
			respondError(c, http.StatusNotFound, "form_not_found", err)
			return
		}
		form = found
	}
	if form == nil {
		respondError(c, http.StatusBadRequest, "no_form", turn.ErrNoForm)
		return
	}
	if _, ok := form.Schema.Property(req.Field); !ok {
		respondError(c, http.StatusBadRequest, "unknown_field", fmt.Errorf("field %q not found in schema", req.Field))
		return
	}

	threshold := lookup.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	c.JSON(http.StatusOK, LookupResponse{
		Field:      req.Field,
		Candidates: lookup.Resolve(req.Query, form.Schema, req.Field, threshold),
	})
}

func (h *handler) submit(c *gin.Context) {
	var req SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sub, err := h.sessions.Submit(c.Request.Context(), session.SubmitRequest{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Document:  req.FormData,
	})
	var invalid *session.SubmitError
	switch {
	case errors.As(err, &invalid):
		respondFieldErrors(c, http.StatusUnprocessableEntity, err, invalid.Errors)
		return
	case errors.Is(err, store.ErrNotFound):
		respondError(c, http.StatusNotFound, "session_not_found", err)
		return
	case err != nil:
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "submission_failed", err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}
