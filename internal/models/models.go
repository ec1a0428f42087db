// Package models defines the API and persistence shapes that sit around the
// pipeline.
//
// Go Pattern: Models are plain structs with JSON tags for serialization.
// The database package handles persistence; `db` tags work with sqlx for
// column mapping. Workflow state itself lives in the pipeline package and is
// returned as-is; these are the request bodies and the records that only the
// HTTP layer and the database care about.
package models

import (
	"time"

	"github.com/Shimizu-Technology/reelforge-api/internal/ledger"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
	"github.com/Shimizu-Technology/reelforge-api/internal/services/brief"
)

// --- Webhooks ---

// Webhook is a user-registered endpoint that receives pipeline events.
type Webhook struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	URL       string    `json:"url" db:"url"`
	Events    []string  `json:"events" db:"events"`
	Secret    string    `json:"-" db:"secret"` // Only returned once, at creation
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DeliveryStatus is the state of one webhook delivery.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
)

// WebhookDelivery records the attempts made to deliver one event.
type WebhookDelivery struct {
	ID           string         `json:"id" db:"id"`
	WebhookID    string         `json:"webhook_id" db:"webhook_id"`
	Event        string         `json:"event" db:"event"`
	Payload      string         `json:"payload" db:"payload"`
	Status       DeliveryStatus `json:"status" db:"status"`
	Attempts     int            `json:"attempts" db:"attempts"`
	LastError    string         `json:"last_error,omitempty" db:"last_error"`
	ResponseCode int            `json:"response_code,omitempty" db:"response_code"`
	DeliveredAt  *time.Time     `json:"delivered_at,omitempty" db:"delivered_at"` // Pointer = nullable
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}

// WebhookPayload is the body POSTed to a webhook URL.
type WebhookPayload struct {
	Event     string    `json:"event"`
	SessionID string    `json:"session_id"`
	JobID     string    `json:"job_id,omitempty"`
	PostID    string    `json:"post_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidWebhookEvents is the set of events a webhook may subscribe to.
var ValidWebhookEvents = func() map[string]bool {
	m := make(map[string]bool, len(pipeline.AllEventTypes))
	for _, ev := range pipeline.AllEventTypes {
		m[string(ev)] = true
	}
	return m
}()

// --- Request/Response DTOs (Data Transfer Objects) ---
// Go Pattern: Separate structs for API input/output vs database models.
// Most workflow bodies are the pipeline's own input types; the ones below
// exist because the HTTP shape differs.

// CreateWebhookRequest is the JSON body for POST /api/v1/webhooks.
type CreateWebhookRequest struct {
	URL    string   `json:"url" binding:"required,url"`
	Events []string `json:"events" binding:"required,min=1"`
}

// UpdateWebhookRequest is the JSON body for PATCH /api/v1/webhooks/:id.
type UpdateWebhookRequest struct {
	Active *bool `json:"active"`
}

// SelectIdeasRequest is the JSON body for POST /sessions/:id/select.
// An empty list is passed through so the pipeline can reject it with its
// own message.
type SelectIdeasRequest struct {
	IdeaIDs []string `json:"idea_ids"`
}

// FailJobRequest is the JSON body for POST /jobs/:job/fail.
type FailJobRequest struct {
	Reason string `json:"reason"`
}

// CaptionsRequest is the JSON body for POST /jobs/:job/captions.
type CaptionsRequest struct {
	Languages []string              `json:"languages"`
	Model     pipeline.CaptionModel `json:"model"`
}

// WizardPromptRequest is the JSON body for PUT /wizard/prompt.
type WizardPromptRequest struct {
	Prompt string `json:"prompt"`
}

// WizardStepRequest is the JSON body for POST /wizard/step.
type WizardStepRequest struct {
	Step pipeline.WizardStep `json:"step" binding:"required"`
}

// RefineRequest is the JSON body for POST /api/v1/refine.
type RefineRequest struct {
	BasePrompt string `json:"base_prompt" binding:"required"`
	pipeline.Personalization
}

// RefineResponse is returned by POST /api/v1/refine.
type RefineResponse struct {
	Prompt string `json:"prompt"`
}

// TranscribeResponse is returned by POST /api/v1/transcribe.
type TranscribeResponse struct {
	Filename  string  `json:"filename"`
	Text      string  `json:"text"`
	Language  string  `json:"language"`
	Duration  float64 `json:"duration"`
	WordCount int     `json:"word_count"`
}

// BriefResponse is returned by POST /api/v1/briefs.
type BriefResponse struct {
	Filename string `json:"filename"`
	brief.Brief
}

// CreditsResponse is the caller's balance.
type CreditsResponse struct {
	UserID    string `json:"user_id"`
	Balance   int    `json:"balance"`
	Available int    `json:"available"`
	Reserved  int    `json:"reserved"`
}

// GrantCreditsRequest is the JSON body for the admin top-up endpoint.
// Key makes the grant idempotent; a repeated key is not applied twice.
type GrantCreditsRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Amount int    `json:"amount" binding:"required,gt=0"`
	Key    string `json:"key" binding:"required"`
}

// GrantCreditsResponse is returned by the top-up endpoint.
type GrantCreditsResponse struct {
	Transaction ledger.Transaction `json:"transaction"`
	Balance     int                `json:"balance"`
}

// ListParams holds pagination query parameters.
type ListParams struct {
	Page    int `form:"page"`     // Page number (1-indexed)
	PerPage int `form:"per_page"` // Items per page
}

// Normalize clamps the parameters to sane bounds.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 || p.PerPage > 100 {
		p.PerPage = 20
	}
	return p
}

// Offset is the number of rows to skip.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// PaginatedResponse wraps a list response with pagination metadata.
// Go Pattern: Generics (added in Go 1.18) let us create type-safe
// containers. `any` is an alias for `interface{}`.
type PaginatedResponse[T any] struct {
	Data       []T `json:"data"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPage builds a PaginatedResponse, never returning a nil Data slice.
func NewPage[T any](data []T, p ListParams, total int) PaginatedResponse[T] {
	if data == nil {
		data = []T{}
	}
	pages := 0
	if p.PerPage > 0 {
		pages = (total + p.PerPage - 1) / p.PerPage
	}
	return PaginatedResponse[T]{
		Data:       data,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalItems: total,
		TotalPages: pages,
	}
}

// ErrorResponse is a standard error format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
	Workers  int    `json:"workers"`
	Queued   int    `json:"queued_tasks"`
	Sessions int    `json:"sessions"`
}
