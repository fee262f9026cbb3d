// Package client is the form-side companion to the claims API: it owns the
// per-session identifier and keeps the server's draft eventually consistent
// with in-progress form state via debounced auto-saves.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDebounce is how long the form must sit idle before a save fires.
const DefaultDebounce = 2500 * time.Millisecond

// NewSessionID mints the opaque token scoping one browsing session's
// form-filling activity. Not an authentication credential.
func NewSessionID() string {
	return uuid.NewString()
}

// DraftSnapshot is what a stored draft looks like to the form.
type DraftSnapshot struct {
	FormData             map[string]interface{} `json:"formData"`
	LastSaved            time.Time              `json:"lastSaved"`
	CompletionPercentage int                    `json:"completionPercentage"`
	CurrentStep          int                    `json:"currentStep"`
}

// SubmissionReceipt is the success payload of a final submission, identical
// whether the claim was just created or replayed.
type SubmissionReceipt struct {
	ID              int       `json:"id"`
	ReferenceNumber string    `json:"referenceNumber"`
	Status          string    `json:"status"`
	SubmittedAt     time.Time `json:"submittedAt"`
}

// AutoSaver pushes form state to the draft store at most once per idle
// period. Overlapping saves are tolerated, not coordinated; the store
// resolves them last-write-wins.
type AutoSaver struct {
	baseURL    string
	httpClient *http.Client
	debounce   time.Duration

	mu          sync.Mutex
	sessionID   string
	form        map[string]interface{}
	currentStep int
	timer       *time.Timer
	lastSaved   time.Time
	closed      bool
}

// Option configures an AutoSaver.
type Option func(*AutoSaver)

// WithDebounce overrides the idle period before a save fires.
func WithDebounce(d time.Duration) Option {
	return func(a *AutoSaver) { a.debounce = d }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *AutoSaver) { a.httpClient = c }
}

// WithSessionID resumes an existing session (e.g. restored from tab storage)
// instead of minting a new one.
func WithSessionID(id string) Option {
	return func(a *AutoSaver) { a.sessionID = id }
}

func NewAutoSaver(baseURL string, opts ...Option) *AutoSaver {
	a := &AutoSaver{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		debounce:   DefaultDebounce,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.sessionID == "" {
		a.sessionID = NewSessionID()
	}
	return a
}

// SessionID returns the identifier correlating this form with its draft.
func (a *AutoSaver) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// LastSaved reports when the draft store last accepted a save, zero if never.
func (a *AutoSaver) LastSaved() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSaved
}

// LoadDraft fetches the stored draft for this session, once, on form start.
// Returns (nil, nil) when no draft exists.
func (a *AutoSaver) LoadDraft(ctx context.Context) (*DraftSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/v1/drafts/get-draft", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Session-Id", a.SessionID())

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Success bool           `json:"success"`
		Found   bool           `json:"found"`
		Draft   *DraftSnapshot `json:"draft"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if !body.Found || body.Draft == nil {
		return nil, nil
	}

	a.mu.Lock()
	a.lastSaved = body.Draft.LastSaved
	a.mu.Unlock()
	return body.Draft, nil
}

// MergeDraft lays saved draft fields over the form's defaults: draft fields
// replace defaults, fields absent from the draft keep their defaults.
func MergeDraft(defaults, saved map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(defaults)+len(saved))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range saved {
		merged[k] = v
	}
	return merged
}

// meaningful reports whether the form has any real content. The first save is
// gated on this so empty drafts are never created.
func meaningful(form map[string]interface{}) bool {
	for _, v := range form {
		switch t := v.(type) {
		case nil:
		case string:
			if t != "" {
				return true
			}
		case bool:
			if t {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// Update records the latest form state and restarts the debounce timer. A
// change arriving before the timer fires cancels and restarts it, so at most
// one save per idle period reaches the store.
func (a *AutoSaver) Update(form map[string]interface{}, currentStep int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	a.form = form
	a.currentStep = currentStep

	if !meaningful(form) {
		return
	}

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, func() {
		if err := a.Flush(context.Background()); err != nil {
			// Silently retried on the next debounce cycle.
			log.Printf("auto-save failed: %v", err)
		}
	})
}

// Flush saves the current form state immediately.
func (a *AutoSaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.closed || a.form == nil {
		a.mu.Unlock()
		return nil
	}
	payload := map[string]interface{}{
		"sessionId":   a.sessionID,
		"formData":    a.form,
		"currentStep": a.currentStep,
	}
	sessionID := a.sessionID
	a.mu.Unlock()

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/v1/drafts/auto-save", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-Id", sessionID)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		Success   bool      `json:"success"`
		LastSaved time.Time `json:"lastSaved"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("auto-save rejected: status %d", resp.StatusCode)
	}

	a.mu.Lock()
	a.lastSaved = result.LastSaved
	a.mu.Unlock()
	return nil
}

// Submit finalizes the claim. The session identifier rides along so the
// server can reconcile the draft; on success the session is cleared so a new
// form starts fresh. Submitting twice is safe: the server replays the
// original receipt.
func (a *AutoSaver) Submit(ctx context.Context, payload map[string]interface{}) (*SubmissionReceipt, error) {
	a.mu.Lock()
	sessionID := a.sessionID
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	full := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		full[k] = v
	}
	full["sessionId"] = sessionID

	body, err := json.Marshal(full)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/v1/claims", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Success bool               `json:"success"`
		Message string             `json:"message"`
		Data    *SubmissionReceipt `json:"data"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if !result.Success || result.Data == nil {
		if len(result.Details) > 0 {
			return nil, fmt.Errorf("submission rejected: %s (%s)", result.Details[0].Message, result.Details[0].Field)
		}
		return nil, fmt.Errorf("submission failed: %s", result.Message)
	}

	// Successful final submission ends the session.
	a.ClearSession()
	return result.Data, nil
}

// ClearSession discards the current session identifier; the next Update
// writes under a fresh one.
func (a *AutoSaver) ClearSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionID = NewSessionID()
	a.form = nil
	a.lastSaved = time.Time{}
}

// Close stops the debounce timer. No further saves fire.
func (a *AutoSaver) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
