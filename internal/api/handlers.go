// Package api exposes HTTP handlers for the quest service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/quest/internal/coach"
	"example.com/quest/internal/domain"
	"example.com/quest/internal/eligibility"
	"example.com/quest/internal/linkcheck"
	"example.com/quest/internal/progress"
	"example.com/quest/internal/proof"
	"example.com/quest/internal/ratelimit"
)

// Session credential header pair. The key is returned once at login and
// never retrievable again.
const (
	HeaderSession = "X-Quest-Session"
	HeaderKey     = "X-Quest-Key"
)

// maxImageBytes bounds screenshot uploads.
const maxImageBytes = 8 << 20

// LoginService authenticates participants and re-validates eligibility.
type LoginService interface {
	Login(ctx context.Context, clientAddr, email, phone, fullName string) (*eligibility.LoginResult, error)
	Recheck(ctx context.Context, sessionID string) (*domain.DiagnosticRecord, error)
}

// ProgressService reads and writes credentialed progress records.
type ProgressService interface {
	Read(ctx context.Context, sessionID, credential string) (*domain.ProgressRecord, error)
	Write(ctx context.Context, sessionID, credential string, doc json.RawMessage, expectedRevision int64) (*domain.ProgressRecord, error)
}

// LinkScorer validates and scores a submitted URL.
type LinkScorer interface {
	ScoreLink(ctx context.Context, rawURL string) (domain.ScoreResult, error)
}

// ScreenshotScorer scores an uploaded screenshot. It never fails.
type ScreenshotScorer interface {
	Score(ctx context.Context, shot proof.Screenshot, mission domain.MissionContext) domain.ScoreResult
}

// CoachService produces advice cards.
type CoachService interface {
	Coach(ctx context.Context, profile domain.Profile, mission domain.MissionContext, summary coach.ProgressSummary) coach.Advice
}

// EventSink appends domain events to the outbox.
type EventSink interface {
	AppendEvent(ctx context.Context, sessionID, eventType string, payload any) error
}

// Handler coordinates HTTP requests with the quest services.
type Handler struct {
	gate     LoginService
	progress ProgressService
	links    LinkScorer
	proofs   ScreenshotScorer
	coach    CoachService
	events   EventSink
	logger   *zap.Logger
}

// NewHandler builds a Handler. events and logger may be nil.
func NewHandler(gate LoginService, prog ProgressService, links LinkScorer, proofs ScreenshotScorer, coachSvc CoachService, events EventSink, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		gate:     gate,
		progress: prog,
		links:    links,
		proofs:   proofs,
		coach:    coachSvc,
		events:   events,
		logger:   logger,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/login", h.login)
	mux.HandleFunc("/v1/progress", h.progressRoute)
	mux.HandleFunc("/v1/proof/link", h.proofLink)
	mux.HandleFunc("/v1/proof/screenshot", h.proofScreenshot)
	mux.HandleFunc("/v1/coach", h.coachRoute)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result, err := h.gate.Login(r.Context(), ratelimit.ClientAddr(r), req.Email, req.Whatsapp, req.FullName)
	if err != nil {
		switch {
		case errors.Is(err, eligibility.ErrLocked):
			writeError(w, http.StatusTooManyRequests, "locked", "too many failed attempts, retry later")
		case errors.Is(err, eligibility.ErrNoMatch):
			writeError(w, http.StatusUnauthorized, "unauthorized", "no matching diagnostic record")
		case errors.Is(err, eligibility.ErrNotEligible):
			writeError(w, http.StatusForbidden, "not_eligible", "diagnostic record does not unlock the quest")
		default:
			h.logger.Error("login failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "server_error", "login failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		SessionID:          result.SessionID,
		SessionCredential:  result.Credential,
		Profile:            toProfileView(result.Profile),
		RecommendedActions: result.Profile.FinalActions,
	})
}

func (h *Handler) progressRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.readProgress(w, r)
	case http.MethodPut:
		h.writeProgress(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) readProgress(w http.ResponseWriter, r *http.Request) {
	sessionID, credential, ok := sessionFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or malformed session headers")
		return
	}

	record, err := h.progress.Read(r.Context(), sessionID, credential)
	if err != nil {
		h.writeProgressError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ProgressResponse{
		Progress:  record.Doc,
		Revision:  record.Revision,
		UpdatedAt: record.UpdatedAt,
	})
}

func (h *Handler) writeProgress(w http.ResponseWriter, r *http.Request) {
	sessionID, credential, ok := sessionFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or malformed session headers")
		return
	}

	var req WriteProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	record, err := h.progress.Write(r.Context(), sessionID, credential, req.Progress, req.Revision)
	if err != nil {
		var conflict *domain.RevisionConflictError
		if errors.As(err, &conflict) {
			writeJSON(w, http.StatusConflict, ConflictResponse{
				Type:     "conflict",
				Detail:   "revision mismatch, merge and retry",
				Progress: conflict.Current.Doc,
				Revision: conflict.Current.Revision,
			})
			return
		}
		h.writeProgressError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, WriteProgressResponse{
		Revision:  record.Revision,
		UpdatedAt: record.UpdatedAt,
	})
}

func (h *Handler) proofLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	sessionID, credential, ok := sessionFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or malformed session headers")
		return
	}
	if _, err := h.progress.Read(r.Context(), sessionID, credential); err != nil {
		h.writeProgressError(w, err)
		return
	}

	var req ScoreLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "url is required")
		return
	}

	result, err := h.links.ScoreLink(r.Context(), req.URL)
	if err != nil {
		var rejection *linkcheck.RejectionError
		if errors.As(err, &rejection) {
			writeJSON(w, http.StatusUnprocessableEntity, RejectionResponse{
				Success: false,
				Code:    rejection.Code,
				Detail:  rejection.Detail,
			})
			return
		}
		h.logger.Error("link scoring failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "link scoring failed")
		return
	}

	h.emitProofScored(r.Context(), sessionID, req.TaskID, "link", result)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) proofScreenshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	sessionID, credential, ok := sessionFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or malformed session headers")
		return
	}
	if _, err := h.progress.Read(r.Context(), sessionID, credential); err != nil {
		h.writeProgressError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to read image")
		return
	}

	mime := header.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(data)
	}

	shot := proof.Screenshot{
		Data: data,
		MIME: mime,
		Hint: r.FormValue("hint"),
	}
	mission := missionFromForm(r)

	result := h.proofs.Score(r.Context(), shot, mission)
	h.emitProofScored(r.Context(), sessionID, mission.TaskID, "screenshot", result)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) coachRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	sessionID, credential, ok := sessionFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or malformed session headers")
		return
	}

	record, err := h.progress.Read(r.Context(), sessionID, credential)
	if err != nil {
		h.writeProgressError(w, err)
		return
	}

	// Coaching reflects the live subscription state, not the login snapshot.
	diag, err := h.gate.Recheck(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, eligibility.ErrNotEligible):
			writeError(w, http.StatusForbidden, "not_eligible", "diagnostic record no longer unlocks the quest")
		case errors.Is(err, domain.ErrSessionNotFound):
			writeError(w, http.StatusForbidden, "forbidden", "session no longer valid")
		default:
			h.logger.Error("eligibility recheck failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "server_error", "coaching failed")
		}
		return
	}

	var req CoachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	var profile domain.Profile
	if diag.Profile != nil {
		profile = *diag.Profile
	}
	summary := coach.Summarize(domain.DecodeDoc(record.Doc))
	advice := h.coach.Coach(r.Context(), profile, req.Mission(), summary)
	writeJSON(w, http.StatusOK, advice)
}

// writeProgressError maps credential failures on progress-gated routes.
// Malformed headers were already rejected with 401; a present but unknown or
// mismatched credential is consistently a 403.
func (h *Handler) writeProgressError(w http.ResponseWriter, err error) {
	if errors.Is(err, progress.ErrUnauthorized) {
		writeError(w, http.StatusForbidden, "forbidden", "session credential rejected")
		return
	}
	h.logger.Error("progress access failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "server_error", "progress access failed")
}

func (h *Handler) emitProofScored(ctx context.Context, sessionID, taskID, kind string, result domain.ScoreResult) {
	if h.events == nil {
		return
	}
	payload := map[string]any{
		"kind":      kind,
		"task_id":   taskID,
		"score":     result.Score,
		"label":     result.Label,
		"scored_at": time.Now().UTC(),
	}
	if err := h.events.AppendEvent(ctx, sessionID, "proof.scored", payload); err != nil {
		h.logger.Warn("proof event not recorded", zap.Error(err))
	}
}

// sessionFrom extracts the credential header pair. The key must look like a
// credential (64 hex characters) before any storage lookup happens.
func sessionFrom(r *http.Request) (sessionID, credential string, ok bool) {
	sessionID = strings.TrimSpace(r.Header.Get(HeaderSession))
	credential = strings.TrimSpace(r.Header.Get(HeaderKey))
	if sessionID == "" || !credentialShaped(credential) {
		return "", "", false
	}
	return sessionID, credential, true
}

func credentialShaped(credential string) bool {
	if len(credential) != 64 {
		return false
	}
	for _, c := range credential {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}

func missionFromForm(r *http.Request) domain.MissionContext {
	return domain.MissionContext{
		PhaseID:   r.FormValue("phase_id"),
		TaskID:    r.FormValue("task_id"),
		Title:     r.FormValue("title"),
		Objective: r.FormValue("objective"),
		Actions:   r.Form["actions"],
	}
}

// LoginRequest is the payload for POST /v1/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Whatsapp string `json:"whatsapp"`
	FullName string `json:"full_name"`
}

// Validate ensures request correctness.
func (r LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}
	if strings.TrimSpace(r.Whatsapp) == "" {
		return errors.New("whatsapp is required")
	}
	if strings.TrimSpace(r.FullName) == "" {
		return errors.New("full_name is required")
	}
	return nil
}

// ProfileView is the profile snapshot returned at login.
type ProfileView struct {
	DeclaredRole string   `json:"declared_role"`
	RealRole     string   `json:"real_role"`
	Maturity     string   `json:"maturity"`
	Strengths    []string `json:"strengths"`
	Weaknesses   []string `json:"weaknesses"`
	SkillGaps    []string `json:"skill_gaps,omitempty"`
}

// LoginResponse carries the one-time session credential and the profile
// snapshot for client bootstrap.
type LoginResponse struct {
	SessionID          string      `json:"session_id"`
	SessionCredential  string      `json:"session_credential"`
	Profile            ProfileView `json:"profile"`
	RecommendedActions []string    `json:"recommended_actions,omitempty"`
}

// ProgressResponse is the body for GET /v1/progress.
type ProgressResponse struct {
	Progress  json.RawMessage `json:"progress"`
	Revision  int64           `json:"revision"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// WriteProgressRequest is the payload for PUT /v1/progress.
type WriteProgressRequest struct {
	Progress json.RawMessage `json:"progress"`
	Revision int64           `json:"revision"`
}

// Validate ensures request correctness.
func (r WriteProgressRequest) Validate() error {
	if len(r.Progress) == 0 || !json.Valid(r.Progress) {
		return errors.New("progress must be a valid JSON document")
	}
	if r.Revision < 0 {
		return errors.New("revision must be >= 0")
	}
	return nil
}

// WriteProgressResponse is the success body for PUT /v1/progress.
type WriteProgressResponse struct {
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConflictResponse carries the server's current state so the caller can
// merge and retry.
type ConflictResponse struct {
	Type     string          `json:"type"`
	Detail   string          `json:"detail"`
	Progress json.RawMessage `json:"progress"`
	Revision int64           `json:"revision"`
}

// ScoreLinkRequest is the payload for POST /v1/proof/link.
type ScoreLinkRequest struct {
	URL    string `json:"url"`
	TaskID string `json:"task_id,omitempty"`
}

// RejectionResponse is a coded link rejection. No partial score is returned.
type RejectionResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Detail  string `json:"detail,omitempty"`
}

// CoachRequest carries the mission context for POST /v1/coach.
type CoachRequest struct {
	PhaseID   string   `json:"phase_id"`
	TaskID    string   `json:"task_id"`
	Title     string   `json:"title"`
	Objective string   `json:"objective"`
	Actions   []string `json:"actions,omitempty"`
}

// Mission converts the request into the domain mission context.
func (r CoachRequest) Mission() domain.MissionContext {
	return domain.MissionContext{
		PhaseID:   r.PhaseID,
		TaskID:    r.TaskID,
		Title:     r.Title,
		Objective: r.Objective,
		Actions:   r.Actions,
	}
}

func toProfileView(p domain.Profile) ProfileView {
	return ProfileView{
		DeclaredRole: p.DeclaredRole,
		RealRole:     p.RealRole,
		Maturity:     p.Maturity,
		Strengths:    p.Strengths,
		Weaknesses:   p.Weaknesses,
		SkillGaps:    p.SkillGaps,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
