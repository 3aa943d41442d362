package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/warplink/warplink/internal/errx"
	"github.com/warplink/warplink/internal/expiry"
	"github.com/warplink/warplink/internal/httpx"
)

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
// Honeypot is a hidden form field; bots fill it, humans never see it.
type HTTPCreateLinkRequest struct {
	OriginalURL string `json:"originalUrl"`
	CustomCode  string `json:"customCode,omitempty"`
	Expiration  string `json:"expiration,omitempty"`
	Password    string `json:"password,omitempty"`
	Honeypot    string `json:"honeypot,omitempty"`
}

// HTTPVerifyPasswordRequest represents the JSON request body for password
// verification.
type HTTPVerifyPasswordRequest struct {
	Password string `json:"password"`
}

// LinkResponse represents a link in JSON responses. The password hash is
// never part of this shape; only the derived boolean is.
type LinkResponse struct {
	ID                  int64      `json:"id"`
	OriginalURL         string     `json:"originalUrl"`
	ShortCode           string     `json:"shortCode"`
	ExpiresAt           *time.Time `json:"expiresAt"`
	CreatedAt           time.Time  `json:"createdAt"`
	Clicks              int64      `json:"clicks"`
	IsPasswordProtected bool       `json:"isPasswordProtected"`
	ShortURL            string     `json:"shortUrl,omitempty"`
}

func toLinkResponse(link Link) LinkResponse {
	return LinkResponse{
		ID:                  link.ID,
		OriginalURL:         link.OriginalURL,
		ShortCode:           link.ShortCode,
		ExpiresAt:           link.ExpiresAt,
		CreatedAt:           link.CreatedAt,
		Clicks:              link.Clicks,
		IsPasswordProtected: link.IsPasswordProtected(),
	}
}

// Handler provides HTTP handlers for the URL shortener service.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // Base URL for constructing short URLs (e.g., "https://warp.link")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: cfg.BaseURL,
	}
}

// CreateLink handles POST /api/shorten.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger := h.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Admission check, not core logic: a filled honeypot means a bot.
	if req.Honeypot != "" {
		logger.WarnContext(ctx, "honeypot tripped", "remote_addr", r.RemoteAddr)
		httpx.WriteError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if message, field := validateCreateRequest(req); message != "" {
		logger.WarnContext(ctx, "request validation failed",
			"message", message,
			"field", field,
		)
		httpx.WriteFieldError(w, http.StatusBadRequest, message, field)
		return
	}

	link, err := h.service.Create(ctx, CreateLinkRequest{
		OriginalURL: req.OriginalURL,
		CustomCode:  req.CustomCode,
		Expiration:  req.Expiration,
		Password:    req.Password,
	})
	if err != nil {
		h.handleCreateError(ctx, w, err)
		return
	}

	resp := toLinkResponse(link)
	resp.ShortURL = fmt.Sprintf("%s/%s", h.baseURL, link.ShortCode)

	logger.InfoContext(ctx, "link created",
		"link_id", link.ID,
		"short_code", link.ShortCode,
		"custom_code", req.CustomCode != "",
		"protected", link.IsPasswordProtected(),
	)

	httpx.WriteJSON(w, http.StatusCreated, resp)
}

// ResolveLink handles GET /api/resolve/{code}. It returns link metadata for
// the interstitial page; the redirect itself happens client-side.
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger := h.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)

	code := r.PathValue("code")
	if code == "" {
		logger.WarnContext(ctx, "missing code in path")
		httpx.WriteError(w, http.StatusBadRequest, "code is required")
		return
	}

	link, err := h.service.Resolve(ctx, code)
	if err != nil {
		h.handleResolveError(ctx, w, err, code)
		return
	}

	logger.InfoContext(ctx, "code resolved",
		"short_code", code,
		"link_id", link.ID,
		"protected", link.IsPasswordProtected(),
	)

	httpx.WriteJSON(w, http.StatusOK, toLinkResponse(link))
}

// VerifyPassword handles POST /api/resolve/{code}/verify-password.
func (h *Handler) VerifyPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger := h.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)

	code := r.PathValue("code")
	if code == "" {
		logger.WarnContext(ctx, "missing code in path")
		httpx.WriteError(w, http.StatusBadRequest, "code is required")
		return
	}

	req, err := httpx.DecodeJSON[HTTPVerifyPasswordRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.VerifyPassword(ctx, code, req.Password); err != nil {
		h.handleVerifyError(ctx, w, err, code)
		return
	}

	logger.InfoContext(ctx, "password verified", "short_code", code)

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password verified",
	})
}

// handleCreateError handles errors from the Create service method.
func (h *Handler) handleCreateError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Conflict:
		h.logger.WarnContext(ctx, "custom code conflict", logAttrs...)
		httpx.WriteError(w, http.StatusConflict, "Custom code already in use")

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid link request", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, causeOf(err))

	default:
		h.logger.ErrorContext(ctx, "unexpected error creating link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError,
			"Failed to shorten URL. Please try again.")
	}
}

// handleResolveError handles errors from the Resolve service method.
func (h *Handler) handleResolveError(ctx context.Context, w http.ResponseWriter, err error, code string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"short_code", code,
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "code not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "URL not found")

	case errx.Gone:
		h.logger.WarnContext(ctx, "code expired", logAttrs...)
		httpx.WriteError(w, http.StatusGone, "URL has expired")

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid code", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, causeOf(err))

	default:
		h.logger.ErrorContext(ctx, "unexpected error resolving link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError,
			"Unable to resolve this link at this time")
	}
}

// handleVerifyError handles errors from the VerifyPassword service method.
func (h *Handler) handleVerifyError(ctx context.Context, w http.ResponseWriter, err error, code string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"short_code", code,
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "code not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "URL not found")

	case errx.Unauthorized:
		h.logger.WarnContext(ctx, "wrong password", logAttrs...)
		httpx.WriteError(w, http.StatusUnauthorized, "Incorrect password")

	case errx.Invalid:
		h.logger.WarnContext(ctx, "bad verification request", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, causeOf(err))

	default:
		h.logger.ErrorContext(ctx, "unexpected error verifying password", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError,
			"Unable to verify password at this time")
	}
}

// validateCreateRequest performs lightweight field-level validation so 400
// responses can name the offending field. The service repeats the
// authoritative checks.
func validateCreateRequest(req HTTPCreateLinkRequest) (message, field string) {
	if req.OriginalURL == "" {
		return "originalUrl is required", "originalUrl"
	}
	if !expiry.Valid(req.Expiration) {
		return "invalid expiration", "expiration"
	}
	if req.Password != "" && len(req.Password) < MinPasswordLength {
		return "Password must be at least 6 characters long", "password"
	}
	return "", ""
}

// causeOf digs out the innermost error message, skipping operation prefixes,
// for user-facing validation responses.
func causeOf(err error) string {
	cause := err
	for {
		var e *errx.Error
		if errors.As(cause, &e) && e.Err != nil {
			cause = e.Err
			continue
		}
		return cause.Error()
	}
}
