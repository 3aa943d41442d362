package shortener

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/warplink/warplink/internal/errx"
	"github.com/warplink/warplink/internal/httpx"
)

/***************
 * Mock Service
 ***************/

type mockService struct {
	createFunc         func(ctx context.Context, req CreateLinkRequest) (Link, error)
	resolveFunc        func(ctx context.Context, code string) (Link, error)
	verifyPasswordFunc func(ctx context.Context, code, supplied string) error
}

func (m *mockService) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return Link{
		ID:          1,
		OriginalURL: req.OriginalURL,
		ShortCode:   "abc123",
		CreatedAt:   time.Now(),
	}, nil
}

func (m *mockService) Resolve(ctx context.Context, code string) (Link, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, code)
	}
	return Link{
		ID:          1,
		OriginalURL: "https://example.com",
		ShortCode:   code,
		CreatedAt:   time.Now(),
	}, nil
}

func (m *mockService) VerifyPassword(ctx context.Context, code, supplied string) error {
	if m.verifyPasswordFunc != nil {
		return m.verifyPasswordFunc(ctx, code, supplied)
	}
	return nil
}

func newTestHandler(svc Service) *Handler {
	return NewHandler(HandlerConfig{
		Service: svc,
		Logger:  testLogger(),
		BaseURL: "https://warp.link",
	})
}

func postJSON(t *testing.T, target, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return v
}

/***************
 * CreateLink Tests
 ***************/

func TestHandlerCreateLink(t *testing.T) {
	t.Run("creates link successfully", func(t *testing.T) {
		created := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
		handler := newTestHandler(&mockService{
			createFunc: func(ctx context.Context, req CreateLinkRequest) (Link, error) {
				return Link{
					ID:          42,
					OriginalURL: req.OriginalURL,
					ShortCode:   "abc123",
					CreatedAt:   created,
				}, nil
			},
		})

		req := postJSON(t, "/api/shorten", `{"originalUrl": "https://example.com"}`)
		rec := httptest.NewRecorder()

		handler.CreateLink(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
		}

		resp := decodeBody[LinkResponse](t, rec)
		if resp.ID != 42 {
			t.Errorf("id = %d, want 42", resp.ID)
		}
		if resp.ShortCode != "abc123" {
			t.Errorf("shortCode = %q, want %q", resp.ShortCode, "abc123")
		}
		if resp.ShortURL != "https://warp.link/abc123" {
			t.Errorf("shortUrl = %q, want %q", resp.ShortURL, "https://warp.link/abc123")
		}
		if resp.IsPasswordProtected {
			t.Error("isPasswordProtected = true, want false")
		}
	})

	t.Run("passes all request fields to the service", func(t *testing.T) {
		var captured CreateLinkRequest
		handler := newTestHandler(&mockService{
			createFunc: func(ctx context.Context, req CreateLinkRequest) (Link, error) {
				captured = req
				return Link{ID: 1, OriginalURL: req.OriginalURL, ShortCode: req.CustomCode}, nil
			},
		})

		body := `{"originalUrl": "https://example.com", "customCode": "my-code", "expiration": "1h", "password": "secret1"}`
		rec := httptest.NewRecorder()

		handler.CreateLink(rec, postJSON(t, "/api/shorten", body))

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
		}
		if captured.OriginalURL != "https://example.com" {
			t.Errorf("OriginalURL = %q, want %q", captured.OriginalURL, "https://example.com")
		}
		if captured.CustomCode != "my-code" {
			t.Errorf("CustomCode = %q, want %q", captured.CustomCode, "my-code")
		}
		if captured.Expiration != "1h" {
			t.Errorf("Expiration = %q, want %q", captured.Expiration, "1h")
		}
		if captured.Password != "secret1" {
			t.Errorf("Password = %q, want %q", captured.Password, "secret1")
		}
	})

	t.Run("never leaks the password hash", func(t *testing.T) {
		hash := "$2a$10$somebcryptvalue"
		handler := newTestHandler(&mockService{
			createFunc: func(ctx context.Context, req CreateLinkRequest) (Link, error) {
				return Link{
					ID:           1,
					OriginalURL:  req.OriginalURL,
					ShortCode:    "abc123",
					PasswordHash: &hash,
				}, nil
			},
		})

		body := `{"originalUrl": "https://example.com", "password": "secret1"}`
		rec := httptest.NewRecorder()

		handler.CreateLink(rec, postJSON(t, "/api/shorten", body))

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
		}
		if strings.Contains(rec.Body.String(), hash) {
			t.Error("response body contains the password hash")
		}
		if strings.Contains(rec.Body.String(), "passwordHash") {
			t.Error("response body contains a passwordHash field")
		}

		resp := decodeBody[LinkResponse](t, rec)
		if !resp.IsPasswordProtected {
			t.Error("isPasswordProtected = false, want true")
		}
	})

	t.Run("rejects filled honeypot without calling the service", func(t *testing.T) {
		called := false
		handler := newTestHandler(&mockService{
			createFunc: func(ctx context.Context, req CreateLinkRequest) (Link, error) {
				called = true
				return Link{}, nil
			},
		})

		body := `{"originalUrl": "https://example.com", "honeypot": "gotcha"}`
		rec := httptest.NewRecorder()

		handler.CreateLink(rec, postJSON(t, "/api/shorten", body))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
		if called {
			t.Error("service should not be called when honeypot is filled")
		}
	})

	t.Run("rejects missing originalUrl with field", func(t *testing.T) {
		handler := newTestHandler(&mockService{})

		rec := httptest.NewRecorder()
		handler.CreateLink(rec, postJSON(t, "/api/shorten", `{"customCode": "abc"}`))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}

		resp := decodeBody[httpx.ErrorResponse](t, rec)
		if resp.Field != "originalUrl" {
			t.Errorf("field = %q, want %q", resp.Field, "originalUrl")
		}
		if resp.Message == "" {
			t.Error("message is empty")
		}
	})

	t.Run("rejects unknown expiration with field", func(t *testing.T) {
		handler := newTestHandler(&mockService{})

		body := `{"originalUrl": "https://example.com", "expiration": "3y"}`
		rec := httptest.NewRecorder()

		handler.CreateLink(rec, postJSON(t, "/api/shorten", body))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}

		resp := decodeBody[httpx.ErrorResponse](t, rec)
		if resp.Field != "expiration" {
			t.Errorf("field = %q, want %q", resp.Field, "expiration")
		}
	})

	t.Run("rejects short password with field", func(t *testing.T) {
		handler := newTestHandler(&mockService{})

		body := `{"originalUrl": "https://example.com", "password": "abc"}`
		rec := httptest.NewRecorder()

		handler.CreateLink(rec, postJSON(t, "/api/shorten", body))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}

		resp := decodeBody[httpx.ErrorResponse](t, rec)
		if resp.Field != "password" {
			t.Errorf("field = %q, want %q", resp.Field, "password")
		}
	})

	t.Run("maps Conflict to 409", func(t *testing.T) {
		handler := newTestHandler(&mockService{
			createFunc: func(ctx context.Context, req CreateLinkRequest) (Link, error) {
				return Link{}, errx.E("shortener.service.Create", errx.Conflict,
					errors.New("custom code already in use"))
			},
		})

		body := `{"originalUrl": "https://example.com", "customCode": "taken"}`
		rec := httptest.NewRecorder()

		handler.CreateLink(rec, postJSON(t, "/api/shorten", body))

		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
		}

		resp := decodeBody[httpx.ErrorResponse](t, rec)
		if resp.Message != "Custom code already in use" {
			t.Errorf("message = %q, want %q", resp.Message, "Custom code already in use")
		}
	})

	t.Run("maps Invalid to 400 with the cause message", func(t *testing.T) {
		handler := newTestHandler(&mockService{
			createFunc: func(ctx context.Context, req CreateLinkRequest) (Link, error) {
				return Link{}, errx.E("shortener.service.Create", errx.Invalid,
					errors.New("url scheme must be http or https"))
			},
		})

		body := `{"originalUrl": "ftp://example.com"}`
		rec := httptest.NewRecorder()

		handler.CreateLink(rec, postJSON(t, "/api/shorten", body))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}

		resp := decodeBody[httpx.ErrorResponse](t, rec)
		if resp.Message != "url scheme must be http or https" {
			t.Errorf("message = %q, want cause without operation prefix", resp.Message)
		}
	})

	t.Run("maps Internal to 500", func(t *testing.T) {
		handler := newTestHandler(&mockService{
			createFunc: func(ctx context.Context, req CreateLinkRequest) (Link, error) {
				return Link{}, errx.E("shortener.service.Create", errx.Internal,
					errors.New("could not generate unique code after 5 attempts"))
			},
		})

		body := `{"originalUrl": "https://example.com"}`
		rec := httptest.NewRecorder()

		handler.CreateLink(rec, postJSON(t, "/api/shorten", body))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
		}

		resp := decodeBody[httpx.ErrorResponse](t, rec)
		if strings.Contains(resp.Message, "attempts") {
			t.Errorf("message = %q leaks internal detail", resp.Message)
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		handler := newTestHandler(&mockService{})

		rec := httptest.NewRecorder()
		handler.CreateLink(rec, postJSON(t, "/api/shorten", `{"originalUrl": `))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		handler := newTestHandler(&mockService{})

		body := `{"originalUrl": "https://example.com", "admin": true}`
		rec := httptest.NewRecorder()

		handler.CreateLink(rec, postJSON(t, "/api/shorten", body))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

/***************
 * ResolveLink Tests
 ***************/

func TestHandlerResolveLink(t *testing.T) {
	resolveRequest := func(code string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/resolve/"+code, nil)
		req.SetPathValue("code", code)
		return req
	}

	t.Run("resolves code successfully", func(t *testing.T) {
		handler := newTestHandler(&mockService{
			resolveFunc: func(ctx context.Context, code string) (Link, error) {
				return Link{
					ID:          7,
					OriginalURL: "https://example.com/path",
					ShortCode:   code,
					Clicks:      3,
					CreatedAt:   time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
				}, nil
			},
		})

		rec := httptest.NewRecorder()
		handler.ResolveLink(rec, resolveRequest("abc123"))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		resp := decodeBody[LinkResponse](t, rec)
		if resp.OriginalURL != "https://example.com/path" {
			t.Errorf("originalUrl = %q, want %q", resp.OriginalURL, "https://example.com/path")
		}
		if resp.Clicks != 3 {
			t.Errorf("clicks = %d, want 3", resp.Clicks)
		}
		if resp.ShortURL != "" {
			t.Errorf("shortUrl = %q, want empty on resolve", resp.ShortURL)
		}
	})

	t.Run("reports password protection without the hash", func(t *testing.T) {
		hash := "$2a$10$somebcryptvalue"
		handler := newTestHandler(&mockService{
			resolveFunc: func(ctx context.Context, code string) (Link, error) {
				return Link{
					ID:           1,
					OriginalURL:  "https://example.com",
					ShortCode:    code,
					PasswordHash: &hash,
				}, nil
			},
		})

		rec := httptest.NewRecorder()
		handler.ResolveLink(rec, resolveRequest("abc123"))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		resp := decodeBody[LinkResponse](t, rec)
		if !resp.IsPasswordProtected {
			t.Error("isPasswordProtected = false, want true")
		}
		if strings.Contains(rec.Body.String(), hash) {
			t.Error("response body contains the password hash")
		}
	})

	t.Run("maps NotFound to 404", func(t *testing.T) {
		handler := newTestHandler(&mockService{
			resolveFunc: func(ctx context.Context, code string) (Link, error) {
				return Link{}, errx.E("shortener.service.Resolve", errx.NotFound,
					errors.New("not found"))
			},
		})

		rec := httptest.NewRecorder()
		handler.ResolveLink(rec, resolveRequest("missing"))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}

		resp := decodeBody[httpx.ErrorResponse](t, rec)
		if resp.Message != "URL not found" {
			t.Errorf("message = %q, want %q", resp.Message, "URL not found")
		}
	})

	t.Run("maps Gone to 410", func(t *testing.T) {
		handler := newTestHandler(&mockService{
			resolveFunc: func(ctx context.Context, code string) (Link, error) {
				return Link{}, errx.E("shortener.service.Resolve", errx.Gone,
					errors.New("link has expired"))
			},
		})

		rec := httptest.NewRecorder()
		handler.ResolveLink(rec, resolveRequest("expired"))

		if rec.Code != http.StatusGone {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusGone)
		}

		resp := decodeBody[httpx.ErrorResponse](t, rec)
		if resp.Message != "URL has expired" {
			t.Errorf("message = %q, want %q", resp.Message, "URL has expired")
		}
	})

	t.Run("maps Internal to 500", func(t *testing.T) {
		handler := newTestHandler(&mockService{
			resolveFunc: func(ctx context.Context, code string) (Link, error) {
				return Link{}, errx.E("shortener.service.Resolve", errx.Internal,
					errors.New("db down"))
			},
		})

		rec := httptest.NewRecorder()
		handler.ResolveLink(rec, resolveRequest("abc123"))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
		}
	})

	t.Run("rejects missing code", func(t *testing.T) {
		handler := newTestHandler(&mockService{})

		req := httptest.NewRequest(http.MethodGet, "/api/resolve/", nil)
		rec := httptest.NewRecorder()

		handler.ResolveLink(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

/***************
 * VerifyPassword Tests
 ***************/

func TestHandlerVerifyPassword(t *testing.T) {
	verifyRequest := func(t *testing.T, code, body string) *http.Request {
		req := postJSON(t, "/api/resolve/"+code+"/verify-password", body)
		req.SetPathValue("code", code)
		return req
	}

	t.Run("verifies correct password", func(t *testing.T) {
		var gotCode, gotPassword string
		handler := newTestHandler(&mockService{
			verifyPasswordFunc: func(ctx context.Context, code, supplied string) error {
				gotCode, gotPassword = code, supplied
				return nil
			},
		})

		rec := httptest.NewRecorder()
		handler.VerifyPassword(rec, verifyRequest(t, "abc123", `{"password": "secret1"}`))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if gotCode != "abc123" {
			t.Errorf("code = %q, want %q", gotCode, "abc123")
		}
		if gotPassword != "secret1" {
			t.Errorf("password = %q, want %q", gotPassword, "secret1")
		}

		resp := decodeBody[map[string]string](t, rec)
		if resp["message"] != "Password verified" {
			t.Errorf("message = %q, want %q", resp["message"], "Password verified")
		}
	})

	t.Run("maps Unauthorized to 401", func(t *testing.T) {
		handler := newTestHandler(&mockService{
			verifyPasswordFunc: func(ctx context.Context, code, supplied string) error {
				return errx.E("shortener.service.VerifyPassword", errx.Unauthorized,
					errors.New("incorrect password"))
			},
		})

		rec := httptest.NewRecorder()
		handler.VerifyPassword(rec, verifyRequest(t, "abc123", `{"password": "wrong1"}`))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}

		resp := decodeBody[httpx.ErrorResponse](t, rec)
		if resp.Message != "Incorrect password" {
			t.Errorf("message = %q, want %q", resp.Message, "Incorrect password")
		}
	})

	t.Run("maps NotFound to 404", func(t *testing.T) {
		handler := newTestHandler(&mockService{
			verifyPasswordFunc: func(ctx context.Context, code, supplied string) error {
				return errx.E("shortener.service.VerifyPassword", errx.NotFound,
					errors.New("not found"))
			},
		})

		rec := httptest.NewRecorder()
		handler.VerifyPassword(rec, verifyRequest(t, "missing", `{"password": "secret1"}`))

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("maps Invalid to 400 for unprotected links", func(t *testing.T) {
		handler := newTestHandler(&mockService{
			verifyPasswordFunc: func(ctx context.Context, code, supplied string) error {
				return errx.E("shortener.service.VerifyPassword", errx.Invalid,
					errors.New("link is not password protected"))
			},
		})

		rec := httptest.NewRecorder()
		handler.VerifyPassword(rec, verifyRequest(t, "abc123", `{"password": "secret1"}`))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}

		resp := decodeBody[httpx.ErrorResponse](t, rec)
		if resp.Message != "link is not password protected" {
			t.Errorf("message = %q, want %q", resp.Message, "link is not password protected")
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		handler := newTestHandler(&mockService{})

		rec := httptest.NewRecorder()
		handler.VerifyPassword(rec, verifyRequest(t, "abc123", `{"password": `))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}
