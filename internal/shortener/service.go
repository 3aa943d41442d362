package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/warplink/warplink/codegen"
	"github.com/warplink/warplink/internal/errx"
	"github.com/warplink/warplink/internal/expiry"
	"github.com/warplink/warplink/internal/password"
)

const (
	DefaultCodeLength            = 6
	MinCustomCodeLength          = 3
	MaxCustomCodeLength          = 20
	MaxURLLength                 = 2048
	MinPasswordLength            = 6
	DefaultMaxGenerationAttempts = 5
	DefaultClickTimeout          = 5 * time.Second
)

// CreateLinkRequest represents the parameters for creating a new link.
type CreateLinkRequest struct {
	OriginalURL string
	CustomCode  string // Optional: if empty, a code will be generated
	Expiration  string // Symbolic token; empty means never
	Password    string // Optional: non-empty enables password protection
}

// Service defines the business logic operations for URL shortening.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	Resolve(ctx context.Context, code string) (Link, error)
	VerifyPassword(ctx context.Context, code, supplied string) error
}

// service implements the Service interface.
type service struct {
	repo         Repository
	codes        codegen.Generator
	hasher       password.Hasher
	logger       *slog.Logger
	codeLength   int
	maxAttempts  int
	clickTimeout time.Duration
	now          func() time.Time
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	CodeGenerator         codegen.Generator
	Hasher                password.Hasher
	Logger                *slog.Logger
	CodeLength            int
	MaxGenerationAttempts int // attempts when generating a unique code (default: 5)
	ClickTimeout          time.Duration
	Now                   func() time.Time // injectable clock for tests
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	codes := config.CodeGenerator
	if codes == nil {
		codes = codegen.NewBase62()
	}

	hasher := config.Hasher
	if hasher == nil {
		hasher = password.NewBcrypt(0)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	codeLength := config.CodeLength
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}

	attempts := config.MaxGenerationAttempts
	if attempts <= 0 {
		attempts = DefaultMaxGenerationAttempts
	}

	clickTimeout := config.ClickTimeout
	if clickTimeout <= 0 {
		clickTimeout = DefaultClickTimeout
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		repo:         repo,
		codes:        codes,
		hasher:       hasher,
		logger:       logger,
		codeLength:   codeLength,
		maxAttempts:  attempts,
		clickTimeout: clickTimeout,
		now:          now,
	}
}

// Create creates a new short link with optional custom code, expiration
// window, and access password. Exactly one record is persisted on success;
// any failure short-circuits before the insert.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	const op = "shortener.service.Create"

	if err := validateURL(req.OriginalURL); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	code, err := s.resolveCode(ctx, req.CustomCode)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	expiresAt, err := expiry.At(req.Expiration, s.now())
	if err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	var passwordHash *string
	if req.Password != "" {
		if len(req.Password) < MinPasswordLength {
			return Link{}, errx.E(op, errx.Invalid,
				fmt.Errorf("password must be at least %d characters long", MinPasswordLength))
		}
		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			return Link{}, errx.E(op, errx.Internal, err)
		}
		passwordHash = &hash
	}

	created, err := s.repo.CreateLink(ctx, Link{
		OriginalURL:  req.OriginalURL,
		ShortCode:    code,
		ExpiresAt:    expiresAt,
		PasswordHash: passwordHash,
	})
	if err != nil {
		// The unique constraint is the backstop for the existence-check race:
		// a lost race on a custom code still surfaces as Conflict here.
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return created, nil
}

// resolveCode settles the short code for a new link. A custom code fails fast
// when taken; generated codes get a bounded number of attempts.
func (s *service) resolveCode(ctx context.Context, customCode string) (string, error) {
	const op = "shortener.service.resolveCode"

	if customCode != "" {
		if err := validateCustomCode(customCode); err != nil {
			return "", errx.E(op, errx.Invalid, err)
		}

		taken, err := s.repo.CodeExists(ctx, customCode)
		if err != nil {
			return "", errx.E(op, errx.KindOf(err), err)
		}
		if taken {
			return "", errx.E(op, errx.Conflict, errors.New("custom code already in use"))
		}
		return customCode, nil
	}

	for range s.maxAttempts {
		candidate, err := s.codes.Generate(s.codeLength)
		if err != nil {
			return "", errx.E(op, errx.Internal, err)
		}

		taken, err := s.repo.CodeExists(ctx, candidate)
		if err != nil {
			return "", errx.E(op, errx.KindOf(err), err)
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", errx.E(op, errx.Internal,
		fmt.Errorf("could not generate unique code after %d attempts", s.maxAttempts))
}

// Resolve looks up a link by code, enforces expiration, and dispatches the
// click increment off the request path. The caller gets the record back
// before the increment lands; an increment failure is logged, never surfaced.
func (s *service) Resolve(ctx context.Context, code string) (Link, error) {
	const op = "shortener.service.Resolve"

	if code == "" {
		return Link{}, errx.E(op, errx.Invalid, errors.New("code cannot be empty"))
	}

	link, err := s.repo.GetLinkByCode(ctx, code)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	if link.ExpiresAt != nil && s.now().After(*link.ExpiresAt) {
		return Link{}, errx.E(op, errx.Gone, errors.New("link has expired"))
	}

	s.trackClick(ctx, link.ID)

	return link, nil
}

// trackClick bumps the click counter in the background. The context is
// detached from the request so client abandonment does not lose the count.
func (s *service) trackClick(ctx context.Context, id int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.clickTimeout)
		defer cancel()

		if err := s.repo.IncrementClicks(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "click increment failed",
				"link_id", id,
				"error", err.Error(),
			)
		}
	}()
}

// VerifyPassword checks a supplied password against a protected link. It does
// not gate Resolve: the consumer is expected to withhold navigation until
// verification succeeds.
func (s *service) VerifyPassword(ctx context.Context, code, supplied string) error {
	const op = "shortener.service.VerifyPassword"

	if code == "" {
		return errx.E(op, errx.Invalid, errors.New("code cannot be empty"))
	}

	link, err := s.repo.GetLinkByCode(ctx, code)
	if err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}

	if link.PasswordHash == nil {
		return errx.E(op, errx.Invalid, errors.New("link is not password protected"))
	}

	if !s.hasher.Verify(supplied, *link.PasswordHash) {
		return errx.E(op, errx.Unauthorized, errors.New("incorrect password"))
	}
	return nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must include scheme (http or https)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}

func validateCustomCode(code string) error {
	if len(code) < MinCustomCodeLength {
		return errors.New("custom code too short (minimum 3 characters)")
	}
	if len(code) > MaxCustomCodeLength {
		return errors.New("custom code too long (maximum 20 characters)")
	}

	for _, char := range code {
		if !isValidCodeChar(char) {
			return errors.New("custom code contains invalid characters (only letters, numbers, dashes, and underscores allowed)")
		}
	}
	return nil
}

func isValidCodeChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	default:
		return false
	}
}
