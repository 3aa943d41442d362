package shortener

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/warplink/warplink/internal/errx"
)

// querier is the subset of pgxpool.Pool the repository needs. Abstracting it
// keeps the repository testable without a live database.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repo struct {
	q querier
}

// NewRepository creates a pgx-backed Repository.
func NewRepository(q querier) Repository {
	return &repo{q: q}
}

const linkColumns = "id, original_url, short_code, expires_at, created_at, clicks, password_hash"

func scanLink(row pgx.Row) (Link, error) {
	var link Link
	err := row.Scan(
		&link.ID,
		&link.OriginalURL,
		&link.ShortCode,
		&link.ExpiresAt,
		&link.CreatedAt,
		&link.Clicks,
		&link.PasswordHash,
	)
	return link, err
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isShortCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Internal, err)
	}
}

func (r *repo) CreateLink(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.repo.CreateLink"

	row := r.q.QueryRow(ctx,
		`INSERT INTO urls (original_url, short_code, expires_at, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+linkColumns,
		link.OriginalURL, link.ShortCode, link.ExpiresAt, link.PasswordHash,
	)

	created, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return created, nil
}

func (r *repo) GetLinkByCode(ctx context.Context, code string) (Link, error) {
	const op = "shortener.repo.GetLinkByCode"

	row := r.q.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM urls WHERE short_code = $1`,
		code,
	)

	link, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *repo) CodeExists(ctx context.Context, code string) (bool, error) {
	const op = "shortener.repo.CodeExists"

	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM urls WHERE short_code = $1)`,
		code,
	).Scan(&exists)
	if err != nil {
		return false, mapRepoError(op, err)
	}
	return exists, nil
}

// IncrementClicks is a single atomic UPDATE so concurrent increments are
// never lost.
func (r *repo) IncrementClicks(ctx context.Context, id int64) error {
	const op = "shortener.repo.IncrementClicks"

	tag, err := r.q.Exec(ctx,
		`UPDATE urls SET clicks = clicks + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return mapRepoError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, pgx.ErrNoRows)
	}
	return nil
}
