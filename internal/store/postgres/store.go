// Package postgres is the relational CatalogStore. The merge rules of
// domain.Merge are expressed in the ON CONFLICT clause so that concurrent
// upserts resolve inside the database.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/store"
)

//go:embed schema.sql
var schema string

const tableEntries = "catalog_entries"

// uniqueViolation is the SQLSTATE of a unique constraint failure.
const uniqueViolation = "23505"

var insertColumns = []string{
	"id", "external_id", "source", "name", "description", "price", "currency",
	"category", "commission", "link", "affiliate_link", "score", "sales",
	"rating", "is_affiliated", "is_active", "missed_cycles", "discovered_at",
	"updated_at",
}

var selectColumns = []string{
	"id::text", "external_id", "source", "name", "description", "price::text",
	"currency", "category", "commission", "link", "affiliate_link", "score",
	"sales", "rating", "is_affiliated", "is_active", "missed_cycles",
	"discovered_at", "updated_at",
}

// onConflict keeps id, discovered_at and a previously granted affiliation.
const onConflict = `ON CONFLICT (external_id) DO UPDATE SET
    source = EXCLUDED.source,
    name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE catalog_entries.name END,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    currency = EXCLUDED.currency,
    category = EXCLUDED.category,
    commission = EXCLUDED.commission,
    link = CASE WHEN EXCLUDED.link <> '' THEN EXCLUDED.link ELSE catalog_entries.link END,
    affiliate_link = CASE
        WHEN EXCLUDED.is_affiliated AND EXCLUDED.affiliate_link <> '' THEN EXCLUDED.affiliate_link
        ELSE catalog_entries.affiliate_link END,
    is_affiliated = catalog_entries.is_affiliated OR (EXCLUDED.is_affiliated AND EXCLUDED.affiliate_link <> ''),
    score = EXCLUDED.score,
    sales = EXCLUDED.sales,
    rating = EXCLUDED.rating,
    is_active = EXCLUDED.is_active,
    missed_cycles = EXCLUDED.missed_cycles,
    updated_at = EXCLUDED.updated_at`

// Store persists catalog entries in Postgres.
type Store struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
	now  func() time.Time
}

var _ store.CatalogStore = (*Store)(nil)

// NewStore wires a pool. Call Migrate once before use.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:  time.Now,
	}
}

// Migrate creates the catalog table and its indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return domain.StorageUnavailable("postgres migrate", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return domain.StorageUnavailable("postgres ping", err)
	}
	return nil
}

// Upsert inserts or merges e. A unique violation can still surface when two
// transactions insert the same new id at once; the loser retries once and
// lands on the DO UPDATE branch.
func (s *Store) Upsert(ctx context.Context, e *domain.CatalogEntry) (*domain.CatalogEntry, error) {
	if e == nil || e.ExternalID == "" {
		return nil, fmt.Errorf("upsert: entry without external id")
	}

	var (
		out *domain.CatalogEntry
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		out, err = s.upsertOnce(ctx, e)
		if !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return nil, domain.StorageUnavailable("postgres upsert", err)
	}
	return out, nil
}

func (s *Store) upsertOnce(ctx context.Context, e *domain.CatalogEntry) (*domain.CatalogEntry, error) {
	query, args, err := s.buildUpsert(domain.PrepareInsert(e, s.now().UTC()))
	if err != nil {
		return nil, err
	}
	return scanEntry(s.pool.QueryRow(ctx, query, args...))
}

func (s *Store) buildUpsert(e *domain.CatalogEntry) (string, []interface{}, error) {
	query, args, err := s.sb.Insert(tableEntries).
		Columns(insertColumns...).
		Values(
			e.ID.String(), e.ExternalID, e.Source, e.Name, e.Description,
			sq.Expr("?::numeric", e.Price.String()), e.Currency, e.Category,
			e.Commission, e.Link, e.AffiliateLink, e.Score, e.Sales, e.Rating,
			e.IsAffiliated, e.IsActive, e.MissedCycles, e.DiscoveredAt, e.UpdatedAt,
		).
		Suffix(onConflict + " RETURNING " + strings.Join(selectColumns, ", ")).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build upsert: %w", err)
	}
	return query, args, nil
}

// Get returns the entry or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, externalID string) (*domain.CatalogEntry, error) {
	query, args, err := s.sb.Select(selectColumns...).
		From(tableEntries).
		Where(sq.Eq{"external_id": externalID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get: %w", err)
	}

	e, err := scanEntry(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, domain.StorageUnavailable("postgres get", err)
	}
	return e, nil
}

// List runs the filter server side, newest first.
func (s *Store) List(ctx context.Context, f store.Filter) ([]*domain.CatalogEntry, error) {
	query, args, err := s.buildList(f)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageUnavailable("postgres list", err)
	}
	defer rows.Close()

	entries := make([]*domain.CatalogEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, domain.StorageUnavailable("postgres list", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageUnavailable("postgres list", err)
	}
	return entries, nil
}

func (s *Store) buildList(f store.Filter) (string, []interface{}, error) {
	q := s.sb.Select(selectColumns...).From(tableEntries)
	if f.Source != "" {
		q = q.Where(sq.Eq{"source": f.Source})
	}
	if f.ActiveOnly {
		q = q.Where(sq.Eq{"is_active": true})
	}
	if f.AffiliatedOnly {
		q = q.Where(sq.Eq{"is_affiliated": true})
	}
	query, args, err := q.OrderBy("discovered_at DESC", "external_id ASC").
		Limit(uint64(f.EffectiveLimit())).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build list: %w", err)
	}
	return query, args, nil
}

// UpdatePresence writes the reconciliation fields. updated_at moves only
// when the active flag flips.
func (s *Store) UpdatePresence(ctx context.Context, externalID string, missed int, active bool) error {
	query, args, err := s.sb.Update(tableEntries).
		Set("missed_cycles", missed).
		Set("updated_at", sq.Expr("CASE WHEN is_active <> ? THEN ? ELSE updated_at END", active, s.now().UTC())).
		Set("is_active", active).
		Where(sq.Eq{"external_id": externalID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update presence: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return domain.StorageUnavailable("postgres update presence", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.CatalogEntry, error) {
	var (
		e     domain.CatalogEntry
		id    string
		price string
	)
	err := row.Scan(
		&id, &e.ExternalID, &e.Source, &e.Name, &e.Description, &price,
		&e.Currency, &e.Category, &e.Commission, &e.Link, &e.AffiliateLink,
		&e.Score, &e.Sales, &e.Rating, &e.IsAffiliated, &e.IsActive,
		&e.MissedCycles, &e.DiscoveredAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if e.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id %q: %w", id, err)
	}
	if e.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	e.DiscoveredAt = e.DiscoveredAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
