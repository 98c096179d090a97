package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsBoard/internal/domain"
	"NewsBoard/internal/scanner"
)

const defaultTable = "stories"

// PostgresScanner reads panel candidates from a stories table, newest first.
// Options: table, section (defaults to the panel key, "*" for every
// section) and excludeSources (comma separated).
type PostgresScanner struct {
	db *sql.DB
}

var _ scanner.Scanner = (*PostgresScanner)(nil)

// NewPostgresScanner wires a sql.DB implementation.
func NewPostgresScanner(db *sql.DB) *PostgresScanner {
	return &PostgresScanner{db: db}
}

// Name identifies the strategy inside the registry.
func (r *PostgresScanner) Name() string {
	return "postgres"
}

// Scan runs the panel query.
func (r *PostgresScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.ContentItem, error) {
	if r.db == nil {
		return nil, fmt.Errorf("postgres scanner has no database")
	}

	query, args, err := buildQuery(req)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stories: %w", err)
	}

	var result []domain.ContentItem
	for rows.Next() {
		var (
			id, title                    string
			image, link, source          sql.NullString
			publishedAt                  sql.NullTime
			breaking, trending, featured bool
		)
		if err := rows.Scan(&id, &title, &image, &link, &source, &publishedAt, &breaking, &trending, &featured); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan story: %w", err)
		}
		result = append(result, domain.ContentItem{
			ID:          domain.NormalizeID(id),
			Title:       strings.TrimSpace(title),
			Image:       image.String,
			URL:         link.String,
			Source:      source.String,
			PublishedAt: publishedAt.Time,
			Flags:       domain.Flags{Breaking: breaking, Trending: trending, Featured: featured},
		})
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

func buildQuery(req scanner.Request) (string, []interface{}, error) {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(
			"external_id::text",
			"title",
			"image_url",
			"url",
			"source",
			"published_at",
			"COALESCE(is_breaking, false)",
			"COALESCE(is_trending, false)",
			"COALESCE(is_featured, false)",
		).
		From(req.Option("table", defaultTable)).
		Where(sq.NotEq{"title": ""}).
		OrderBy("published_at DESC NULLS LAST", "external_id")

	if section := req.Option("section", req.PanelKey); section != "*" {
		builder = builder.Where(sq.Eq{"section": section})
	}

	if excluded := splitList(req.Option("excludeSources", "")); len(excluded) > 0 {
		builder = builder.Where(sq.Expr("NOT (source = ANY(?))", pq.Array(excluded)))
	}

	if req.Limit > 0 {
		builder = builder.Limit(uint64(req.Limit))
	}

	return builder.ToSql()
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
