package catalog

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/medilink/internal/common"
)

const drugsTable = "drugs"

var drugColumns = []string{"id", "link", "title", "price", "meta", "description", "detail", "side_effect"}

// SQLStore keeps the catalog in a relational table, built with ent's SQL
// builder so Postgres and SQLite share one code path.
type SQLStore struct {
	drv    *entsql.Driver
	closer func() error
	logger *slog.Logger
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps db for the given ent dialect (dialect.Postgres or dialect.SQLite).
func NewSQLStore(dialectName string, db *stdsql.DB, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	drv := entsql.OpenDB(dialectName, db)
	return &SQLStore{drv: drv, closer: drv.Close, logger: logger}
}

func (s *SQLStore) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

// Dialect reports the SQL dialect in use.
func (s *SQLStore) Dialect() string { return s.drv.Dialect() }

// Migrate creates the drugs table and its indexes when missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS drugs (
			id          VARCHAR(64) PRIMARY KEY,
			link        TEXT NOT NULL UNIQUE,
			title       TEXT NOT NULL,
			price       TEXT NOT NULL,
			meta        TEXT NOT NULL,
			description TEXT NOT NULL,
			detail      TEXT NOT NULL,
			side_effect TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS drugs_title_idx ON drugs (title)`,
	}
	for _, q := range stmts {
		if err := s.drv.Exec(ctx, q, []any{}, nil); err != nil {
			s.logger.Error("catalog.migrate.failed", "dialect", s.Dialect(), "error", err)
			return fmt.Errorf("migrate: %w: %w", common.ErrDatabase, err)
		}
	}
	s.logger.Info("catalog.migrate.ok", "dialect", s.Dialect())
	return nil
}

func (s *SQLStore) Search(ctx context.Context, q Query) (Page, error) {
	q = q.Normalize()
	b := s.builder()

	count := b.Select(entsql.Count("*")).From(b.Table(drugsTable))
	list := b.Select(drugColumns...).From(b.Table(drugsTable))
	if q.Search != "" {
		count.Where(entsql.ContainsFold("title", q.Search))
		list.Where(entsql.ContainsFold("title", q.Search))
	}
	list.OrderBy("title", "id").Limit(q.Limit).Offset(q.Offset())

	total, err := s.count(ctx, count)
	if err != nil {
		return Page{}, err
	}
	drugs, err := s.query(ctx, list)
	if err != nil {
		return Page{}, err
	}
	return newPage(q, drugs, total), nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Drug, error) {
	b := s.builder()
	sel := b.Select(drugColumns...).From(b.Table(drugsTable)).Where(entsql.EQ("id", id)).Limit(1)
	drugs, err := s.query(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(drugs) == 0 {
		return nil, fmt.Errorf("drug %q: %w", id, common.ErrNotFound)
	}
	return &drugs[0], nil
}

// Upsert inserts d, or refreshes every field but the id of the row sharing its link.
func (s *SQLStore) Upsert(ctx context.Context, d Drug) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	ins := s.builder().Insert(drugsTable).
		Columns(drugColumns...).
		Values(d.ID, d.Link, d.Title, d.Price, d.Meta, d.Desc, d.Detail, d.SideEffect).
		OnConflict(
			entsql.ConflictColumns("link"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				for _, c := range drugColumns[2:] {
					u.SetExcluded(c)
				}
			}),
		)
	query, args, err := ins.QueryErr()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		s.logger.Error("catalog.upsert.failed", "link", d.Link, "error", err)
		return fmt.Errorf("upsert drug: %w: %w", common.ErrDatabase, err)
	}
	return nil
}

// Count returns the number of stored drugs.
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	b := s.builder()
	return s.count(ctx, b.Select(entsql.Count("*")).From(b.Table(drugsTable)))
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.drv.DB().PingContext(ctx)
}

func (s *SQLStore) Close(context.Context) error {
	return s.closer()
}

func (s *SQLStore) count(ctx context.Context, sel *entsql.Selector) (int64, error) {
	query, args := sel.Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return 0, fmt.Errorf("count drugs: %w: %w", common.ErrDatabase, err)
	}
	defer rows.Close()
	n, err := entsql.ScanInt64(rows)
	if err != nil {
		return 0, fmt.Errorf("scan count: %w: %w", common.ErrDatabase, err)
	}
	return n, nil
}

func (s *SQLStore) query(ctx context.Context, sel *entsql.Selector) ([]Drug, error) {
	query, args := sel.Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query drugs: %w: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []Drug
	for rows.Next() {
		var d Drug
		if err := rows.Scan(&d.ID, &d.Link, &d.Title, &d.Price, &d.Meta, &d.Desc, &d.Detail, &d.SideEffect); err != nil {
			return nil, fmt.Errorf("scan drug: %w: %w", common.ErrDatabase, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, stdsql.ErrNoRows) {
		return nil, fmt.Errorf("iterate drugs: %w: %w", common.ErrDatabase, err)
	}
	return out, nil
}
