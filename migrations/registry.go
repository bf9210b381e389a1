// Package migrations exposes the delivery engine schema to migration runners.
//
// Hosts on go-persistence-bun hand each dialect filesystem to
// RegisterSQLMigrations through Register. Everyone else can run the scripts
// directly with Apply and Rollback.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"sort"
	"strings"

	hooks "github.com/goliatone/go-oee-hooks"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	rootPath       = "data/sql/migrations"
	statementSplit = "--bun:split"
)

// Source is one dialect's migration scripts.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	Label    string
	Dialects []string
	Sources  []Source
}

type RegisterFunc func(ctx context.Context, dialect string, label string, fsys fs.FS) error

type Option func(*Registration)

func WithLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.Label = trimmed
		}
	}
}

// WithDialects limits registration to the named dialects.
func WithDialects(dialects ...string) Option {
	return func(r *Registration) {
		if normalized := normalizeDialects(dialects); len(normalized) > 0 {
			r.Dialects = normalized
		}
	}
}

// Sources splits the embedded tree, or root when given, into one Source per
// dialect. Postgres scripts sit at the top level, sqlite ones in sqlite/.
func Sources(root ...fs.FS) ([]Source, error) {
	tree := hooks.GetMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		tree = root[0]
	}
	base, err := fs.Sub(tree, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: %s not found: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: sqlite scripts not found: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: rootPath, FS: base},
		{Dialect: DialectSQLite, Path: rootPath + "/sqlite", FS: sqliteFS},
	}
	for _, source := range sources {
		ups, err := fs.Glob(source.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", source.Path, err)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: %s has no *.up.sql scripts", source.Path)
		}
	}
	return sources, nil
}

// SourceFor returns the scripts of a single dialect.
func SourceFor(dialect string) (Source, error) {
	sources, err := Sources()
	if err != nil {
		return Source{}, err
	}
	dialect = normalizeDialect(dialect)
	for _, source := range sources {
		if source.Dialect == dialect {
			return source, nil
		}
	}
	return Source{}, fmt.Errorf("migrations: unsupported dialect %q", dialect)
}

// Register calls registerFn once per selected dialect.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		Label:    "go-oee-hooks",
		Dialects: []string{DialectPostgres, DialectSQLite},
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	sources, err := Sources()
	if err != nil {
		return reg, err
	}
	reg.Sources = sources

	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	for _, source := range reg.Sources {
		if !slices.Contains(reg.Dialects, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, reg.Label, source.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s: %w", source.Dialect, err)
		}
	}
	return reg, nil
}

// ExecFunc runs one statement. Wrap *sql.DB or *bun.DB ExecContext with it.
type ExecFunc func(ctx context.Context, statement string) error

// DBExec adapts anything with a database/sql shaped ExecContext.
func DBExec[R any](execContext func(ctx context.Context, query string, args ...any) (R, error)) ExecFunc {
	return func(ctx context.Context, statement string) error {
		_, err := execContext(ctx, statement)
		return err
	}
}

// Apply runs every up script of dialect in filename order.
func Apply(ctx context.Context, dialect string, exec ExecFunc) error {
	return run(ctx, dialect, ".up.sql", false, exec)
}

// Rollback runs every down script of dialect in reverse filename order.
func Rollback(ctx context.Context, dialect string, exec ExecFunc) error {
	return run(ctx, dialect, ".down.sql", true, exec)
}

func run(ctx context.Context, dialect, suffix string, reverse bool, exec ExecFunc) error {
	if exec == nil {
		return fmt.Errorf("migrations: exec function is required")
	}
	source, err := SourceFor(dialect)
	if err != nil {
		return err
	}
	scripts, err := fs.Glob(source.FS, "*"+suffix)
	if err != nil {
		return fmt.Errorf("migrations: glob %s: %w", source.Path, err)
	}
	sort.Strings(scripts)
	if reverse {
		slices.Reverse(scripts)
	}
	for _, script := range scripts {
		statements, err := Statements(source.FS, script)
		if err != nil {
			return err
		}
		for _, statement := range statements {
			if err := exec(ctx, statement); err != nil {
				return fmt.Errorf("migrations: %s/%s: %w", source.Path, script, err)
			}
		}
	}
	return nil
}

// Statements reads name from fsys and splits it on --bun:split markers.
func Statements(fsys fs.FS, name string) ([]string, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("migrations: read %s: %w", name, err)
	}
	var out []string
	for _, part := range strings.Split(string(content), statementSplit) {
		if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out, nil
}

func normalizeDialect(dialect string) string {
	switch d := strings.TrimSpace(strings.ToLower(dialect)); d {
	case "sqlite3":
		return DialectSQLite
	case "pg", "postgresql":
		return DialectPostgres
	default:
		return d
	}
}

func normalizeDialects(dialects []string) []string {
	out := make([]string, 0, len(dialects))
	for _, dialect := range dialects {
		d := normalizeDialect(dialect)
		if d == "" || slices.Contains(out, d) {
			continue
		}
		out = append(out, d)
	}
	return out
}
