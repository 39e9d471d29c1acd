package db

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

const downMarker = "-- +migrate Down"

// Migrate applies every *.sql file in fsys that is not yet recorded in
// schema_migrations, in lexical order, each file in its own transaction.
// It returns the names of the files applied by this call.
func Migrate(ctx context.Context, database *sqlx.DB, fsys fs.FS, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := database.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (filename text primary key, applied_at timestamptz default now())`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	var applied []string
	for _, file := range files {
		name := path.Base(file)
		var exists bool
		if err := database.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, name); err != nil {
			return applied, fmt.Errorf("read migration state: %w", err)
		}
		if exists {
			continue
		}
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return applied, err
		}
		statements := splitSQL(upSection(string(content)))
		err = func() error {
			tx, err := database.BeginTxx(ctx, nil)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback() }()
			for _, stmt := range statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
				return err
			}
			return tx.Commit()
		}()
		if err != nil {
			return applied, fmt.Errorf("apply %s: %w", name, err)
		}
		logger.Info("migration applied", "file", name, "statements", len(statements))
		applied = append(applied, name)
	}
	return applied, nil
}

func upSection(content string) string {
	up, _, _ := strings.Cut(content, downMarker)
	return up
}

// splitSQL splits on statement-terminating semicolons at line ends. Text
// between $$ quotes (function bodies) is never split.
func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	inDollar := false
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if !inDollar && (trimmed == "" || strings.HasPrefix(trimmed, "--")) {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.Count(line, "$$")%2 == 1 {
			inDollar = !inDollar
		}
		if !inDollar && strings.HasSuffix(trimmed, ";") {
			statements = append(statements, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}
