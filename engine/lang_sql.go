package engine

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/wippyai/polyglot-native/errors"
)

// LanguageSQL is the id of the SQL language.
const LanguageSQL = "sql"

const defaultSQLDSN = ":memory:"

func init() {
	register(Language{ID: LanguageSQL, Name: "SQLite", Version: "3"}, openSQL)
}

// sqlEvaluator runs statements against a database private to the context.
// The connection pool is pinned to one connection so an in-memory database
// lives as long as the context.
type sqlEvaluator struct {
	mu sync.Mutex
	db *sql.DB
}

func openSQL(c *Context) (evaluator, error) {
	dsn := defaultSQLDSN
	if v, ok := c.Option(OptionSQLDSN); ok {
		dsn = v
	}
	if !isMemoryDSN(dsn) && !c.access.io() {
		return nil, errors.New(errors.PhaseContext, errors.KindIllegalState).
			Path(OptionSQLDSN).
			Detail("file database %q requires IO access", dsn).
			Build()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseContext, errors.KindInvalidInput, err, "open sql database")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return &sqlEvaluator{db: db}, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory") || strings.HasPrefix(dsn, "file::memory:")
}

// returnsRows reports whether a statement produces a result set.
func returnsRows(stmt string) bool {
	s := strings.TrimSpace(stmt)
	for strings.HasPrefix(s, "--") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = strings.TrimSpace(s[i+1:])
		} else {
			return false
		}
	}
	word := s
	if i := strings.IndexAny(s, " \t\r\n("); i >= 0 {
		word = s[:i]
	}
	switch strings.ToUpper(word) {
	case "SELECT", "WITH", "PRAGMA", "VALUES", "EXPLAIN":
		return true
	}
	return strings.Contains(strings.ToUpper(s), " RETURNING ")
}

func (e *sqlEvaluator) eval(ctx context.Context, c *Context, src Source) (any, error) {
	e.mu.Lock()
	db := e.db
	e.mu.Unlock()
	if db == nil {
		return nil, errors.Closed(errors.PhaseContext, "sql database")
	}

	if !returnsRows(src.Code) {
		res, err := db.ExecContext(ctx, src.Code)
		if err != nil {
			return nil, sqlException(ctx, err, src)
		}
		out := NewObject()
		if n, err := res.RowsAffected(); err == nil {
			out.Put("rows_affected", n)
		}
		if id, err := res.LastInsertId(); err == nil {
			out.Put("last_insert_id", id)
		}
		return out, nil
	}

	rows, err := db.QueryContext(ctx, src.Code)
	if err != nil {
		return nil, sqlException(ctx, err, src)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, sqlException(ctx, err, src)
	}

	result := NewArray()
	for rows.Next() {
		if err := Poll(ctx); err != nil {
			return nil, err
		}
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, sqlException(ctx, err, src)
		}
		row := NewObject()
		for i, col := range cols {
			n, err := normalize(raw[i])
			if err != nil {
				return nil, err
			}
			row.Put(col, n)
		}
		result.items = append(result.items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlException(ctx, err, src)
	}
	return result, nil
}

func sqlException(ctx context.Context, err error, src Source) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	msg := err.Error()
	return &Exception{
		Message:     msg,
		SyntaxError: strings.Contains(msg, "syntax error") || strings.Contains(msg, "incomplete input"),
		Frames:      []StackFrame{{Language: LanguageSQL, Name: "<statement>", Source: src.Name}},
		Cause:       err,
	}
}

func (e *sqlEvaluator) close() error {
	e.mu.Lock()
	db := e.db
	e.db = nil
	e.mu.Unlock()
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return errors.Wrap(errors.PhaseContext, errors.KindIllegalState, err, "close sql database")
	}
	return nil
}
