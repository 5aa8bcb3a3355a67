// Package store persists analysis reports to SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/phobologic/pyoutline/internal/model"
)

// Store is the SQLite sink for reports. A database holds one report; Save
// replaces whatever was there.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Open is NewStore followed by Migrate.
func Open(dbPath string) (*Store, error) {
	s, err := NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ordinal preserves report order; list-valued columns hold JSON text.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS modules (
  ordinal     INTEGER PRIMARY KEY,
  kind        TEXT NOT NULL,
  module      TEXT NOT NULL,
  file        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS classes (
  ordinal     INTEGER PRIMARY KEY,
  name        TEXT NOT NULL,
  methods     TEXT NOT NULL,
  docstring   TEXT,
  file        TEXT NOT NULL,
  line_start  INTEGER NOT NULL,
  line_end    INTEGER
);

CREATE TABLE IF NOT EXISTS functions (
  ordinal     INTEGER PRIMARY KEY,
  name        TEXT NOT NULL,
  parameters  TEXT NOT NULL,
  docstring   TEXT,
  file        TEXT NOT NULL,
  line_start  INTEGER NOT NULL,
  line_end    INTEGER
);

CREATE INDEX IF NOT EXISTS idx_classes_file ON classes(file);
CREATE INDEX IF NOT EXISTS idx_functions_file ON functions(file);
CREATE INDEX IF NOT EXISTS idx_functions_name ON functions(name);
`

// Save replaces the stored report with r in a single transaction.
func (s *Store) Save(ctx context.Context, r *model.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save report: begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"modules", "classes", "functions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("save report: clear %s: %w", table, err)
		}
	}

	for i := range r.Modules {
		if err := insertModuleTx(ctx, tx, i, &r.Modules[i]); err != nil {
			return fmt.Errorf("save report: module %d: %w", i, err)
		}
	}
	for i := range r.Classes {
		if err := insertClassTx(ctx, tx, i, &r.Classes[i]); err != nil {
			return fmt.Errorf("save report: class %q: %w", r.Classes[i].Name, err)
		}
	}
	for i := range r.Functions {
		if err := insertFunctionTx(ctx, tx, i, &r.Functions[i]); err != nil {
			return fmt.Errorf("save report: function %q: %w", r.Functions[i].Name, err)
		}
	}

	return tx.Commit()
}

// Load reads the stored report back in its original order.
func (s *Store) Load(ctx context.Context) (*model.Report, error) {
	r := model.NewReport()

	rows, err := s.db.QueryContext(ctx, `SELECT module, file FROM modules ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("load modules: %w", err)
	}
	for rows.Next() {
		var rec model.ImportRecord
		var module string
		if err := rows.Scan(&module, &rec.File); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan module: %w", err)
		}
		if err := json.Unmarshal([]byte(module), &rec.Module); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode module: %w", err)
		}
		r.Modules = append(r.Modules, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load modules: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT name, methods, docstring, file, line_start, line_end FROM classes ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("load classes: %w", err)
	}
	for rows.Next() {
		var rec model.ClassRecord
		var methods string
		var doc sql.NullString
		var end sql.NullInt64
		if err := rows.Scan(&rec.Name, &methods, &doc, &rec.File, &rec.LineStart, &end); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan class: %w", err)
		}
		if rec.Methods, err = unmarshalNames(methods); err != nil {
			rows.Close()
			return nil, fmt.Errorf("class %q methods: %w", rec.Name, err)
		}
		rec.Docstring = nullString(doc)
		rec.LineEnd = nullInt(end)
		r.Classes = append(r.Classes, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load classes: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT name, parameters, docstring, file, line_start, line_end FROM functions ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("load functions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec model.FunctionRecord
		var params string
		var doc sql.NullString
		var end sql.NullInt64
		if err := rows.Scan(&rec.Name, &params, &doc, &rec.File, &rec.LineStart, &end); err != nil {
			return nil, fmt.Errorf("scan function: %w", err)
		}
		if rec.Parameters, err = unmarshalNames(params); err != nil {
			return nil, fmt.Errorf("function %q parameters: %w", rec.Name, err)
		}
		rec.Docstring = nullString(doc)
		rec.LineEnd = nullInt(end)
		r.Functions = append(r.Functions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load functions: %w", err)
	}

	return r, nil
}

func insertModuleTx(ctx context.Context, tx *sql.Tx, ordinal int, rec *model.ImportRecord) error {
	module, err := json.Marshal(rec.Module)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO modules (ordinal, kind, module, file) VALUES (?, ?, ?, ?)`,
		ordinal, string(rec.Module.Kind), string(module), rec.File,
	)
	return err
}

func insertClassTx(ctx context.Context, tx *sql.Tx, ordinal int, rec *model.ClassRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO classes (ordinal, name, methods, docstring, file, line_start, line_end)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ordinal, rec.Name, marshalNames(rec.Methods), rec.Docstring, rec.File, rec.LineStart, rec.LineEnd,
	)
	return err
}

func insertFunctionTx(ctx context.Context, tx *sql.Tx, ordinal int, rec *model.FunctionRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO functions (ordinal, name, parameters, docstring, file, line_start, line_end)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ordinal, rec.Name, marshalNames(rec.Parameters), rec.Docstring, rec.File, rec.LineStart, rec.LineEnd,
	)
	return err
}
