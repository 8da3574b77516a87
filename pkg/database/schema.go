package database

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Action is a referential action applied by a foreign key.
type Action string

const (
	Cascade  Action = "CASCADE"
	SetNull  Action = "SET NULL"
	Restrict Action = "RESTRICT"
)

// Column describes a single table column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Default  string
}

// ForeignKey links columns of the owning table to a parent table.
type ForeignKey struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   Action
}

// Unique is a named UNIQUE constraint.
type Unique struct {
	Name    string
	Columns []string
}

// Index is a secondary index; Where makes it partial.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
	Where   string
}

// Table is a node of the relationship graph.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	Uniques     []Unique
	Checks      []string
	ForeignKeys []ForeignKey
	Indexes     []Index
	SoftDelete  bool
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Graph is the ordered set of tables; parents always precede children.
type Graph struct {
	tables []Table
	index  map[string]int
}

var (
	schemaOnce  sync.Once
	schemaGraph *Graph
)

// Schema returns the application relationship graph. It is built once and
// never mutated afterwards.
func Schema() *Graph {
	schemaOnce.Do(func() {
		schemaGraph = newGraph(tables())
	})
	return schemaGraph
}

func newGraph(tables []Table) *Graph {
	g := &Graph{tables: tables, index: make(map[string]int, len(tables))}
	for i, t := range tables {
		g.index[t.Name] = i
	}
	return g
}

// Tables returns the tables in creation order.
func (g *Graph) Tables() []Table {
	out := make([]Table, len(g.tables))
	copy(out, g.tables)
	return out
}

// Table looks up a table by name.
func (g *Graph) Table(name string) (Table, bool) {
	i, ok := g.index[name]
	if !ok {
		return Table{}, false
	}
	return g.tables[i], true
}

// References returns the foreign keys of child pointing at parent.
func (g *Graph) References(child, parent string) []ForeignKey {
	t, ok := g.Table(child)
	if !ok {
		return nil
	}
	var out []ForeignKey
	for _, fk := range t.ForeignKeys {
		if fk.RefTable == parent {
			out = append(out, fk)
		}
	}
	return out
}

// Dependents lists tables holding a foreign key to parent.
func (g *Graph) Dependents(parent string) []string {
	var out []string
	for _, t := range g.tables {
		for _, fk := range t.ForeignKeys {
			if fk.RefTable == parent {
				out = append(out, t.Name)
				break
			}
		}
	}
	return out
}

// Validate checks the graph for structural mistakes: unknown columns,
// forward references, SET NULL on NOT NULL columns, foreign keys that do not
// target a key of the parent, and soft-delete tables without deleted_at.
func (g *Graph) Validate() error {
	seen := make(map[string]Table, len(g.tables))
	for _, t := range g.tables {
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("table %s declared twice", t.Name)
		}
		if len(t.PrimaryKey) == 0 {
			return fmt.Errorf("table %s has no primary key", t.Name)
		}
		if err := t.requireColumns(t.PrimaryKey); err != nil {
			return err
		}
		for _, u := range t.Uniques {
			if err := t.requireColumns(u.Columns); err != nil {
				return err
			}
		}
		for _, idx := range t.Indexes {
			if err := t.requireColumns(idx.Columns); err != nil {
				return err
			}
		}
		if t.SoftDelete {
			c, ok := t.Column("deleted_at")
			if !ok || !c.Nullable {
				return fmt.Errorf("soft-delete table %s needs a nullable deleted_at", t.Name)
			}
		}
		for _, fk := range t.ForeignKeys {
			if err := t.requireColumns(fk.Columns); err != nil {
				return err
			}
			parent, ok := seen[fk.RefTable]
			if !ok {
				return fmt.Errorf("%s.%s references %s which is not declared before it", t.Name, fk.Name, fk.RefTable)
			}
			if len(fk.Columns) != len(fk.RefColumns) {
				return fmt.Errorf("%s.%s column count mismatch", t.Name, fk.Name)
			}
			if !parent.isKey(fk.RefColumns) {
				return fmt.Errorf("%s.%s target %v is not a key of %s", t.Name, fk.Name, fk.RefColumns, parent.Name)
			}
			if fk.OnDelete == SetNull {
				for _, name := range fk.Columns {
					if c, _ := t.Column(name); !c.Nullable {
						return fmt.Errorf("%s.%s uses SET NULL on NOT NULL column %s", t.Name, fk.Name, name)
					}
				}
			}
		}
		seen[t.Name] = t
	}
	return nil
}

func (t Table) requireColumns(names []string) error {
	for _, name := range names {
		if _, ok := t.Column(name); !ok {
			return fmt.Errorf("table %s has no column %s", t.Name, name)
		}
	}
	return nil
}

func (t Table) isKey(cols []string) bool {
	if sameColumns(t.PrimaryKey, cols) {
		return true
	}
	for _, u := range t.Uniques {
		if sameColumns(u.Columns, cols) {
			return true
		}
	}
	return false
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DDL renders the graph as idempotent CREATE statements in dependency order.
func (g *Graph) DDL() []string {
	stmts := []string{`CREATE EXTENSION IF NOT EXISTS pgcrypto`}
	for _, t := range g.tables {
		stmts = append(stmts, t.createStatement())
		for _, idx := range t.Indexes {
			stmts = append(stmts, t.indexStatement(idx))
		}
	}
	return stmts
}

func (t Table) createStatement() string {
	var parts []string
	for _, c := range t.Columns {
		def := c.Name + " " + c.Type
		if !c.Nullable {
			def += " NOT NULL"
		}
		if c.Default != "" {
			def += " DEFAULT " + c.Default
		}
		parts = append(parts, def)
	}
	parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(t.PrimaryKey, ", ")))
	for _, u := range t.Uniques {
		parts = append(parts, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", u.Name, strings.Join(u.Columns, ", ")))
	}
	for _, fk := range t.ForeignKeys {
		parts = append(parts, fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s ON UPDATE CASCADE",
			fk.Name, strings.Join(fk.Columns, ", "), fk.RefTable, strings.Join(fk.RefColumns, ", "), fk.OnDelete))
	}
	for _, chk := range t.Checks {
		parts = append(parts, fmt.Sprintf("CHECK (%s)", chk))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.Name, strings.Join(parts, ",\n\t"))
}

func (t Table) indexStatement(idx Index) string {
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	stmt := fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)", kind, idx.Name, t.Name, strings.Join(idx.Columns, ", "))
	if idx.Where != "" {
		stmt += " WHERE " + idx.Where
	}
	return stmt
}

// CreateSchema validates the graph and creates every table inside a single
// transaction.
func CreateSchema(ctx context.Context, db *sqlx.DB) (err error) {
	graph := Schema()
	if err = graph.Validate(); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range graph.DDL() {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
