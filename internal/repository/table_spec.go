package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

// tableSpec describes the listing rules of a simple academic table.
type tableSpec struct {
	name          string
	columns       string
	soft          bool
	parentColumn  string
	searchColumns []string
	sorts         map[string]bool
	defaultSort   string
}

// live is the default visibility predicate; soft-deleted rows never show up.
func (s tableSpec) live() string {
	if s.soft {
		return "deleted_at IS NULL"
	}
	return "1=1"
}

func (s tableSpec) list(ctx context.Context, db *sqlx.DB, filter models.AcademicFilter, dest interface{}) (int, error) {
	base := fmt.Sprintf("FROM %s WHERE %s", s.name, s.live())
	var args []interface{}
	if filter.ParentID != "" && s.parentColumn != "" {
		args = append(args, filter.ParentID)
		base += fmt.Sprintf(" AND %s = $%d", s.parentColumn, len(args))
	}
	if filter.Search != "" && len(s.searchColumns) > 0 {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		ors := make([]string, len(s.searchColumns))
		for i, c := range s.searchColumns {
			ors[i] = fmt.Sprintf("LOWER(%s) LIKE $%d", c, len(args))
		}
		base += " AND (" + strings.Join(ors, " OR ") + ")"
	}

	sortBy := filter.SortBy
	if !s.sorts[sortBy] {
		sortBy = s.defaultSort
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", s.columns, base, sortBy, order, size, (page-1)*size)
	if err := db.SelectContext(ctx, dest, query, args...); err != nil {
		return 0, fmt.Errorf("list %s: %w", s.name, err)
	}
	var total int
	if err := db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.name, err)
	}
	return total, nil
}

// get returns sql.ErrNoRows unwrapped so services can map it to 404.
func (s tableSpec) get(ctx context.Context, db *sqlx.DB, id string, dest interface{}) error {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND %s", s.columns, s.name, s.live())
	return db.GetContext(ctx, dest, query, id)
}

func (s tableSpec) exec(ctx context.Context, db *sqlx.DB, op, query string, arg interface{}) error {
	res, err := db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, s.name, err)
	}
	return expectRows(res, op+" "+s.name)
}

// remove soft deletes when the table keeps history, otherwise deletes.
func (s tableSpec) remove(ctx context.Context, db *sqlx.DB, id string) error {
	var (
		query string
		args  = []interface{}{id}
	)
	if s.soft {
		query = fmt.Sprintf("UPDATE %s SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL", s.name)
		args = append(args, time.Now().UTC())
	} else {
		query = fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.name)
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.name, err)
	}
	return expectRows(res, "delete "+s.name)
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created != nil && created.IsZero() {
		*created = now
	}
	*updated = now
}
