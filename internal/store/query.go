package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/leadkit/gateway/internal/model"
)

// where accumulates AND-ed conditions with their positional arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// tenant starts a condition set scoped to one organization.
func tenant(orgID string) where {
	var w where
	w.add("organization_id = ?", orgID)
	return w
}

// likeEscape is the ESCAPE character of every LIKE clause.
const likeEscape = "!"

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// like returns a case-insensitive substring pattern for a column compared
// with likeClause.
func like(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// likeClause compares LOWER(column) with a pattern built by like.
func likeClause(column string) string {
	return "LOWER(" + column + ") LIKE ? ESCAPE '" + likeEscape + "'"
}

// listPage runs a COUNT and a paged SELECT with the same conditions.
func (s *Store) listPage(ctx context.Context, dest any, table, columns string, w where, order string, page model.Page) (int64, error) {
	var total int64
	if err := s.db.GetContext(ctx, &total, s.q(`SELECT COUNT(*) FROM `+table+w.sql()), w.args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}

	query := `SELECT ` + columns + ` FROM ` + table + w.sql() + ` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	args := append(append([]any{}, w.args...), page.PerPage, page.Offset())
	if err := s.db.SelectContext(ctx, dest, s.q(query), args...); err != nil {
		return 0, fmt.Errorf("list %s: %w", table, err)
	}
	return total, nil
}

// getScoped loads one row owned by orgID. Rows of other tenants are
// indistinguishable from missing rows.
func (s *Store) getScoped(ctx context.Context, dest any, table, columns, orgID, id string) error {
	err := s.db.GetContext(ctx, dest, s.q(
		`SELECT `+columns+` FROM `+table+` WHERE organization_id = ? AND id = ?`), orgID, id)
	return classify(err)
}

// exists reports whether a row with id is owned by orgID.
func (s *Store) exists(ctx context.Context, table, orgID, id string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.q(
		`SELECT COUNT(*) FROM `+table+` WHERE organization_id = ? AND id = ?`), orgID, id)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", table, err)
	}
	return n > 0, nil
}

// Fields is a partial update keyed by column name. Keys come from handler
// code, never from request input.
type Fields map[string]any

// updateScoped applies fields to one tenant-owned row and bumps updated_at.
func (s *Store) updateScoped(ctx context.Context, table, orgID, id string, fields Fields) error {
	cols := make([]string, 0, len(fields))
	for c := range fields {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+3)
	for _, c := range cols {
		sets = append(sets, c+" = ?")
		args = append(args, fields[c])
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now(), orgID, id)

	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE `+table+` SET `+strings.Join(sets, ", ")+` WHERE organization_id = ? AND id = ?`), args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, classify(err))
	}
	// MySQL reports zero affected rows for no-op updates.
	if n, _ := res.RowsAffected(); n == 0 {
		ok, err := s.exists(ctx, table, orgID, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
	}
	return nil
}
