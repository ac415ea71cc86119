// Package sqlxrepos implements the domain repositories with sqlx, for both postgres and sqlite.
// Queries are written with `?` placeholders and rebound for the driver in use.
package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
)

// postgres error codes
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// repository is embedded by every entity repository.
type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqForeignKeyViolation
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// escapeLike makes a user value safe for a `LIKE ? ESCAPE '\'` contains-match.
func escapeLike(val string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(val)) + "%"
}

func iContains(col string) string {
	return "LOWER(" + col + `) LIKE ? ESCAPE '\'`
}

// whereClause accumulates AND-ed conditions and their arguments.
type whereClause struct {
	conds []string
	args  []interface{}
}

func (wc *whereClause) add(cond string, args ...interface{}) {
	wc.conds = append(wc.conds, cond)
	wc.args = append(wc.args, args...)
}

func (wc *whereClause) String() string {
	if len(wc.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(wc.conds, " AND ")
}

func orderBy(ordering []core.DBOrdering, columns map[string]string, fallback string) string {
	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := columns[ord.Field]; ok {
			orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(orderList) == 0 {
		orderList = append(orderList, fallback)
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}

// prepare expands `IN (?)` slices and rebinds the placeholders.
func prepare(exec core.DBExecutor, query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding query")
	}
	return exec.Rebind(q), a, nil
}

func insertReturningID(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int, error) {
	var id int
	err := exec.QueryRowxContext(ctx, exec.Rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}

func deleteByID(ctx context.Context, exec core.DBExecutor, table string, ids []int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := prepare(exec, "DELETE FROM "+table+" WHERE id IN (?)", ids)
	if err != nil {
		return 0, err
	}
	res, err := exec.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	cnt, err := res.RowsAffected()
	return int(cnt), err
}

func checkAffected(res interface{ RowsAffected() (int64, error) }, notFound error) error {
	cnt, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if cnt == 0 {
		return notFound
	}
	return nil
}
