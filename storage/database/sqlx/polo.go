package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/polo"
)

type poloRepository struct {
	repository
}

var _ polo.Repository = (*poloRepository)(nil) // interface compliance check

func NewPoloRepository(exec core.DBExecutor) *poloRepository {
	return &poloRepository{repository{exec: exec}}
}

// trapErr maps "no rows" and unique violations to polo errors
func (repo poloRepository) trapErr(err error, msg string) error {
	switch {
	case err == sql.ErrNoRows:
		return polo.ErrNotFound
	case isUniqueViolation(err):
		return polo.ErrPoloExists
	}
	return errors.Wrap(err, msg)
}

func (repo poloRepository) CreatePolo(ctx context.Context, p polo.Polo, exec ...core.DBExecutor) (polo.Polo, error) {
	id, err := insertReturningID(ctx, repo.getExec(exec), "INSERT INTO polos (polo) VALUES (?)", p.Polo)
	if err != nil {
		return polo.Polo{}, repo.trapErr(err, "inserting polo")
	}
	p.ID = id
	return p, nil
}

func (repo poloRepository) QueryPolos(ctx context.Context, search string, exec ...core.DBExecutor) ([]polo.Polo, error) {
	exe := repo.getExec(exec)
	var where whereClause
	if search != "" {
		where.add(iContains("polo"), escapeLike(search))
	}
	polos := make([]polo.Polo, 0)
	query := exe.Rebind("SELECT id, polo FROM polos" + where.String() + " ORDER BY polo ASC")
	if err := exe.SelectContext(ctx, &polos, query, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying polos")
	}
	return polos, nil
}

func (repo poloRepository) GetPoloByID(ctx context.Context, id int, exec ...core.DBExecutor) (polo.Polo, error) {
	exe := repo.getExec(exec)
	var p polo.Polo
	if err := exe.GetContext(ctx, &p, exe.Rebind("SELECT id, polo FROM polos WHERE id = ?"), id); err != nil {
		return polo.Polo{}, repo.trapErr(err, "finding polo")
	}
	return p, nil
}

func (repo poloRepository) UpdatePolo(ctx context.Context, p polo.Polo, exec ...core.DBExecutor) (polo.Polo, error) {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("UPDATE polos SET polo = ? WHERE id = ?"), p.Polo, p.ID)
	if err != nil {
		return polo.Polo{}, repo.trapErr(err, "updating polo")
	}
	if err := checkAffected(res, polo.ErrNotFound); err != nil {
		return polo.Polo{}, err
	}
	return p, nil
}

func (repo poloRepository) DeletePolosByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error) {
	cnt, err := deleteByID(ctx, repo.getExec(exec), "polos", ids)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, polo.ErrProtected
		}
		return 0, errors.Wrap(err, "deleting polos")
	}
	return cnt, nil
}
