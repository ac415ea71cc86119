package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/projetista"
)

const projetistaSelect = `SELECT p.id, p.projetista, p.usuario_id, u.email AS usuario_email, p.ativo
	FROM projetistas p LEFT JOIN users u ON u.id = p.usuario_id`

type projetistaRow struct {
	ID           int         `db:"id"`
	Projetista   string      `db:"projetista"`
	UsuarioID    null.Int    `db:"usuario_id"`
	UsuarioEmail null.String `db:"usuario_email"`
	Ativo        bool        `db:"ativo"`
}

type projetistaRepository struct {
	repository
}

var _ projetista.Repository = (*projetistaRepository)(nil) // interface compliance check

func NewProjetistaRepository(exec core.DBExecutor) *projetistaRepository {
	return &projetistaRepository{repository{exec: exec}}
}

func (repo projetistaRepository) unboil(row projetistaRow) projetista.Projetista {
	return projetista.Projetista{
		ID:           row.ID,
		Nome:         row.Projetista,
		UsuarioID:    row.UsuarioID,
		UsuarioEmail: row.UsuarioEmail,
		Ativo:        row.Ativo,
	}
}

// trapErr maps "no rows" and foreign key errors to projetista errors
func (repo projetistaRepository) trapErr(err error, msg string) error {
	switch {
	case err == sql.ErrNoRows:
		return projetista.ErrNotFound
	case isForeignKeyViolation(err):
		return projetista.ErrInvalidUsuario
	}
	return errors.Wrap(err, msg)
}

func (repo projetistaRepository) CreateProjetista(ctx context.Context, p projetista.Projetista, exec ...core.DBExecutor) (projetista.Projetista, error) {
	exe := repo.getExec(exec)
	id, err := insertReturningID(ctx, exe,
		"INSERT INTO projetistas (projetista, usuario_id, ativo) VALUES (?, ?, ?)",
		p.Nome, p.UsuarioID, p.Ativo,
	)
	if err != nil {
		return projetista.Projetista{}, repo.trapErr(err, "inserting projetista")
	}
	return repo.GetProjetistaByID(ctx, id, exe)
}

func (repo projetistaRepository) QueryProjetistas(ctx context.Context, filter projetista.QueryFilter, exec ...core.DBExecutor) ([]projetista.Projetista, error) {
	exe := repo.getExec(exec)
	var where whereClause
	if filter.Search != "" {
		val := escapeLike(filter.Search)
		where.add("("+iContains("p.projetista")+" OR "+iContains("u.email")+")", val, val)
	}
	if filter.Ativo != nil {
		where.add("p.ativo = ?", *filter.Ativo)
	}

	var rows []projetistaRow
	query := projetistaSelect + where.String() + " ORDER BY p.projetista ASC, p.id ASC"
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying projetistas")
	}
	projetistas := make([]projetista.Projetista, 0, len(rows))
	for _, row := range rows {
		projetistas = append(projetistas, repo.unboil(row))
	}
	return projetistas, nil
}

func (repo projetistaRepository) getProjetista(ctx context.Context, exe core.DBExecutor, cond string, arg interface{}) (projetista.Projetista, error) {
	var row projetistaRow
	query := exe.Rebind(projetistaSelect + " WHERE " + cond + " ORDER BY p.id ASC LIMIT 1")
	if err := exe.GetContext(ctx, &row, query, arg); err != nil {
		return projetista.Projetista{}, repo.trapErr(err, "finding projetista")
	}
	return repo.unboil(row), nil
}

func (repo projetistaRepository) GetProjetistaByID(ctx context.Context, id int, exec ...core.DBExecutor) (projetista.Projetista, error) {
	return repo.getProjetista(ctx, repo.getExec(exec), "p.id = ?", id)
}

func (repo projetistaRepository) GetProjetistaByUsuario(ctx context.Context, userID int, exec ...core.DBExecutor) (projetista.Projetista, error) {
	return repo.getProjetista(ctx, repo.getExec(exec), "p.usuario_id = ?", userID)
}

func (repo projetistaRepository) UpdateProjetista(ctx context.Context, p projetista.Projetista, exec ...core.DBExecutor) (projetista.Projetista, error) {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx,
		exe.Rebind("UPDATE projetistas SET projetista = ?, usuario_id = ?, ativo = ? WHERE id = ?"),
		p.Nome, p.UsuarioID, p.Ativo, p.ID,
	)
	if err != nil {
		return projetista.Projetista{}, repo.trapErr(err, "updating projetista")
	}
	if err := checkAffected(res, projetista.ErrNotFound); err != nil {
		return projetista.Projetista{}, err
	}
	return repo.GetProjetistaByID(ctx, p.ID, exe)
}

func (repo projetistaRepository) DeleteProjetistasByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error) {
	cnt, err := deleteByID(ctx, repo.getExec(exec), "projetistas", ids)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, projetista.ErrProtected
		}
		return 0, errors.Wrap(err, "deleting projetistas")
	}
	return cnt, nil
}
