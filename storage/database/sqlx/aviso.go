package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/aviso"
)

type avisoRow struct {
	ID          int       `db:"id"`
	Titulo      string    `db:"titulo"`
	Mensagem    string    `db:"mensagem"`
	DataCriacao time.Time `db:"data_criacao"`
	Ordenacao   int       `db:"ordenacao"`
}

type avisoRepository struct {
	repository
}

var _ aviso.Repository = (*avisoRepository)(nil) // interface compliance check

func NewAvisoRepository(exec core.DBExecutor) *avisoRepository {
	return &avisoRepository{repository{exec: exec}}
}

func (repo avisoRepository) unboil(row avisoRow) aviso.Aviso {
	return aviso.Aviso{
		ID:          row.ID,
		Titulo:      row.Titulo,
		Mensagem:    row.Mensagem,
		DataCriacao: row.DataCriacao.UTC(),
		Ordenacao:   row.Ordenacao,
	}
}

func (repo avisoRepository) CreateAviso(ctx context.Context, a aviso.Aviso, exec ...core.DBExecutor) (aviso.Aviso, error) {
	id, err := insertReturningID(ctx, repo.getExec(exec),
		"INSERT INTO avisos (titulo, mensagem, data_criacao, ordenacao) VALUES (?, ?, ?, ?)",
		a.Titulo, a.Mensagem, a.DataCriacao.UTC(), a.Ordenacao,
	)
	if err != nil {
		return aviso.Aviso{}, errors.Wrap(err, "inserting aviso")
	}
	a.ID = id
	return a, nil
}

func (repo avisoRepository) QueryAvisos(ctx context.Context, search string, exec ...core.DBExecutor) ([]aviso.Aviso, error) {
	exe := repo.getExec(exec)
	var where whereClause
	if search != "" {
		val := escapeLike(search)
		where.add("("+iContains("titulo")+" OR "+iContains("mensagem")+")", val, val)
	}
	var rows []avisoRow
	query := exe.Rebind("SELECT id, titulo, mensagem, data_criacao, ordenacao FROM avisos" +
		where.String() + " ORDER BY ordenacao ASC, id ASC")
	if err := exe.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying avisos")
	}
	avisos := make([]aviso.Aviso, 0, len(rows))
	for _, row := range rows {
		avisos = append(avisos, repo.unboil(row))
	}
	return avisos, nil
}

func (repo avisoRepository) GetAvisoByID(ctx context.Context, id int, exec ...core.DBExecutor) (aviso.Aviso, error) {
	exe := repo.getExec(exec)
	var row avisoRow
	query := exe.Rebind("SELECT id, titulo, mensagem, data_criacao, ordenacao FROM avisos WHERE id = ?")
	if err := exe.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return aviso.Aviso{}, aviso.ErrNotFound
		}
		return aviso.Aviso{}, errors.Wrap(err, "finding aviso")
	}
	return repo.unboil(row), nil
}

func (repo avisoRepository) UpdateAviso(ctx context.Context, a aviso.Aviso, exec ...core.DBExecutor) (aviso.Aviso, error) {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx,
		exe.Rebind("UPDATE avisos SET titulo = ?, mensagem = ?, ordenacao = ? WHERE id = ?"),
		a.Titulo, a.Mensagem, a.Ordenacao, a.ID,
	)
	if err != nil {
		return aviso.Aviso{}, errors.Wrap(err, "updating aviso")
	}
	if err := checkAffected(res, aviso.ErrNotFound); err != nil {
		return aviso.Aviso{}, err
	}
	return a, nil
}

func (repo avisoRepository) DeleteAvisosByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error) {
	cnt, err := deleteByID(ctx, repo.getExec(exec), "avisos", ids)
	return cnt, errors.Wrap(err, "deleting avisos")
}
