package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/chave"
)

const (
	chaveFrom = ` FROM chaves c
	LEFT JOIN projetistas p ON p.id = c.projetista_id
	LEFT JOIN polos po ON po.id = c.polo_id`

	chaveSelect = `SELECT c.id, c.chave, c.projetista_id, p.projetista AS projetista_nome, p.usuario_id AS owner_id,
	c.polo_id, po.polo AS polo_codigo, c.ns, c.coordenada, c.poste, c.municipio, c.chamado, c.data_chamado,
	c.data_inclusao, c.data_modificacao, c.observacao` + chaveFrom
)

var chaveOrderColumns = map[string]string{
	"id":               "c.id",
	"chave":            "c.chave",
	"projetista":       "p.projetista",
	"polo":             "po.polo",
	"ns":               "c.ns",
	"coordenada":       "c.coordenada",
	"poste":            "c.poste",
	"municipio":        "c.municipio",
	"chamado":          "c.chamado",
	"data_chamado":     "c.data_chamado",
	"data_inclusao":    "c.data_inclusao",
	"data_modificacao": "c.data_modificacao",
}

type chaveRow struct {
	ID              int         `db:"id"`
	Chave           string      `db:"chave"`
	ProjetistaID    null.Int    `db:"projetista_id"`
	ProjetistaNome  null.String `db:"projetista_nome"`
	OwnerID         null.Int    `db:"owner_id"`
	PoloID          null.Int    `db:"polo_id"`
	PoloCodigo      null.String `db:"polo_codigo"`
	NS              null.String `db:"ns"`
	Coordenada      null.String `db:"coordenada"`
	Poste           null.String `db:"poste"`
	Municipio       null.String `db:"municipio"`
	Chamado         null.String `db:"chamado"`
	DataChamado     null.Time   `db:"data_chamado"`
	DataInclusao    time.Time   `db:"data_inclusao"`
	DataModificacao time.Time   `db:"data_modificacao"`
	Observacao      null.String `db:"observacao"`
}

type chaveRepository struct {
	repository
}

var _ chave.Repository = (*chaveRepository)(nil) // interface compliance check

func NewChaveRepository(exec core.DBExecutor) *chaveRepository {
	return &chaveRepository{repository{exec: exec}}
}

func (repo chaveRepository) unboil(row chaveRow) chave.Chave {
	dataChamado := row.DataChamado
	if dataChamado.Valid {
		dataChamado.Time = dataChamado.Time.UTC()
	}
	return chave.Chave{
		ID:              row.ID,
		Chave:           row.Chave,
		ProjetistaID:    row.ProjetistaID,
		Projetista:      row.ProjetistaNome,
		PoloID:          row.PoloID,
		Polo:            row.PoloCodigo,
		NS:              row.NS,
		Coordenada:      row.Coordenada,
		Poste:           row.Poste,
		Municipio:       row.Municipio,
		Chamado:         row.Chamado,
		DataChamado:     dataChamado,
		DataInclusao:    row.DataInclusao.UTC(),
		DataModificacao: row.DataModificacao.UTC(),
		Observacao:      row.Observacao,
		OwnerID:         row.OwnerID,
	}
}

// trapErr maps "no rows" and constraint errors to chave errors
func (repo chaveRepository) trapErr(err error, msg string) error {
	switch {
	case err == sql.ErrNoRows:
		return chave.ErrNotFound
	case isUniqueViolation(err):
		return chave.ErrChaveExists
	}
	return errors.Wrap(err, msg)
}

func (repo chaveRepository) where(filter chave.QueryFilter) whereClause {
	var where whereClause

	// listing filters
	if filter.NS != "" {
		where.add(iContains("c.ns"), escapeLike(filter.NS))
	}
	if filter.Chave != "" {
		where.add(iContains("c.chave"), escapeLike(filter.Chave))
	}
	if filter.Projetista != "" {
		where.add(iContains("p.projetista"), escapeLike(filter.Projetista))
	}
	if filter.SemProjeto {
		where.add("c.ns IS NULL")
	}

	// admin console search & filters
	if filter.Search != "" {
		val := escapeLike(filter.Search)
		cols := []string{"c.chave", "c.ns", "p.projetista", "c.municipio", "po.polo", "c.observacao"}
		conds := make([]string, 0, len(cols))
		for _, col := range cols {
			conds = append(conds, iContains(col))
			where.args = append(where.args, val)
		}
		where.conds = append(where.conds, "("+strings.Join(conds, " OR ")+")")
	}
	if filter.SemProjetista {
		where.add("c.projetista_id IS NULL")
	}
	if filter.ProjetistaID != 0 {
		where.add("c.projetista_id = ?", filter.ProjetistaID)
	}

	if filter.OwnerID != 0 {
		where.add("p.usuario_id = ?", filter.OwnerID)
	}
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			where.add("1 = 0")
		} else {
			where.add("c.id IN (?)", filter.IDs)
		}
	}
	return where
}

func (repo chaveRepository) CheckChaveUniqueness(ctx context.Context, code string, excludedIDs []int, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	query := "SELECT COUNT(*) FROM chaves WHERE chave = ?"
	args := []interface{}{code}
	if len(excludedIDs) > 0 {
		query += " AND id NOT IN (?)"
		args = append(args, excludedIDs)
	}
	q, a, err := prepare(exe, query, args...)
	if err != nil {
		return err
	}
	var cnt int
	if err := exe.GetContext(ctx, &cnt, q, a...); err != nil {
		return errors.Wrap(err, "checking chave uniqueness")
	}
	if cnt > 0 {
		return chave.ErrChaveExists
	}
	return nil
}

func (repo chaveRepository) CreateChave(ctx context.Context, chv chave.Chave, exec ...core.DBExecutor) (chave.Chave, error) {
	exe := repo.getExec(exec)
	id, err := insertReturningID(ctx, exe,
		`INSERT INTO chaves (chave, projetista_id, polo_id, ns, coordenada, poste, municipio, chamado, data_chamado,
		data_inclusao, data_modificacao, observacao) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chv.Chave, chv.ProjetistaID, chv.PoloID, chv.NS, chv.Coordenada, chv.Poste, chv.Municipio, chv.Chamado,
		chv.DataChamado, chv.DataInclusao.UTC(), chv.DataModificacao.UTC(), chv.Observacao,
	)
	if err != nil {
		return chave.Chave{}, repo.trapErr(err, "inserting chave")
	}
	return repo.GetChaveByID(ctx, id, exe)
}

func (repo chaveRepository) CountChaves(ctx context.Context, filter chave.QueryFilter, exec ...core.DBExecutor) (int, error) {
	exe := repo.getExec(exec)
	where := repo.where(filter)
	q, args, err := prepare(exe, "SELECT COUNT(*)"+chaveFrom+where.String(), where.args...)
	if err != nil {
		return 0, err
	}
	var cnt int
	if err := exe.GetContext(ctx, &cnt, q, args...); err != nil {
		return 0, errors.Wrap(err, "counting chaves")
	}
	return cnt, nil
}

func (repo chaveRepository) QueryChaves(
	ctx context.Context,
	filter chave.QueryFilter,
	ordering []core.DBOrdering,
	limit, offset int,
	exec ...core.DBExecutor,
) ([]chave.Chave, error) {
	exe := repo.getExec(exec)
	where := repo.where(filter)
	query := chaveSelect + where.String() + orderBy(ordering, chaveOrderColumns, "c.id ASC")
	args := where.args
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	q, a, err := prepare(exe, query, args...)
	if err != nil {
		return nil, err
	}

	var rows []chaveRow
	if err := exe.SelectContext(ctx, &rows, q, a...); err != nil {
		return nil, errors.Wrap(err, "querying chaves")
	}
	chaves := make([]chave.Chave, 0, len(rows))
	for _, row := range rows {
		chaves = append(chaves, repo.unboil(row))
	}
	return chaves, nil
}

func (repo chaveRepository) getChave(ctx context.Context, exe core.DBExecutor, cond string, arg interface{}) (chave.Chave, error) {
	var row chaveRow
	if err := exe.GetContext(ctx, &row, exe.Rebind(chaveSelect+" WHERE "+cond), arg); err != nil {
		return chave.Chave{}, repo.trapErr(err, "finding chave")
	}
	return repo.unboil(row), nil
}

func (repo chaveRepository) GetChaveByID(ctx context.Context, id int, exec ...core.DBExecutor) (chave.Chave, error) {
	return repo.getChave(ctx, repo.getExec(exec), "c.id = ?", id)
}

func (repo chaveRepository) GetChaveByCode(ctx context.Context, code string, exec ...core.DBExecutor) (chave.Chave, error) {
	return repo.getChave(ctx, repo.getExec(exec), "c.chave = ?", code)
}

func (repo chaveRepository) UpdateChave(ctx context.Context, chv chave.Chave, exec ...core.DBExecutor) (chave.Chave, error) {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind(
		`UPDATE chaves SET chave = ?, projetista_id = ?, polo_id = ?, ns = ?, coordenada = ?, poste = ?, municipio = ?,
		chamado = ?, data_chamado = ?, data_modificacao = ?, observacao = ? WHERE id = ?`),
		chv.Chave, chv.ProjetistaID, chv.PoloID, chv.NS, chv.Coordenada, chv.Poste, chv.Municipio,
		chv.Chamado, chv.DataChamado, chv.DataModificacao.UTC(), chv.Observacao, chv.ID,
	)
	if err != nil {
		return chave.Chave{}, repo.trapErr(err, "updating chave")
	}
	if err := checkAffected(res, chave.ErrNotFound); err != nil {
		return chave.Chave{}, err
	}
	return repo.GetChaveByID(ctx, chv.ID, exe)
}

func (repo chaveRepository) SetProjetista(ctx context.Context, projetistaID int, ids []int, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	exe := repo.getExec(exec)
	q, args, err := prepare(exe, "UPDATE chaves SET projetista_id = ? WHERE id IN (?)", projetistaID, ids)
	if err != nil {
		return 0, err
	}
	res, err := exe.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "setting projetista")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), err
}

func (repo chaveRepository) DeleteChavesByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error) {
	cnt, err := deleteByID(ctx, repo.getExec(exec), "chaves", ids)
	return cnt, errors.Wrap(err, "deleting chaves")
}
