package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/emailconfig"
)

type emailConfigRepository struct {
	repository
}

var _ emailconfig.Repository = (*emailConfigRepository)(nil) // interface compliance check

func NewEmailConfigRepository(exec core.DBExecutor) *emailConfigRepository {
	return &emailConfigRepository{repository{exec: exec}}
}

func (repo emailConfigRepository) CreateEmailConfig(ctx context.Context, ec emailconfig.EmailConfig, exec ...core.DBExecutor) (emailconfig.EmailConfig, error) {
	id, err := insertReturningID(ctx, repo.getExec(exec),
		"INSERT INTO email_configs (nome, email) VALUES (?, ?)", ec.Nome, ec.Email)
	if err != nil {
		return emailconfig.EmailConfig{}, errors.Wrap(err, "inserting destinatário")
	}
	ec.ID = id
	return ec, nil
}

func (repo emailConfigRepository) QueryEmailConfigs(ctx context.Context, search string, exec ...core.DBExecutor) ([]emailconfig.EmailConfig, error) {
	exe := repo.getExec(exec)
	var where whereClause
	if search != "" {
		val := escapeLike(search)
		where.add("("+iContains("nome")+" OR "+iContains("email")+")", val, val)
	}
	configs := make([]emailconfig.EmailConfig, 0)
	query := exe.Rebind("SELECT id, nome, email FROM email_configs" + where.String() + " ORDER BY nome ASC, id ASC")
	if err := exe.SelectContext(ctx, &configs, query, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying destinatários")
	}
	return configs, nil
}

func (repo emailConfigRepository) GetEmailConfigByID(ctx context.Context, id int, exec ...core.DBExecutor) (emailconfig.EmailConfig, error) {
	exe := repo.getExec(exec)
	var ec emailconfig.EmailConfig
	if err := exe.GetContext(ctx, &ec, exe.Rebind("SELECT id, nome, email FROM email_configs WHERE id = ?"), id); err != nil {
		if err == sql.ErrNoRows {
			return emailconfig.EmailConfig{}, emailconfig.ErrNotFound
		}
		return emailconfig.EmailConfig{}, errors.Wrap(err, "finding destinatário")
	}
	return ec, nil
}

func (repo emailConfigRepository) UpdateEmailConfig(ctx context.Context, ec emailconfig.EmailConfig, exec ...core.DBExecutor) (emailconfig.EmailConfig, error) {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("UPDATE email_configs SET nome = ?, email = ? WHERE id = ?"), ec.Nome, ec.Email, ec.ID)
	if err != nil {
		return emailconfig.EmailConfig{}, errors.Wrap(err, "updating destinatário")
	}
	if err := checkAffected(res, emailconfig.ErrNotFound); err != nil {
		return emailconfig.EmailConfig{}, err
	}
	return ec, nil
}

func (repo emailConfigRepository) DeleteEmailConfigsByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error) {
	cnt, err := deleteByID(ctx, repo.getExec(exec), "email_configs", ids)
	return cnt, errors.Wrap(err, "deleting destinatários")
}
