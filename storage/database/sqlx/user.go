package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/user"
)

const userColumns = "id, email, first_name, last_name, is_active, is_staff, is_superuser, grupos, password_hash, date_joined, last_login"

var userOrderColumns = map[string]string{
	"id":          "id",
	"email":       "email",
	"first_name":  "first_name",
	"last_name":   "last_name",
	"date_joined": "date_joined",
	"last_login":  "last_login",
}

type userRow struct {
	ID           int       `db:"id"`
	Email        string    `db:"email"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	IsActive     bool      `db:"is_active"`
	IsStaff      bool      `db:"is_staff"`
	IsSuperuser  bool      `db:"is_superuser"`
	Grupos       string    `db:"grupos"`
	PasswordHash []byte    `db:"password_hash"`
	DateJoined   time.Time `db:"date_joined"`
	LastLogin    null.Time `db:"last_login"`
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) boil(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Email:        usr.Email,
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		IsActive:     usr.IsActive,
		IsStaff:      usr.IsStaff,
		IsSuperuser:  usr.IsSuperuser,
		Grupos:       strings.Join(usr.Groups, ","),
		PasswordHash: usr.PasswordHash,
		DateJoined:   usr.DateJoined.UTC(),
		LastLogin:    usr.LastLogin,
	}
}

func (repo userRepository) unboil(row userRow) user.User {
	groups := make([]string, 0)
	for _, g := range strings.Split(row.Grupos, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	lastLogin := row.LastLogin
	if lastLogin.Valid {
		lastLogin.Time = lastLogin.Time.UTC()
	}
	return user.User{
		ID:           row.ID,
		Email:        row.Email,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		IsActive:     row.IsActive,
		IsStaff:      row.IsStaff,
		IsSuperuser:  row.IsSuperuser,
		Groups:       groups,
		PasswordHash: row.PasswordHash,
		DateJoined:   row.DateJoined.UTC(),
		LastLogin:    lastLogin,
	}
}

// trapNoRowsErr maps "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs []int, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	query := "SELECT COUNT(*) FROM users WHERE LOWER(email) = ?"
	args := []interface{}{strings.ToLower(email)}
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
		return errors.Wrap(err, "checking user uniqueness")
	}
	if cnt > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := repo.boil(usr)
	id, err := insertReturningID(ctx, repo.getExec(exec),
		`INSERT INTO users (email, first_name, last_name, is_active, is_staff, is_superuser, grupos, password_hash, date_joined, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Email, row.FirstName, row.LastName, row.IsActive, row.IsStaff, row.IsSuperuser, row.Grupos,
		row.PasswordHash, row.DateJoined, row.LastLogin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	row.ID = id
	return repo.unboil(row), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	exe := repo.getExec(exec)
	var where whereClause

	if filter != nil {
		// users with Email, FirstName or LastName matching the search keyword
		if filter.Search != "" {
			val := escapeLike(filter.Search)
			where.add("("+iContains("email")+" OR "+iContains("first_name")+" OR "+iContains("last_name")+")", val, val, val)
		}
		if filter.Group != "" {
			where.add("(',' || grupos || ',') LIKE ?", "%,"+filter.Group+",%")
		}
		if filter.IsActive != nil {
			where.add("is_active = ?", *filter.IsActive)
		}
		if filter.IsSuperuser != nil {
			where.add("is_superuser = ?", *filter.IsSuperuser)
		}
	}

	query := "SELECT " + userColumns + " FROM users" + where.String() + orderBy(ordering, userOrderColumns, "id ASC")
	var rows []userRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.unboil(row))
	}
	return users, nil
}

func (repo userRepository) getUser(ctx context.Context, exe core.DBExecutor, cond string, arg interface{}) (user.User, error) {
	var row userRow
	query := exe.Rebind("SELECT " + userColumns + " FROM users WHERE " + cond)
	if err := exe.GetContext(ctx, &row, query, arg); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id int, exec ...core.DBExecutor) (user.User, error) {
	return repo.getUser(ctx, repo.getExec(exec), "id = ?", id)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getUser(ctx, repo.getExec(exec), "LOWER(email) = ?", strings.ToLower(email))
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	row := repo.boil(usr)
	res, err := exe.ExecContext(ctx, exe.Rebind(
		`UPDATE users SET email = ?, first_name = ?, last_name = ?, is_active = ?, is_staff = ?, is_superuser = ?,
		grupos = ?, password_hash = ?, last_login = ? WHERE id = ?`),
		row.Email, row.FirstName, row.LastName, row.IsActive, row.IsStaff, row.IsSuperuser,
		row.Grupos, row.PasswordHash, row.LastLogin, row.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err := checkAffected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return repo.unboil(row), nil
}

func (repo userRepository) SetLastLogin(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("UPDATE users SET last_login = ? WHERE id = ?"), at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	return checkAffected(res, user.ErrNotFound)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error) {
	cnt, err := deleteByID(ctx, repo.getExec(exec), "users", ids)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, user.ErrProtected
		}
		return 0, errors.Wrap(err, "deleting users")
	}
	return cnt, nil
}
