package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/chave"
	"github.com/trezcool/janus/core/polo"
	"github.com/trezcool/janus/core/projetista"
	"github.com/trezcool/janus/core/user"
	"github.com/trezcool/janus/storage/database"
	sqlxrepos "github.com/trezcool/janus/storage/database/sqlx"
)

// Password satisfies the password policy for any fixture user.
const Password = "Sup3rS3cr3t!"

// PrepareDB returns a migrated in-memory sqlite database, closed at the end of the test.
func PrepareDB(t testing.TB) *sqlx.DB {
	t.Helper()
	conf := core.NewTestConfig()
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(t testing.TB, repo user.Repository, email string, groups []string, superuser bool) user.User {
	t.Helper()
	usr := user.User{
		Email:       email,
		FirstName:   "Test",
		LastName:    "User",
		IsActive:    true,
		IsStaff:     true,
		IsSuperuser: superuser,
		Groups:      groups,
		DateJoined:  time.Now().UTC(),
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreatePolo(t testing.TB, repo polo.Repository, code string) polo.Polo {
	t.Helper()
	p, err := repo.CreatePolo(context.Background(), polo.Polo{Polo: code})
	if err != nil {
		t.Fatalf("CreatePolo() failed: %v", err)
	}
	return p
}

// CreateProjetista creates an active projetista, linked to the user if usr is not nil.
func CreateProjetista(t testing.TB, repo projetista.Repository, name string, usr *user.User) projetista.Projetista {
	t.Helper()
	p := projetista.Projetista{Nome: name, Ativo: true}
	if usr != nil {
		p.UsuarioID = null.IntFrom(usr.ID)
	}
	p, err := repo.CreateProjetista(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateProjetista() failed: %v", err)
	}
	return p
}

// ChaveOpt customizes a fixture chave.
type ChaveOpt func(chv *chave.Chave)

func WithProjetista(p projetista.Projetista) ChaveOpt {
	return func(chv *chave.Chave) { chv.ProjetistaID = null.IntFrom(p.ID) }
}

func WithPolo(p polo.Polo) ChaveOpt {
	return func(chv *chave.Chave) { chv.PoloID = null.IntFrom(p.ID) }
}

func WithNS(ns string) ChaveOpt {
	return func(chv *chave.Chave) { chv.NS = null.StringFrom(ns) }
}

func WithMunicipio(m string) ChaveOpt {
	return func(chv *chave.Chave) { chv.Municipio = null.StringFrom(m) }
}

func CreateChave(t testing.TB, repo chave.Repository, code string, opts ...ChaveOpt) chave.Chave {
	t.Helper()
	now := time.Now().UTC()
	chv := chave.Chave{Chave: code, DataInclusao: now, DataModificacao: now}
	for _, opt := range opts {
		opt(&chv)
	}
	chv, err := repo.CreateChave(context.Background(), chv)
	if err != nil {
		t.Fatalf("CreateChave() failed: %v", err)
	}
	return chv
}

// Repos bundles the sqlx repositories of a test database.
type Repos struct {
	Users       user.Repository
	Projetistas projetista.Repository
	Polos       polo.Repository
	Chaves      chave.Repository
}

func NewRepos(db *sqlx.DB) Repos {
	return Repos{
		Users:       sqlxrepos.NewUserRepository(db),
		Projetistas: sqlxrepos.NewProjetistaRepository(db),
		Polos:       sqlxrepos.NewPoloRepository(db),
		Chaves:      sqlxrepos.NewChaveRepository(db),
	}
}
