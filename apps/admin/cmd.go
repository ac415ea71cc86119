package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/chave"
	"github.com/trezcool/janus/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sqlx.DB
	users      *user.Service
	chaves     *chave.Service
	translator ut.Translator
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  createsuperuser -email EMAIL [-first NAME -last NAME]      - create a superuser, the password is prompted")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL [-first -last -group G1,G2 -superuser] - create or update a user, the password is prompted")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL                                 - reset a user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                     - run a goose command: up, down, status, up-to N, ...")
	fmt.Fprintln(cli.out, "  importchaves -file FILE.xlsx                               - import chaves from a spreadsheet")
	fmt.Fprintln(cli.out, "  exportchaves -out FILE.xlsx [-sem-projetista]              - export chaves to a spreadsheet")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	switch args[1] {
	case "createsuperuser", "adduser":
		cmd := cli.newFlagSet(args[1])
		email := cmd.String("email", "", "The user's email, used to log in.")
		first := cmd.String("first", "", "First name.")
		last := cmd.String("last", "", "Last name.")
		var groups *string
		var superuser *bool
		if args[1] == "adduser" {
			groups = cmd.String("group", "", "Comma separated groups: "+strings.Join(user.AllGroups, ", "))
			superuser = cmd.Bool("superuser", false, "Grant every permission.")
		}
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(cmd)
		if err != nil {
			return err
		}

		nu := user.NewUser{Email: *email, FirstName: *first, LastName: *last, Password: pwd, PasswordConfirm: pwd}
		if args[1] == "createsuperuser" {
			return cli.createSuperuser(ctx, nu)
		}
		nu.Groups = splitGroups(*groups)
		if *superuser {
			nu.IsSuperuser = superuser
		}
		return cli.addUser(ctx, nu)

	case "resetpassword":
		cmd := cli.newFlagSet("resetpassword")
		email := cmd.String("email", "", "The user's email. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(cmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(ctx, *email, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "importchaves":
		cmd := cli.newFlagSet("importchaves")
		file := cmd.String("file", "", "The xlsx file: chave, data_chamado (AAAA-MM-DD HH:MM:SS), chamado; no header.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *file == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.importChaves(ctx, *file)

	case "exportchaves":
		cmd := cli.newFlagSet("exportchaves")
		out := cmd.String("out", "", "The xlsx file to write.")
		unassigned := cmd.Bool("sem-projetista", false, "Only the chaves without a projetista.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *out == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.exportChaves(ctx, *out, *unassigned)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword(cmd *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func splitGroups(s string) []string {
	var groups []string
	for _, g := range strings.Split(s, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// readable turns validation failures into one line per field.
func (cli *commandLine) readable(err error) error {
	if _, ok := err.(validator.ValidationErrors); ok {
		err = core.TranslateValidationErrors(err, cli.translator, nil)
	}
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(vErr.Fields)+1)
	if vErr.Err != nil {
		msgs = append(msgs, vErr.Err.Error())
	}
	for _, fErr := range vErr.Fields {
		msgs = append(msgs, fErr.Field+": "+fErr.Error)
	}
	return errors.New(strings.Join(msgs, "\n"))
}
