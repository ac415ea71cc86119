package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/janus/core/user"
)

func (cli *commandLine) createSuperuser(ctx context.Context, nu user.NewUser) error {
	if err := nu.Validate(ctx, cli.users.Validator(), cli.users); err != nil {
		return cli.readable(err)
	}
	usr, err := cli.users.CreateSuperuser(ctx, nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Superuser %s created.\n", usr.Email)
	return nil
}

// addUser updates or creates a user.User, activating it.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	usr, err := cli.users.GetByEmail(ctx, nu.Email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		if err := nu.Validate(ctx, cli.users.Validator(), cli.users); err != nil {
			return cli.readable(err)
		}
		if usr, err = cli.users.Create(ctx, nu); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "User %s created.\n", usr.Email)
		return nil
	}

	active := true
	uu := user.UpdateUser{
		IsActive:        &active,
		IsSuperuser:     nu.IsSuperuser,
		Groups:          nu.Groups,
		Password:        nu.Password,
		PasswordConfirm: nu.PasswordConfirm,
	}
	if nu.FirstName != "" {
		uu.FirstName = &nu.FirstName
	}
	if nu.LastName != "" {
		uu.LastName = &nu.LastName
	}
	if err := uu.Validate(ctx, usr, cli.users.Validator(), cli.users); err != nil {
		return cli.readable(err)
	}
	if usr, err = cli.users.Update(ctx, usr, uu); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "User %s updated.\n", usr.Email)
	return nil
}
