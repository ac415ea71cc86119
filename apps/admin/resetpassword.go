package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	usr, err := cli.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if _, err := cli.users.SetPassword(ctx, usr, pwd); err != nil {
		return cli.readable(err)
	}
	fmt.Fprintf(cli.out, "Password of %s changed.\n", usr.Email)
	return nil
}
