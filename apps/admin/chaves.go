package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/janus/core/chave"
)

func (cli *commandLine) importChaves(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	result, err := cli.chaves.Import(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	for _, msg := range result.Messages {
		fmt.Fprintf(cli.out, "[%s] %s\n", msg.Level, msg.Message)
	}
	return nil
}

func (cli *commandLine) exportChaves(ctx context.Context, path string, unassigned bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := f.Close(); err == nil {
			err = cErr
		}
	}()

	if err := cli.chaves.Export(ctx, f, chave.QueryFilter{SemProjetista: unassigned}); err != nil {
		return errors.Wrap(err, "exporting chaves")
	}
	fmt.Fprintf(cli.out, "Chaves exported to %s.\n", path)
	return nil
}
