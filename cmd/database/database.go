package database

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"pvv/api/app"
	"pvv/api/repositories/sqlite"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var ErrAborted = errors.New("reset aborted")

// InitCommand creates the cobra.Command bootstrapping a fresh database
func InitCommand(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the database schema",
		Long:  "Create the database schema. Refuses to touch a database that is already initialized.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDatabase(cmd.Context(), ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized database at %s\n", ctx.Config.Database.Path)
			return nil
		},
	}
}

// ResetCommand creates the cobra.Command dropping and recreating every table
func ResetCommand(ctx *app.Context) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset-db",
		Short: "Drop and recreate the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), ctx.Config.Database.Path); err != nil {
					return err
				}
			}
			if err := resetDatabase(cmd.Context(), ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset database at %s\n", ctx.Config.Database.Path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func initDatabase(runCtx context.Context, ctx *app.Context) error {
	existing, err := ctx.OpenStore(runCtx, false)
	if err == nil {
		existing.Close()
		return fmt.Errorf("database at %s is already initialized; use reset-db to start over", ctx.Config.Database.Path)
	}
	if !errors.Is(err, sqlite.ErrDatabaseMissing) {
		return err
	}

	store, err := ctx.OpenStore(runCtx, true)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := ctx.OpenSearch(runCtx); err != nil {
		ctx.Log.Warn("search index not created", "error", err)
	}
	return nil
}

func resetDatabase(runCtx context.Context, ctx *app.Context) error {
	store, err := ctx.OpenStore(runCtx, true)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Reset(runCtx); err != nil {
		return err
	}

	search, err := ctx.OpenSearch(runCtx)
	if err != nil {
		ctx.Log.Warn("search index not reset", "error", err)
		return nil
	}
	if search != nil {
		if err := search.DeleteIndex(runCtx); err != nil {
			return err
		}
		return search.EnsureIndex(runCtx)
	}
	return nil
}

// confirm asks for a typed "yes"; without a terminal to ask on it refuses
func confirm(in io.Reader, out io.Writer, path string) error {
	if f, ok := in.(*os.File); ok && !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return fmt.Errorf("%w: not a terminal, pass --yes to reset %s", ErrAborted, path)
	}

	fmt.Fprintf(out, "This drops every variant, annotation and batch in %s. Type 'yes' to continue: ", path)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if strings.TrimSpace(answer) != "yes" {
		return ErrAborted
	}
	return nil
}
