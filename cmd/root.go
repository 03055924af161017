package cmd

import (
	"pvv/api/app"
	"pvv/api/cmd/annotate"
	"pvv/api/cmd/database"
	"pvv/api/cmd/load"
	"pvv/api/cmd/web"

	"github.com/spf13/cobra"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *app.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pvv",
		Short:         "Parkinson's Variant Viewer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, ctx)

	subcommands := []*cobra.Command{
		web.Command(ctx),
		database.InitCommand(ctx),
		database.ResetCommand(ctx),
		load.Command(ctx),
		annotate.Command(ctx),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return ctx.Load()
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if ctx.Log != nil {
			ctx.Log.Sync()
		}
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, ctx *app.Context) {
	rootCmd.PersistentFlags().StringVarP(&ctx.ConfigFile, "config", "c", "", "Path to a YAML config file (defaults to $PVV_CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.Debug, "debug", "d", false, "Enable debug output")
}
