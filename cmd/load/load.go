package load

import (
	"encoding/json"
	"fmt"
	"sort"

	"pvv/api/app"
	"pvv/api/services"

	"github.com/spf13/cobra"
)

type options struct {
	force            bool
	retryOutstanding bool
}

// Command creates the cobra.Command loading every VCF of a directory
func Command(ctx *app.Context) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "load-vcfs [dir]",
		Short: "Load and annotate every VCF file in a directory",
		Long:  "Load every Patient<N>.vcf(.gz) file in dir (defaults to the configured input directory), then annotate new variants.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ctx.Config.Api.VcfPath
			if len(args) == 1 {
				dir = args[0]
			}
			if !cmd.Flags().Changed("retry-outstanding") {
				opts.retryOutstanding = ctx.Config.Annotation.RetryOutstanding
			}

			rt, err := ctx.Build(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.Pipeline.LoadDirectory(cmd.Context(), dir, services.PipelineOptions{
				Force:            opts.force,
				RetryOutstanding: opts.retryOutstanding,
			})
			if result != nil {
				if printErr := printResult(cmd, result); printErr != nil {
					return printErr
				}
			}
			if err != nil {
				return err
			}
			if len(result.Failures) > 0 {
				return fmt.Errorf("%d file(s) failed to load", len(result.Failures))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Re-read files whose content was already loaded")
	cmd.Flags().BoolVar(&opts.retryOutstanding, "retry-outstanding", false, "Also annotate the patient's previously unannotated variants")

	return cmd
}

func printResult(cmd *cobra.Command, result *services.DirectoryResult) error {
	failed := make([]string, 0, len(result.Failures))
	for file := range result.Failures {
		failed = append(failed, file)
	}
	sort.Strings(failed)
	for _, file := range failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", file, result.Failures[file])
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result.Batches)
}
