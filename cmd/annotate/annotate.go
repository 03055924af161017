package annotate

import (
	"encoding/json"
	"fmt"

	"pvv/api/app"
	annotationSource "pvv/api/models/constants/annotation-source"

	"github.com/spf13/cobra"
)

// Command creates the cobra.Command annotating every outstanding variant
func Command(ctx *app.Context) *cobra.Command {
	var (
		sources   []string
		patientId string
	)

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Annotate variants still missing an ok annotation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, ok := annotationSource.Parse(sources)
			if !ok {
				return fmt.Errorf("unknown source in %v; expected any of %v", sources, annotationSource.All())
			}

			rt, err := ctx.Build(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.Pipeline.AnnotateOutstanding(cmd.Context(), patientId, parsed)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if result.Stopped {
				return cmd.Context().Err()
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&sources, "source", "s", nil, "Annotation source(s) to query (default all)")
	cmd.Flags().StringVar(&patientId, "patient", "", "Restrict to one patient id")

	return cmd
}
