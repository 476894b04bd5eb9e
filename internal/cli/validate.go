package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/cwlviz/internal/render"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow.cwl>",
		Short: "Check a CWL workflow for structural errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := render.New(logger).Validate(args[0])
			if err != nil {
				printDetails(cmd.ErrOrStderr(), err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (%s, %s, %d steps)\n",
				args[0], doc.OriginalClass, doc.CWLVersion, len(doc.Workflow.Steps))
			return nil
		},
	}
}
