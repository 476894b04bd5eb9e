package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/cwlviz/internal/dotgraph"
	"github.com/me/cwlviz/internal/render"
	"github.com/me/cwlviz/pkg/model"
)

func newRenderCmd() *cobra.Command {
	var (
		format   string
		output   string
		validate bool
	)

	cmd := &cobra.Command{
		Use:   "render <workflow.cwl>",
		Short: "Render a CWL workflow as a Graphviz graph",
		Long: "Render reads a CWL workflow or tool and writes its graph as DOT, or as\n" +
			"JSON with --format json. Run references are loaded relative to the file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "dot" && format != "json" {
				return fmt.Errorf("unsupported format %q (want dot or json)", format)
			}

			opts := render.Options{
				Options: dotgraph.Options{
					RankDir:   strings.ToUpper(cfg.Render.RankDir),
					FileNodes: cfg.Render.FileNodes,
				},
				Validate: validate,
			}
			res, err := render.New(logger).RenderFile(args[0], opts)
			if err != nil {
				printDetails(cmd.ErrOrStderr(), err)
				return err
			}

			var out []byte
			if format == "json" {
				if out, err = res.JSON(); err != nil {
					return fmt.Errorf("encode graph: %w", err)
				}
				out = append(out, '\n')
			} else {
				out = []byte(res.DOT)
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if err := os.WriteFile(output, out, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			logger.Info("graph written", "path", output, "nodes", len(res.Graph.Nodes), "arrows", len(res.Graph.Arrows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "dot", "Output format (dot, json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().String("rankdir", "LR", "Graph direction (LR, TB, RL, BT)")
	cmd.Flags().Bool("file-nodes", false, "Draw file-literal ports as nodes")
	cmd.Flags().BoolVar(&validate, "validate", false, "Reject structurally invalid workflows before drawing")

	return cmd
}

// printDetails lists the field errors carried by a validation failure.
func printDetails(w io.Writer, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return
	}
	for _, d := range apiErr.Details {
		fmt.Fprintf(w, "  %s: %s\n", d.Field, d.Message)
	}
}
