package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/cwlviz/internal/bundle"
	"github.com/me/cwlviz/pkg/model"
)

func newSubmitCmd() *cobra.Command {
	var (
		validate bool
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "submit <workflow.cwl>",
		Short: "Bundle a workflow and store its graph on the server",
		Long: "Submit packs the workflow and every file its steps run into a single\n" +
			"$graph document and sends it to the server, which renders and caches it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			b, err := bundle.Bundle(args[0])
			if err != nil {
				return fmt.Errorf("bundle: %w", err)
			}
			logger.Debug("bundled workflow", "name", b.Name, "bytes", len(b.Packed))

			if dryRun {
				fmt.Fprintf(out, "Dry-run: bundled %s (%d bytes). Nothing submitted.\n", b.Name, len(b.Packed))
				return nil
			}

			body := map[string]any{
				"cwl":      string(b.Packed),
				"validate": validate,
			}
			// Unset options fall back to the server's defaults.
			if cmd.Flags().Changed("rankdir") {
				body["rankdir"] = strings.ToUpper(cfg.Render.RankDir)
			}
			if cmd.Flags().Changed("file-nodes") {
				body["file_nodes"] = cfg.Render.FileNodes
			}

			resp, err := client.Post("/api/v1/graphs/", body)
			if err != nil {
				printDetails(cmd.ErrOrStderr(), err)
				return fmt.Errorf("submit graph: %w", err)
			}

			var g model.Graph
			if err := json.Unmarshal(resp.Data, &g); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Fprintf(out, "Graph stored: %s\n", g.ID)
			fmt.Fprintf(out, "  Name:   %s\n", g.Name)
			fmt.Fprintf(out, "  Nodes:  %d\n", g.NodeCount)
			fmt.Fprintf(out, "  Arrows: %d\n", g.ArrowCount)
			for _, w := range g.Warnings {
				fmt.Fprintf(out, "  Warning: %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().String("rankdir", "LR", "Graph direction (LR, TB, RL, BT)")
	cmd.Flags().Bool("file-nodes", false, "Draw file-literal ports as nodes")
	cmd.Flags().BoolVar(&validate, "validate", false, "Ask the server to validate before drawing")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Bundle only, do not contact the server")

	return cmd
}
