package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/cwlviz/pkg/model"
)

func newListCmd() *cobra.Command {
	var (
		limit int
		name  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored graphs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			if name != "" {
				q.Set("name", name)
			}
			resp, err := client.Get("/api/v1/graphs/?" + q.Encode())
			if err != nil {
				return fmt.Errorf("list graphs: %w", err)
			}

			var graphs []model.Graph
			if err := json.Unmarshal(resp.Data, &graphs); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(graphs) == 0 {
				fmt.Fprintln(out, "No graphs found.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-24s  %-6s  %-6s  %s\n", "ID", "NAME", "NODES", "ARROWS", "CREATED")
			fmt.Fprintf(out, "%-40s  %-24s  %-6s  %-6s  %s\n", "----", "----", "-----", "------", "-------")
			for _, g := range graphs {
				fmt.Fprintf(out, "%-40s  %-24s  %-6d  %-6d  %s\n",
					g.ID, g.Name, g.NodeCount, g.ArrowCount, g.CreatedAt.Format("2006-01-02 15:04:05"))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(graphs), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of graphs to show")
	cmd.Flags().StringVar(&name, "name", "", "Only show graphs with this name")

	return cmd
}

func newGetCmd() *cobra.Command {
	var dot bool

	cmd := &cobra.Command{
		Use:   "get <graph-id>",
		Short: "Show a stored graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			id := url.PathEscape(args[0])

			if dot {
				data, err := client.GetRaw("/api/v1/graphs/" + id + "/dot")
				if err != nil {
					return fmt.Errorf("get graph: %w", err)
				}
				_, err = out.Write(data)
				return err
			}

			resp, err := client.Get("/api/v1/graphs/" + id)
			if err != nil {
				return fmt.Errorf("get graph: %w", err)
			}
			var g model.Graph
			if err := json.Unmarshal(resp.Data, &g); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Fprintf(out, "Graph:      %s\n", g.ID)
			fmt.Fprintf(out, "Name:       %s\n", g.Name)
			fmt.Fprintf(out, "Class:      %s\n", g.Class)
			fmt.Fprintf(out, "CWL:        %s\n", g.CWLVersion)
			fmt.Fprintf(out, "Rankdir:    %s\n", g.RankDir)
			fmt.Fprintf(out, "File nodes: %t\n", g.FileNodes)
			fmt.Fprintf(out, "Nodes:      %d\n", g.NodeCount)
			fmt.Fprintf(out, "Arrows:     %d\n", g.ArrowCount)
			fmt.Fprintf(out, "Created:    %s\n", g.CreatedAt.Format("2006-01-02 15:04:05"))
			if len(g.StepOrder) > 0 {
				fmt.Fprintln(out, "\nStep order:")
				for i, s := range g.StepOrder {
					fmt.Fprintf(out, "  %2d. %s\n", i+1, s)
				}
			}
			if len(g.Warnings) > 0 {
				fmt.Fprintln(out, "\nWarnings:")
				for _, w := range g.Warnings {
					fmt.Fprintf(out, "  %s\n", w)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dot, "dot", false, "Print the DOT source instead of a summary")

	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <graph-id>",
		Short: "Delete a stored graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Delete("/api/v1/graphs/" + url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("delete graph: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Graph %s deleted.\n", args[0])
			return nil
		},
	}
}
