// Command cwlviz renders CWL workflows as Graphviz graphs and serves the
// rendering API.
package main

import (
	"fmt"
	"os"

	"github.com/me/cwlviz/internal/cli"
)

func main() {
	root := cli.NewRootCmd()
	root.SilenceErrors = true
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cwlviz: %v\n", err)
		os.Exit(1)
	}
}
