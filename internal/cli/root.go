package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/cwlviz/internal/config"
	"github.com/me/cwlviz/internal/logging"
)

var (
	flagConfig    string
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    config.Config
	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking CWLVIZ_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("CWLVIZ_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the cwlviz CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cwlviz",
		Short: "cwlviz draws CWL workflows as Graphviz graphs",
		Long: "cwlviz reads CWL workflows, including nested sub-workflows and packed\n" +
			"$graph documents, and writes them as Graphviz DOT. It can also run as an\n" +
			"HTTP service that renders and caches graphs.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(flagConfig, cmd.Flags())
			if err != nil {
				return err
			}
			if flagDebug {
				loaded.Log.Level = "debug"
			}
			cfg = loaded
			logger = logging.NewLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
			client = NewClient(flagServer, logger)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ./cwlviz.yaml or ~/.config/cwlviz/cwlviz.yaml)")
	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "cwlviz server URL (or CWLVIZ_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRenderCmd(),
		newValidateCmd(),
		newServeCmd(),
		newSubmitCmd(),
		newListCmd(),
		newGetCmd(),
		newDeleteCmd(),
	)

	return root
}
