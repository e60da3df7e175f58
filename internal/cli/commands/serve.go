package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/ormtypes/internal/lsp"
	"github.com/conduit-lang/ormtypes/internal/orm/conf"
)

// NewServeCommand creates the serve command
func NewServeCommand(flags *globalFlags) *cobra.Command {
	var watchFiles bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the JSON-RPC server",
		Long: `Start the ormtypes JSON-RPC 2.0 server on stdin/stdout.

The server boots the settings module on "initialize" (from the
initializationOptions, --settings or ormtypes.yml) and answers:
  • ormtypes/expectedTypes
  • ormtypes/lookupType
  • ormtypes/resolveLookup

Rejected lookups are pushed to the client with textDocument/publishDiagnostics.
With --watch the settings module is booted again whenever a YAML file on
the search path changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}
			for _, dir := range cfg.SearchPath {
				conf.AppendSearchPath(dir)
			}

			logger := flags.newLogger()
			defer logger.Sync()

			server := lsp.NewServer(logger,
				lsp.WithSettingsModule(cfg.GetSettingsModule()),
				lsp.WithWatch(watchFiles))

			// Set up context with cancellation
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Handle signals for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			return server.Run(ctx)
		},
	}

	cmd.Flags().BoolVarP(&watchFiles, "watch", "w", false, "reload when settings or models files change")
	return cmd
}
