package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/ormtypes/internal/cli/config"
	"github.com/conduit-lang/ormtypes/internal/cli/ui"
	"github.com/conduit-lang/ormtypes/internal/orm/conf"
	"github.com/conduit-lang/ormtypes/internal/tooling"
)

// errReported marks errors already printed to the user
var errReported = errors.New("command failed")

// session is a booted API plus the merged configuration of one command run
type session struct {
	api    *tooling.API
	cfg    *config.Config
	logger *zap.Logger
}

// openSession loads the configuration, extends the search path and boots the
// settings module
func openSession(cmd *cobra.Command, flags *globalFlags) (*session, error) {
	cfg, err := flags.resolve()
	if err != nil {
		return nil, err
	}
	logger := flags.newLogger()

	for _, dir := range cfg.SearchPath {
		conf.AppendSearchPath(dir)
	}
	if wd, err := os.Getwd(); err == nil {
		conf.AppendSearchPath(wd)
	}

	module := cfg.GetSettingsModule()
	if module == "" {
		ui.Write(cmd.ErrOrStderr(), ui.Message{
			Context: "settings error",
			Problem: "No settings module configured.",
			Hints: []string{
				"Pass --settings <module>",
				fmt.Sprintf("Or set %s", conf.SettingsModuleEnv),
				"Or create ormtypes.yml: ormtypes init",
			},
			NoColor: !cfg.Output.Color,
		})
		return nil, errReported
	}

	api := tooling.NewAPI(logger)
	if err := api.Boot(module); err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.SettingsError(module, err, !cfg.Output.Color))
		return nil, errReported
	}
	return &session{api: api, cfg: cfg, logger: logger}, nil
}

// checkModel prints a not-found message with suggestions for unknown models
func (s *session) checkModel(cmd *cobra.Command, name string) error {
	if _, err := s.api.FindModel(name); err != nil {
		if errors.Is(err, tooling.ErrModelNotFound) {
			suggestions := ui.FindSimilar(name, s.api.ModelNames())
			fmt.Fprint(cmd.ErrOrStderr(), ui.ModelNotFound(name, suggestions, !s.cfg.Output.Color))
			return errReported
		}
		return err
	}
	return nil
}

func (s *session) noColor() bool {
	return !s.cfg.Output.Color
}

func (s *session) close() {
	_ = s.logger.Sync()
}
