package commands

import (
	"github.com/spf13/cobra"

	"github.com/conduit-lang/ormtypes/internal/cli/ui"
	"github.com/conduit-lang/ormtypes/internal/tooling"
)

// NewModelsCommand creates the models command
func NewModelsCommand(flags *globalFlags) *cobra.Command {
	var app string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List registered models",
		Long: `List every model of the installed apps, including abstract ancestors
and auto-created through models. With --app only the models declared by
that app are listed, in declaration order.`,
		Example: `  ormtypes models
  ormtypes models --app auth`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.close()

			var models []tooling.ModelSummary
			if app != "" {
				models, err = s.api.AppModels(app)
			} else {
				models, err = s.api.Models()
			}
			if err != nil {
				return err
			}
			if done, err := encode(cmd.OutOrStdout(), s.cfg.Output.Format, models); done {
				return err
			}

			table := ui.NewTable(cmd.OutOrStdout(), s.noColor(), "LABEL", "CLASS", "KIND")
			for _, model := range models {
				table.AddRow(model.Label, model.Fullname, model.Kind)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "only list the models declared by this app (name or label)")
	return cmd
}
