package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/ormtypes/internal/cli/ui"
	"github.com/conduit-lang/ormtypes/internal/ormctx"
)

// NewFieldsCommand creates the fields command
func NewFieldsCommand(flags *globalFlags) *cobra.Command {
	var projection bool

	cmd := &cobra.Command{
		Use:   "fields <model>",
		Short: "Show the fields of a model and their types",
		Long: `Show every field and reverse relation of a model with the type read
from it. The model is an "app_label.Model" label or a class name.`,
		Example: `  ormtypes fields shop.Book
  ormtypes fields shop.models.Book --values`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.checkModel(cmd, args[0]); err != nil {
				return err
			}

			method := ormctx.MethodNone
			if projection {
				method = ormctx.MethodValues
			}
			fields, err := s.api.Fields(args[0], method)
			if err != nil {
				return err
			}
			if done, err := encode(cmd.OutOrStdout(), s.cfg.Output.Format, fields); done {
				return err
			}

			table := ui.NewTable(cmd.OutOrStdout(), s.noColor(), "NAME", "ATTNAME", "CLASS", "NULL", "TYPE")
			for _, field := range fields {
				table.AddRow(field.Name, field.Attname, field.Class, strconv.FormatBool(field.Null), field.GetType)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&projection, "values", false, "show the types returned by values()")
	return cmd
}
