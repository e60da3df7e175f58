package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/ormtypes/internal/cli/ui"
	"github.com/conduit-lang/ormtypes/internal/ormctx"
)

var methodNames = map[string]ormctx.Method{
	"init":        ormctx.MethodInit,
	"create":      ormctx.MethodCreate,
	"values":      ormctx.MethodValues,
	"values_list": ormctx.MethodValuesList,
	"none":        ormctx.MethodNone,
}

func parseMethod(name string) (ormctx.Method, error) {
	method, ok := methodNames[name]
	if !ok {
		return "", fmt.Errorf("unknown method %q (expected init, create, values, values_list or none)", name)
	}
	return method, nil
}

// NewExpectedTypesCommand creates the expected-types command
func NewExpectedTypesCommand(flags *globalFlags) *cobra.Command {
	var methodName string

	cmd := &cobra.Command{
		Use:   "expected-types <model>",
		Short: "Show the keyword types accepted by a model call",
		Long: `Show the type accepted for every keyword argument when constructing a
model (--method init) or calling create() (--method create). Foreign keys
are listed under both their name and their attname.`,
		Example: `  ormtypes expected-types shop.Book
  ormtypes expected-types shop.Book --method create --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := parseMethod(methodName)
			if err != nil {
				return err
			}

			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.checkModel(cmd, args[0]); err != nil {
				return err
			}

			expected, err := s.api.ExpectedTypes(args[0], method)
			if err != nil {
				return err
			}
			if done, err := encode(cmd.OutOrStdout(), s.cfg.Output.Format, expected); done {
				return err
			}

			ui.Header(cmd.OutOrStdout(), fmt.Sprintf("%s (%s)", args[0], methodName), s.noColor())
			table := ui.NewTable(cmd.OutOrStdout(), s.noColor(), "KEYWORD", "TYPE")
			for _, typed := range expected {
				table.AddRow(typed.Name, typed.Type)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&methodName, "method", "m", "init", "call to type: init, create, values, values_list or none")
	return cmd
}
