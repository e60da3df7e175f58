package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/ormtypes/internal/cli/ui"
	"github.com/conduit-lang/ormtypes/internal/tooling"
)

// cliURI is the document diagnostics of command line lookups are recorded against
const cliURI = "ormtypes:cli"

// NewLookupCommand creates the lookup command
func NewLookupCommand(flags *globalFlags) *cobra.Command {
	var annotations []string

	cmd := &cobra.Command{
		Use:   "lookup <model> <lookup>",
		Short: "Resolve a filter keyword",
		Long: `Split a filter keyword such as "author__name__icontains" into field and
operator segments and show the operand type it accepts.

Annotations added upstream by annotate() can be declared with --annotate
name=type; keywords naming them resolve to the declared type.`,
		Example: `  ormtypes lookup shop.Book author__name__icontains
  ormtypes lookup shop.Book total__gt --annotate total=builtins.int`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			extra, err := parseAnnotations(annotations)
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

			result, err := s.api.ResolveLookup(tooling.LookupRequest{
				Model:  args[0],
				Lookup: args[1],
				Extra:  extra,
				URI:    cliURI,
			})
			if err != nil {
				return err
			}
			if done, err := encode(cmd.OutOrStdout(), s.cfg.Output.Format, result); done {
				if err == nil && len(result.Diagnostics) > 0 {
					return errReported
				}
				return err
			}

			for _, message := range result.Diagnostics {
				ui.Write(cmd.ErrOrStderr(), ui.Message{
					Context: "invalid lookup",
					Problem: message,
					NoColor: s.noColor(),
				})
			}

			ui.KeyValues(cmd.OutOrStdout(), s.noColor(),
				[2]string{"model", result.Model},
				[2]string{"lookup", result.Lookup},
				[2]string{"fields", strings.Join(result.FieldParts, " → ")},
				[2]string{"operators", strings.Join(result.LookupParts, ", ")},
				[2]string{"type", result.ExpectedType},
			)
			if len(result.Diagnostics) > 0 {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&annotations, "annotate", nil, "annotation carried by the queried instance, as name=type")
	return cmd
}

func parseAnnotations(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	extra := make(map[string]string, len(values))
	for _, value := range values {
		name, typ, ok := strings.Cut(value, "=")
		name, typ = strings.TrimSpace(name), strings.TrimSpace(typ)
		if !ok || name == "" || typ == "" {
			return nil, fmt.Errorf("invalid annotation %q (expected name=type)", value)
		}
		extra[name] = typ
	}
	return extra, nil
}
