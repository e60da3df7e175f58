package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/ormtypes/internal/cli/config"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalFlags are the persistent flags shared by every subcommand
type globalFlags struct {
	settings   string
	searchPath []string
	format     string
	noColor    bool
	verbose    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "ormtypes",
		Short: "Static types for ORM models, fields and lookups",
		Long: color.CyanString(`ormtypes - static typing for ORM models

ormtypes boots an ORM settings module and computes the types the type
checker should see for model fields, constructor and create() keywords,
values() projections and filter lookups.

Features:
  • Per-method field nullability (init, create, values)
  • Lookup resolution across forward and reverse relations
  • Operand types for comparison operators
  • JSON-RPC server for editor and checker integration`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.settings, "settings", "", "settings module or file (default: settings_module from ormtypes.yml)")
	pf.StringSliceVarP(&flags.searchPath, "search-path", "I", nil, "extra directories on the module search path")
	pf.StringVar(&flags.format, "format", "", "output format: text, json or yaml")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log engine decisions to stderr")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewModelsCommand(flags))
	rootCmd.AddCommand(NewFieldsCommand(flags))
	rootCmd.AddCommand(NewExpectedTypesCommand(flags))
	rootCmd.AddCommand(NewLookupCommand(flags))
	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewServeCommand(flags))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the ormtypes version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			// Set GoVersion to actual runtime if not set at build time
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				titleColor.DisableColor()
			}
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "ormtypes version: ")
			fmt.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// newLogger builds the logger for a command run
func (f *globalFlags) newLogger() *zap.Logger {
	if !f.verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// resolve merges the flags over ormtypes.yml
func (f *globalFlags) resolve() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if f.settings != "" {
		cfg.SettingsModule = f.settings
	}
	cfg.SearchPath = append(cfg.SearchPath, f.searchPath...)
	if f.format != "" {
		cfg.Output.Format = f.format
	}
	if f.noColor {
		cfg.Output.Color = false
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	color.NoColor = !cfg.Output.Color || color.NoColor
	return cfg, nil
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errReported) {
			return err
		}
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
