package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/udpstress/internal/config"
	"github.com/wesleyorama2/udpstress/internal/logging"
	"github.com/wesleyorama2/udpstress/internal/output"
)

var version = "0.1.0"

// Exit codes returned by ExitCode.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitConfig = 2
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	format     string
	json       bool
	noColor    bool
	debug      bool
	verbose    bool
}

// outputFormat resolves --format and its --json shorthand.
func (o *globalOptions) outputFormat() (output.OutputFormat, error) {
	if o.json {
		return output.FormatJSON, nil
	}
	return output.ParseFormat(o.format)
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = NewRootCmd()

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:     "udpstress",
		Short:   "A UDP load generator and collector",
		Version: version,
		Long: `udpstress sends UDP datagrams at a fixed rate and collects them on the
other side, reporting throughput as it goes.

Rates finer than a millisecond are reached by sending batches of datagrams on
every timer tick, so the average rate stays exact.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(cmd.ErrOrStderr(), opts.debug)
		},
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	flags.StringVar(&opts.format, "format", "text", "Summary format (text, json, yaml)")
	flags.BoolVar(&opts.json, "json", false, "Print the summary as JSON (same as --format json)")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")

	cmd.AddCommand(newSendCmd(opts))
	cmd.AddCommand(newCollectCmd(opts))

	return cmd
}

// Execute runs the root command and reports any error on stderr.
func Execute() error {
	err := RootCmd.Execute()
	if err != nil {
		reportError(os.Stderr, RootCmd, err)
	}
	return err
}

// ExitCode maps an error returned by Execute to a process exit code. A
// configuration the run never started with is ExitConfig.
func ExitCode(err error) int {
	var verrs *config.ValidationErrors
	switch {
	case err == nil:
		return ExitOK
	case config.IsTimingError(err), errors.As(err, &verrs):
		return ExitConfig
	default:
		return ExitFailed
	}
}

func reportError(w io.Writer, cmd *cobra.Command, err error) {
	noColor, _ := cmd.PersistentFlags().GetBool("no-color")
	fmt.Fprintln(w, output.ErrorIcon(!output.UseColor(w, noColor)), "Error:", err)
	if config.IsTimingError(err) {
		fmt.Fprintln(w, "Give exactly one of --delay or --frequency.")
	}
}

// streams picks where the run header and periodic reports go. A structured
// summary owns stdout, so everything else moves to stderr.
func streams(cmd *cobra.Command, format output.OutputFormat) (report io.Writer, summary io.Writer) {
	if format == output.FormatText {
		return cmd.OutOrStdout(), cmd.OutOrStdout()
	}
	return cmd.ErrOrStderr(), cmd.OutOrStdout()
}

// writeSummary prints the final summary in the requested format.
func writeSummary(w io.Writer, format output.OutputFormat, s *output.Summary, text string) error {
	if format == output.FormatText {
		_, err := io.WriteString(w, text)
		return err
	}
	rendered, err := output.RenderSummary(format, s)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, rendered)
	return err
}

// isInterrupt reports whether err only says the run was stopped early.
func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
