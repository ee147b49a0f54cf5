// Command birdcon predicts the conservation concern category of a bird
// species from its traits and summarises the reference dataset.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"bird-conservation/internal/cfg"
	"bird-conservation/internal/common"
	"bird-conservation/internal/ml"

	"github.com/spf13/cobra"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// rootOptions is shared by every subcommand. Settings are filled in by
// PersistentPreRunE.
type rootOptions struct {
	settings cfg.Settings
	output   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "birdcon",
		Short:         "Bird conservation concern predictor",
		Long:          "Predicts the conservation concern category (Low/Medium/High) of a bird species from its ecological and conservation-status traits, and summarises the reference dataset.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.output != outputText && opts.output != outputJSON {
				return fmt.Errorf("--output must be %s or %s, got %q", outputText, outputJSON, opts.output)
			}

			s, err := cfg.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.settings = s
			cfg.SetupLogging(s.LogLevel, s.LogFormat, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format (text|json)")

	root.AddCommand(
		newPredictCmd(opts),
		newBatchCmd(opts),
		newInteractiveCmd(opts),
		newSummaryCmd(opts),
		newCatalogCmd(opts),
		newHistoryCmd(opts),
		newModelsCmd(opts),
	)
	return root
}

// exitError carries a process exit code. An empty message means the
// failure was already reported on stdout.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// exitCode maps a command error to a process exit code. Errors outside the
// prediction taxonomy are usage or configuration errors.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, ml.ErrCodecRange) {
		return common.ExitInternal
	}
	switch ml.Classify(err) {
	case ml.KindNone:
		return common.ExitOK
	case ml.KindInput:
		return common.ExitInput
	case ml.KindUnavailable:
		return common.ExitUnavailable
	}
	return common.ExitUsage
}

// kindExitCode maps a failed prediction to its exit code.
func kindExitCode(kind ml.Kind) int {
	switch kind {
	case ml.KindNone:
		return common.ExitOK
	case ml.KindInput:
		return common.ExitInput
	case ml.KindUnavailable:
		return common.ExitUnavailable
	default:
		return common.ExitInternal
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return common.ExitOK
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(stderr, common.ErrorPrefix+msg)
	}
	return exitCode(err)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
