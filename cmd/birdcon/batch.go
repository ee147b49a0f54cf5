package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"bird-conservation/internal/common"
	"bird-conservation/internal/traits"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const maxInputLine = 1 << 20

func newBatchCmd(root *rootOptions) *cobra.Command {
	var checkCatalog bool

	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Predict every input in a JSON, JSON lines or YAML file",
		Long:  "Predicts each input of FILE (\"-\" for stdin) and prints one result line per input. A failed input is reported on its line and does not stop the batch; the exit code is that of the most severe failure.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			inputs, err := traits.ParseInputs(data)
			if err != nil {
				return emit(cmd, root.output, invalidInput(err))
			}

			if err := requireCatalog(checkCatalog, root.settings.DatasetPath); err != nil {
				return err
			}
			a, err := newApp(ctx, root.settings, needs{model: true, dataset: checkCatalog, server: true})
			if err != nil {
				return err
			}
			defer a.close()

			worst := common.ExitOK
			for i, in := range inputs {
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("batch interrupted after %d of %d inputs: %w", i, len(inputs), err)
				}
				r := a.predictOne(ctx, in, "batch", checkCatalog)
				r.Index = i + 1
				if err := r.write(cmd.OutOrStdout(), root.output); err != nil {
					return fmt.Errorf("write result: %w", err)
				}
				worst = max(worst, r.code)
			}

			log.Info().Int("inputs", len(inputs)).Int("exit_code", worst).Msg("batch complete")
			if worst != common.ExitOK {
				return &exitError{code: worst}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkCatalog, "check-catalog", false, "reject values not offered by the reference dataset")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	return data, nil
}

func newInteractiveCmd(root *rootOptions) *cobra.Command {
	var checkCatalog bool

	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Answer one JSON input per stdin line",
		Long:  "Loads the model once, then reads one JSON input object per line from stdin and answers each with one result line until EOF.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if err := requireCatalog(checkCatalog, root.settings.DatasetPath); err != nil {
				return err
			}
			a, err := newApp(ctx, root.settings, needs{model: true, dataset: checkCatalog, server: true})
			if err != nil {
				return err
			}
			defer a.close()

			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), maxInputLine)

			served := 0
			for scanner.Scan() {
				if ctx.Err() != nil {
					break
				}
				line := bytes.TrimSpace(scanner.Bytes())
				if len(line) == 0 {
					continue
				}

				var r result
				if in, err := traits.ParseInput(line); err != nil {
					r = invalidInput(err)
				} else {
					r = a.predictOne(ctx, in, "interactive", checkCatalog)
				}
				if err := r.write(cmd.OutOrStdout(), root.output); err != nil {
					return fmt.Errorf("write result: %w", err)
				}
				served++
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}

			log.Info().Int("requests", served).Msg("interactive session ended")
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkCatalog, "check-catalog", false, "reject values not offered by the reference dataset")
	return cmd
}
