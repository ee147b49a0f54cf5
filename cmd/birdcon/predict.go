package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"bird-conservation/internal/common"
	"bird-conservation/internal/ml"
	"bird-conservation/internal/storage"
	"bird-conservation/internal/traits"

	"github.com/spf13/cobra"
)

// result is the outcome of one prediction request.
type result struct {
	Index        int    `json:"index,omitempty"`
	Label        string `json:"label,omitempty"`
	ClassIndex   *int   `json:"class_index,omitempty"`
	ModelVersion string `json:"model_version,omitempty"`
	Error        string `json:"error,omitempty"`
	Kind         string `json:"kind,omitempty"`

	code int
}

func (r result) line() string {
	if r.Error != "" {
		return common.ErrorPrefix + r.Error
	}
	return common.PredictedPrefix + r.Label
}

func (r result) write(w io.Writer, output string) error {
	if output == outputJSON {
		return json.NewEncoder(w).Encode(r)
	}
	_, err := fmt.Fprintln(w, r.line())
	return err
}

func failed(err error) result {
	kind := ml.Classify(err)
	return result{Error: kind.UserMessage(), Kind: kind.String(), code: kindExitCode(kind)}
}

// invalidInput is the result for a request that could not be decoded.
func invalidInput(err error) result {
	return result{
		Error: fmt.Sprintf("invalid input: %v", err),
		Kind:  ml.KindInput.String(),
		code:  common.ExitInput,
	}
}

// predictOne validates, optionally checks the reference catalog, assembles
// and classifies one input. Successful predictions are recorded.
func (a *app) predictOne(ctx context.Context, in traits.Input, source string, checkCatalog bool) result {
	if err := in.Validate(); err != nil {
		return failed(err)
	}
	if checkCatalog {
		if err := a.catalog.Check(in); err != nil {
			return failed(err)
		}
	}

	pred, err := a.service.Predict(ctx, traits.Assemble(in))
	if err != nil {
		return failed(err)
	}

	a.record(storage.PredictionRecord{
		Input:        in,
		Label:        pred.Label,
		ClassIndex:   pred.ClassIndex,
		ModelVersion: pred.ModelVersion,
		Source:       source,
	})

	idx := pred.ClassIndex
	return result{Label: pred.Label, ClassIndex: &idx, ModelVersion: pred.ModelVersion}
}

type predictOptions struct {
	input        traits.Input
	jsonInput    string
	checkCatalog bool
}

func newPredictCmd(root *rootOptions) *cobra.Command {
	opts := &predictOptions{}

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the conservation concern of one species",
		Long:  "Predicts the conservation concern category from trait flags, or from a JSON object given with --json. Numeric traits left unset are 0.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			in := opts.input
			if opts.jsonInput != "" {
				parsed, err := traits.ParseInput([]byte(opts.jsonInput))
				if err != nil {
					return emit(cmd, root.output, invalidInput(err))
				}
				in = parsed
			}

			if err := requireCatalog(opts.checkCatalog, root.settings.DatasetPath); err != nil {
				return err
			}

			a, err := newApp(ctx, root.settings, needs{model: true, dataset: opts.checkCatalog})
			if err != nil {
				return err
			}
			defer a.close()

			return emit(cmd, root.output, a.predictOne(ctx, in, "predict", opts.checkCatalog))
		},
	}

	f := cmd.Flags()
	in := &opts.input
	f.StringArrayVar((*[]string)(&in.Group), "group", nil, "taxonomic group (repeat for multiple)")
	f.StringArrayVar((*[]string)(&in.MigratoryStatus), "migratory-status", nil, "migratory status (repeat for multiple)")
	f.StringVar(&in.Diet, "diet", "", "diet type")
	f.StringVar(&in.HabitatType, "habitat-type", "", "habitat type")
	f.StringVar(&in.WLPASchedule, "wlpa-schedule", "", "Wildlife Protection Act schedule")
	f.StringVar(&in.IUCNStatus, "iucn-status", "", "IUCN Red List status")
	f.IntVar(&in.AnalysedLongTerm, "analysed-long-term", traits.DefaultNumeric, "sites analysed for the long-term trend")
	f.IntVar(&in.AnalysedCurrent, "analysed-current", traits.DefaultNumeric, "sites analysed for the current trend")
	f.Float64Var(&in.LongTermTrend, "long-term-trend", traits.DefaultNumeric, "long-term trend (percent)")
	f.Float64Var(&in.CurrentAnnualChange, "current-annual-change", traits.DefaultNumeric, "current annual change (percent)")
	f.StringVar(&in.LongTermStatus, "long-term-status", "", "long-term status")
	f.StringVar(&in.CurrentStatus, "current-status", "", "current status")
	f.StringVar(&in.DistributionStatus, "distribution-status", "", "distribution range size")
	f.StringVar(&in.EndemicityType, "endemicity-type", "", "endemicity type")
	f.StringVar(&in.BirdType, "bird-type", "", "bird type")
	f.StringVar(&opts.jsonInput, "json", "", "input as a JSON object instead of trait flags")
	f.BoolVar(&opts.checkCatalog, "check-catalog", false, "reject values not offered by the reference dataset")

	return cmd
}

func requireCatalog(check bool, datasetPath string) error {
	if check && datasetPath == "" {
		return fmt.Errorf("--check-catalog requires %s", common.EnvDatasetPath)
	}
	return nil
}

// emit writes r and turns a failed result into a silent exit code.
func emit(cmd *cobra.Command, output string, r result) error {
	if err := r.write(cmd.OutOrStdout(), output); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if r.code != common.ExitOK {
		return &exitError{code: r.code}
	}
	return nil
}
