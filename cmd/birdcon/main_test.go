package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bird-conservation/internal/common"
	"bird-conservation/internal/ml"
	"bird-conservation/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	common.EnvConfigFile, common.EnvModelPath, common.EnvModelFormat, common.EnvCodecPath,
	common.EnvMetadataPath, common.EnvModelsDir, common.EnvPythonPath, common.EnvInferenceURL,
	common.EnvInferenceTimeout, common.EnvDatasetPath, common.EnvDatasetSheet, common.EnvDataPath,
	common.EnvMetricsPort, common.EnvLogLevel, common.EnvLogFormat,
}

type fixtures struct {
	model, codec, dir string
}

// setupEnv points the CLI at the frozen tree-ensemble fixture and runs the
// test from an empty working directory.
func setupEnv(t *testing.T) fixtures {
	t.Helper()
	model, err := filepath.Abs("../../internal/ml/testdata/model.json")
	require.NoError(t, err)
	codec, err := filepath.Abs("../../internal/ml/testdata/labels.json")
	require.NoError(t, err)

	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Setenv(common.EnvModelPath, model)
	t.Setenv(common.EnvCodecPath, codec)
	t.Setenv(common.EnvLogLevel, "error")

	dir := t.TempDir()
	chdir(t, dir)
	return fixtures{model: model, codec: codec, dir: dir}
}

func execute(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

var scenarioFlags = []string{
	"--group", "Passeriformes",
	"--migratory-status", "Resident",
	"--diet", "Omnivore",
	"--habitat-type", "Forest",
	"--wlpa-schedule", "Schedule IV",
	"--iucn-status", "Least Concern",
	"--analysed-long-term", "50",
	"--analysed-current", "45",
	"--long-term-trend", "5",
	"--current-annual-change", "1",
	"--long-term-status", "Stable",
	"--current-status", "Stable",
	"--distribution-status", "Widespread",
	"--endemicity-type", "Non-endemic",
	"--bird-type", "Resident",
}

const scenarioJSON = `{"group":["Passeriformes"],"migratory_status":["Resident"],"diet":"Omnivore","habitat_type":"Forest","wlpa_schedule":"Schedule IV","iucn_status":"Least Concern","analysed_long_term":50,"analysed_current":45,"long_term_trend":5,"current_annual_change":1,"long_term_status":"Stable","current_status":"Stable","distribution_status":"Widespread","endemicity_type":"Non-endemic","bird_type":"Resident"}`

func withFlag(flags []string, name, value string) []string {
	out := append([]string(nil), flags...)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == name {
			out[i+1] = value
		}
	}
	return out
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := newRootCmd()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"predict", "batch", "interactive", "summary", "catalog", "history", "models"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestPredictCommand_NumericDefaults(t *testing.T) {
	cmd := newPredictCmd(&rootOptions{})
	for _, name := range []string{"analysed-long-term", "analysed-current", "long-term-trend", "current-annual-change"} {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, "predict should have --%s", name)
		assert.Equal(t, "0", flag.DefValue)
	}
}

func TestPredictScenario(t *testing.T) {
	setupEnv(t)

	code, stdout, _ := execute(t, "", append([]string{"predict"}, scenarioFlags...)...)
	assert.Equal(t, common.ExitOK, code)
	assert.Equal(t, "Predicted Conservation Concern: Low\n", stdout)
}

func TestPredictFromJSON(t *testing.T) {
	setupEnv(t)

	code, stdout, _ := execute(t, "", "predict", "-o", "json", "--json", scenarioJSON)
	require.Equal(t, common.ExitOK, code)

	var r struct {
		Label        string `json:"label"`
		ClassIndex   *int   `json:"class_index"`
		ModelVersion string `json:"model_version"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &r))
	assert.Equal(t, "Low", r.Label)
	require.NotNil(t, r.ClassIndex)
	assert.Equal(t, 1, *r.ClassIndex)
	assert.Equal(t, "2025.06-xgb", r.ModelVersion)
}

func TestPredictFailures(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		env      map[string]string
		wantCode int
		stdout   string
		stderr   string
	}{
		{
			name:     "unknown category",
			args:     append([]string{"predict"}, withFlag(scenarioFlags, "--iucn-status", "Extinct-In-The-Wild-Unseen-Category")...),
			wantCode: common.ExitInput,
			stdout:   "Error: your input isn't supported by the trained model\n",
		},
		{
			name:     "out of range",
			args:     append([]string{"predict"}, withFlag(scenarioFlags, "--long-term-trend", "500")...),
			wantCode: common.ExitInput,
			stdout:   "Error: your input isn't supported by the trained model\n",
		},
		{
			name:     "undecodable json",
			args:     []string{"predict", "--json", `{"iucn":"typo"}`},
			wantCode: common.ExitInput,
			stdout:   "Error: invalid input: ",
		},
		{
			name:     "missing model",
			args:     append([]string{"predict"}, scenarioFlags...),
			env:      map[string]string{common.EnvModelPath: "/nonexistent/model.json"},
			wantCode: common.ExitUnavailable,
			stderr:   "Error: the system is currently unavailable",
		},
		{
			name:     "no model and no active version",
			args:     append([]string{"predict"}, scenarioFlags...),
			env:      map[string]string{common.EnvModelPath: ""},
			wantCode: common.ExitUnavailable,
			stderr:   "Error: the system is currently unavailable",
		},
		{
			name:     "catalog check without dataset",
			args:     append([]string{"predict", "--check-catalog"}, scenarioFlags...),
			wantCode: common.ExitUsage,
			stderr:   "--check-catalog requires DATASET_PATH",
		},
		{
			name:     "bad config",
			args:     append([]string{"predict"}, scenarioFlags...),
			env:      map[string]string{common.EnvModelFormat: "onnx"},
			wantCode: common.ExitUsage,
			stderr:   "model format must be one of",
		},
		{
			name:     "unknown flag",
			args:     []string{"predict", "--colour", "red"},
			wantCode: common.ExitUsage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			code, stdout, stderr := execute(t, "", tt.args...)
			assert.Equal(t, tt.wantCode, code)
			if tt.stdout != "" {
				assert.True(t, strings.HasPrefix(stdout, tt.stdout), "stdout %q", stdout)
			} else {
				assert.NotContains(t, stdout, common.PredictedPrefix)
			}
			if tt.stderr != "" {
				assert.Contains(t, stderr, tt.stderr)
			}
		})
	}
}

func TestBatch(t *testing.T) {
	f := setupEnv(t)

	unknown := strings.Replace(scenarioJSON, "Least Concern", "Unseen", 1)
	path := filepath.Join(f.dir, "inputs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(scenarioJSON+"\n"+unknown+"\n"+scenarioJSON+"\n"), 0o600))

	code, stdout, _ := execute(t, "", "batch", path)
	assert.Equal(t, common.ExitInput, code, "exit code of the worst failure")
	assert.Equal(t, []string{
		"Predicted Conservation Concern: Low",
		"Error: your input isn't supported by the trained model",
		"Predicted Conservation Concern: Low",
	}, strings.Split(strings.TrimSpace(stdout), "\n"))
}

func TestBatchFromStdinYAML(t *testing.T) {
	setupEnv(t)

	yamlInputs := `
- group: [Passeriformes]
  migratory_status: [Resident]
  diet: Omnivore
  habitat_type: Forest
  wlpa_schedule: Schedule IV
  iucn_status: Least Concern
  analysed_long_term: 50
  analysed_current: 45
  long_term_trend: 5
  current_annual_change: 1
  long_term_status: Stable
  current_status: Stable
  distribution_status: Widespread
  endemicity_type: Non-endemic
  bird_type: Resident
`
	code, stdout, _ := execute(t, yamlInputs, "batch", "-o", "json", "-")
	require.Equal(t, common.ExitOK, code)
	assert.Contains(t, stdout, `"index":1`)
	assert.Contains(t, stdout, `"label":"Low"`)
}

func TestBatchUnreadableFile(t *testing.T) {
	setupEnv(t)

	code, _, stderr := execute(t, "", "batch", "missing.json")
	assert.Equal(t, common.ExitUsage, code)
	assert.Contains(t, stderr, "read batch file")
}

func TestInteractive(t *testing.T) {
	setupEnv(t)

	stdin := scenarioJSON + "\n\n" + "not json\n" + scenarioJSON + "\n"
	code, stdout, _ := execute(t, stdin, "interactive")
	assert.Equal(t, common.ExitOK, code)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3, "blank lines are skipped")
	assert.Equal(t, "Predicted Conservation Concern: Low", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Error: invalid input"))
	assert.Equal(t, "Predicted Conservation Concern: Low", lines[2])
}

func TestPredictionsAreRecorded(t *testing.T) {
	f := setupEnv(t)
	t.Setenv(common.EnvDataPath, filepath.Join(f.dir, "data"))

	code, _, _ := execute(t, "", append([]string{"predict"}, scenarioFlags...)...)
	require.Equal(t, common.ExitOK, code)
	code, _, _ = execute(t, "", append([]string{"predict"}, withFlag(scenarioFlags, "--iucn-status", "Unseen")...)...)
	require.Equal(t, common.ExitInput, code)

	code, stdout, _ := execute(t, "", "history", "-o", "json")
	require.Equal(t, common.ExitOK, code)

	var records []storage.PredictionRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 1, "failed predictions are not recorded")
	assert.Equal(t, "Low", records[0].Label)
	assert.Equal(t, "predict", records[0].Source)
	assert.Equal(t, "2025.06-xgb", records[0].ModelVersion)
	assert.NotEmpty(t, records[0].ID)

	code, stdout, _ = execute(t, "", "history")
	require.Equal(t, common.ExitOK, code)
	assert.Contains(t, stdout, "LABEL")
	assert.Contains(t, stdout, "Least Concern")
}

func TestHistoryRequiresDataPath(t *testing.T) {
	setupEnv(t)

	code, _, stderr := execute(t, "", "history")
	assert.Equal(t, common.ExitUsage, code)
	assert.Contains(t, stderr, "DATA_PATH is required")
}

const datasetCSV = `species,group,migratory_status,diet,habitat_type,wlpa_schedule,iucn_status,analysed_long_term,analysed_current,long_term_trend,current_annual_change,long_term_status,current_status,distribution_status,endemicity_type,bird_type
House Sparrow,Passeriformes,Resident,Omnivore,Forest,Schedule IV,Least Concern,50,45,5,1,Stable,Stable,Widespread,Non-endemic,Resident
Indian Vulture,Accipitriformes,Resident,Carnivore,Grassland,Schedule I,Critically Endangered,120,80,-95.5,-3.2,Rapid Decline,Declining,Restricted,Non-endemic,Resident
Bar-headed Goose,Anseriformes,Migratory,Herbivore,Wetland,Schedule IV,Least Concern,300,310,12,0.5,Stable,Increasing,Widespread,Non-endemic,Migrant
`

func withDataset(t *testing.T, f fixtures) {
	t.Helper()
	path := filepath.Join(f.dir, "birds.csv")
	require.NoError(t, os.WriteFile(path, []byte(datasetCSV), 0o600))
	t.Setenv(common.EnvDatasetPath, path)
}

func TestPredictCheckCatalog(t *testing.T) {
	f := setupEnv(t)
	withDataset(t, f)

	code, stdout, _ := execute(t, "", append([]string{"predict", "--check-catalog"}, scenarioFlags...)...)
	assert.Equal(t, common.ExitOK, code)
	assert.Equal(t, "Predicted Conservation Concern: Low\n", stdout)

	// Known to the model but absent from the reference dataset
	code, stdout, _ = execute(t, "", append([]string{"predict", "--check-catalog"}, withFlag(scenarioFlags, "--iucn-status", "Vulnerable")...)...)
	assert.Equal(t, common.ExitInput, code)
	assert.Equal(t, "Error: your input isn't supported by the trained model\n", stdout)
}

func TestSummary(t *testing.T) {
	f := setupEnv(t)
	withDataset(t, f)

	code, stdout, _ := execute(t, "", "summary", "-o", "json", "--migratory-status", "Resident")
	require.Equal(t, common.ExitOK, code)

	var s struct {
		Rows   int `json:"rows"`
		Panels []struct {
			Title string `json:"title"`
		} `json:"panels"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &s))
	assert.Equal(t, 2, s.Rows)
	require.Len(t, s.Panels, 8)
	assert.Equal(t, "IUCN Status Distribution", s.Panels[0].Title)

	code, stdout, _ = execute(t, "", "summary")
	require.Equal(t, common.ExitOK, code)
	assert.Contains(t, stdout, "Diet Type Distribution")
}

func TestCatalog(t *testing.T) {
	f := setupEnv(t)
	withDataset(t, f)

	code, stdout, _ := execute(t, "", "catalog", "--field", "iucn_status")
	require.Equal(t, common.ExitOK, code)
	assert.Equal(t, "Least Concern\nCritically Endangered\n", stdout)

	code, _, stderr := execute(t, "", "catalog", "--field", "wingspan")
	assert.Equal(t, common.ExitUsage, code)
	assert.Contains(t, stderr, "unknown field")
}

func TestSummaryRequiresDataset(t *testing.T) {
	setupEnv(t)

	code, _, stderr := execute(t, "", "summary")
	assert.Equal(t, common.ExitUsage, code)
	assert.Contains(t, stderr, "DATASET_PATH is required")
}

func TestModelsActiveVersionIsLoaded(t *testing.T) {
	f := setupEnv(t)
	modelsDir := filepath.Join(f.dir, "models")
	t.Setenv(common.EnvModelsDir, modelsDir)

	code, stdout, stderr := execute(t, "", "models", "add", "--version", "v1", "--model", f.model, "--codec", f.codec, "--activate")
	require.Equal(t, common.ExitOK, code, stderr)
	assert.Equal(t, "registered v1\n", stdout)

	code, _, _ = execute(t, "", "models", "activate", "v9")
	assert.Equal(t, common.ExitUsage, code)

	code, stdout, _ = execute(t, "", "models", "list", "-o", "json")
	require.Equal(t, common.ExitOK, code)
	var versions []ml.ModelVersion
	require.NoError(t, json.Unmarshal([]byte(stdout), &versions))
	require.Len(t, versions, 1)
	assert.True(t, versions[0].IsActive)

	// Without MODEL_PATH the active version is used
	t.Setenv(common.EnvModelPath, "")
	t.Setenv(common.EnvCodecPath, "")
	code, stdout, _ = execute(t, "", append([]string{"predict"}, scenarioFlags...)...)
	assert.Equal(t, common.ExitOK, code)
	assert.Equal(t, "Predicted Conservation Concern: Low\n", stdout)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, common.ExitOK, exitCode(nil))
	assert.Equal(t, common.ExitInput, exitCode(&exitError{code: common.ExitInput}))
	assert.Equal(t, common.ExitUnavailable, exitCode(ml.ErrArtifactUnavailable))
	assert.Equal(t, common.ExitInternal, exitCode(&ml.CodecRangeError{Index: 7, Size: 3}))
	assert.Equal(t, common.ExitUsage, exitCode(assert.AnError))

	assert.Equal(t, common.ExitInternal, kindExitCode(ml.KindInternal))
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
