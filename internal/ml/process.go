package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"bird-conservation/internal/traits"

	"github.com/rs/zerolog/log"
)

// FormatProcess is the format tag of a pickled pipeline evaluated by the
// Python helper.
const FormatProcess = "process"

const helperScriptName = "birdcon_inference.py"

// ProcessClassifier evaluates a persisted scikit-learn/XGBoost pipeline by
// running the Python helper once per prediction. The pipeline applies its
// own training-time encoding.
type ProcessClassifier struct {
	modelPath  string
	pythonPath string
	scriptPath string
	timeout    time.Duration
}

type processRequest struct {
	Columns []string       `json:"columns"`
	Record  map[string]any `json:"record"`
}

// processResponse is shared by the helper's predict and classes modes and by
// the remote endpoint.
type processResponse struct {
	Prediction *int     `json:"prediction,omitempty"`
	Classes    []string `json:"classes,omitempty"`
	Error      string   `json:"error,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Field      string   `json:"field,omitempty"`
	Value      string   `json:"value,omitempty"`
}

const responseKindUnknownCategory = "unknown_category"

func (r processResponse) failure() error {
	if r.Kind == responseKindUnknownCategory {
		return &traits.UnknownCategoryError{Field: r.Field, Value: r.Value, Detail: r.Error}
	}
	if r.Error != "" {
		return errors.New(r.Error)
	}
	return nil
}

// NewProcessClassifier checks that the model file exists and that a Python
// with joblib and pandas is reachable. pythonPath may be empty to search the
// usual locations.
func NewProcessClassifier(ctx context.Context, modelPath, pythonPath string, timeout time.Duration) (*ProcessClassifier, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, unavailable("model", modelPath, err)
	}

	if pythonPath == "" {
		found, err := findPython(ctx)
		if err != nil {
			return nil, unavailable("model", modelPath, err)
		}
		pythonPath = found
	}

	scriptPath, err := ensureHelperScript(filepath.Dir(modelPath))
	if err != nil {
		return nil, unavailable("model", modelPath, fmt.Errorf("write inference helper: %w", err))
	}

	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	p := &ProcessClassifier{
		modelPath:  modelPath,
		pythonPath: pythonPath,
		scriptPath: scriptPath,
		timeout:    timeout,
	}

	if err := p.probe(ctx); err != nil {
		return nil, unavailable("model", modelPath, err)
	}

	log.Info().
		Str("model_path", modelPath).
		Str("python_path", pythonPath).
		Str("script_path", scriptPath).
		Msg("process classifier ready")
	return p, nil
}

// Predict sends the record to the helper and returns its class index.
func (p *ProcessClassifier) Predict(ctx context.Context, rec traits.Record) (int, error) {
	req := processRequest{Columns: traits.FieldNames(), Record: rec.Map()}
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal prediction request: %w", err)
	}

	resp, err := p.run(ctx, body, "predict", p.modelPath)
	if err != nil {
		return 0, err
	}
	if resp.Prediction == nil {
		return 0, unavailable("model", p.modelPath, fmt.Errorf("helper returned no prediction"))
	}
	return *resp.Prediction, nil
}

// LoadPickledCodec reads the classes of a pickled LabelEncoder through the
// helper.
func (p *ProcessClassifier) LoadPickledCodec(ctx context.Context, path string) (*LabelCodec, error) {
	resp, err := p.run(ctx, nil, "classes", path)
	if err != nil {
		return nil, unavailable("label codec", path, err)
	}
	codec, err := NewLabelCodec(resp.Classes)
	if err != nil {
		return nil, unavailable("label codec", path, err)
	}
	return codec, nil
}

func (p *ProcessClassifier) run(ctx context.Context, stdin []byte, args ...string) (processResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.pythonPath, append([]string{p.scriptPath}, args...)...)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	var resp processResponse
	decodeErr := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp)

	// a structured answer wins over the exit status
	if decodeErr == nil {
		if err := resp.failure(); err != nil {
			if errors.Is(err, traits.ErrUnknownCategory) {
				return resp, err
			}
			return resp, unavailable("model", p.modelPath, err)
		}
		if runErr == nil {
			return resp, nil
		}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return resp, unavailable("model", p.modelPath, fmt.Errorf("inference timed out after %v", p.timeout))
	}

	log.Error().
		Err(runErr).
		Str("python_path", p.pythonPath).
		Str("script_path", p.scriptPath).
		Str("stderr", stderr.String()).
		Str("stdout", stdout.String()).
		Msg("inference helper failed")

	if runErr != nil {
		return resp, unavailable("model", p.modelPath, fmt.Errorf("inference helper: %w, stderr: %s", runErr, strings.TrimSpace(stderr.String())))
	}
	return resp, unavailable("model", p.modelPath, fmt.Errorf("parse helper response: %w", decodeErr))
}

func (p *ProcessClassifier) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.pythonPath, "-c", "import joblib, pandas")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("python at %s cannot import joblib and pandas: %w: %s", p.pythonPath, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func findPython(ctx context.Context) (string, error) {
	var candidates []string

	if venvPath := os.Getenv("VIRTUAL_ENV"); venvPath != "" {
		candidates = append(candidates,
			filepath.Join(venvPath, "bin", "python3"),
			filepath.Join(venvPath, "bin", "python"),
			filepath.Join(venvPath, "Scripts", "python.exe"),
		)
	}

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		for _, root := range []string{execDir, filepath.Dir(execDir)} {
			candidates = append(candidates,
				filepath.Join(root, "venv", "bin", "python3"),
				filepath.Join(root, ".venv", "bin", "python3"),
			)
		}
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			candidates = append(candidates, path)
		}
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		cmd := exec.CommandContext(ctx, candidate, "-c", "import sys, joblib, pandas; print('Python', sys.version)")
		if output, err := cmd.Output(); err == nil && strings.Contains(string(output), "Python 3") {
			log.Debug().Str("python_path", candidate).Msg("using python")
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no Python 3 with joblib and pandas found; set PYTHON_PATH")
}

// ensureHelperScript writes the helper next to the model, or into the temp
// directory when the model directory is read-only.
func ensureHelperScript(modelDir string) (string, error) {
	for _, dir := range []string{modelDir, os.TempDir()} {
		path := filepath.Join(dir, helperScriptName)
		if existing, err := os.ReadFile(path); err == nil && string(existing) == inferenceScript {
			return path, nil
		}
		if err := createInferenceScript(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no writable location for %s", helperScriptName)
}

func createInferenceScript(scriptPath string) error {
	return os.WriteFile(scriptPath, []byte(inferenceScript), 0o755)
}

const inferenceScript = `#!/usr/bin/env python3
"""Inference helper for the bird conservation predictor.

predict <model>   reads {"columns": [...], "record": {...}} from stdin
classes <encoder> prints the classes of a fitted LabelEncoder
"""
import json
import sys


def emit(obj, code=0):
    print(json.dumps(obj))
    sys.exit(code)


try:
    import joblib
    import pandas as pd
except ImportError as exc:
    emit({"error": "missing dependency: %s" % exc, "kind": "dependency"}, 1)


def predict(model_path):
    request = json.load(sys.stdin)
    frame = pd.DataFrame([request["record"]], columns=request["columns"])
    model = joblib.load(model_path)
    try:
        prediction = model.predict(frame)[0]
    except ValueError as exc:
        message = str(exc)
        if "unknown categor" in message.lower():
            emit({"error": message, "kind": "unknown_category"}, 2)
        raise
    emit({"prediction": int(prediction)})


def classes(encoder_path):
    encoder = joblib.load(encoder_path)
    emit({"classes": [str(c) for c in encoder.classes_]})


def main():
    if len(sys.argv) != 3 or sys.argv[1] not in ("predict", "classes"):
        emit({"error": "usage: birdcon_inference.py predict|classes <path>"}, 1)
    try:
        if sys.argv[1] == "predict":
            predict(sys.argv[2])
        else:
            classes(sys.argv[2])
    except SystemExit:
        raise
    except Exception as exc:
        emit({"error": str(exc), "kind": type(exc).__name__}, 1)


if __name__ == "__main__":
    main()
`
