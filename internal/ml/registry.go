package ml

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// FormatAuto selects a backend from the configuration.
const FormatAuto = "auto"

// Config names the artifacts to load.
type Config struct {
	ModelPath    string
	Format       string
	CodecPath    string
	MetadataPath string
	PythonPath   string
	InferenceURL string
	Timeout      time.Duration
}

type opener func(ctx context.Context, c Config) (Classifier, error)

var openers = map[string]opener{
	FormatTreeEnsemble: func(_ context.Context, c Config) (Classifier, error) {
		return LoadTreeEnsemble(c.ModelPath)
	},
	FormatProcess: func(ctx context.Context, c Config) (Classifier, error) {
		return NewProcessClassifier(ctx, c.ModelPath, c.PythonPath, c.Timeout)
	},
	FormatRemote: func(ctx context.Context, c Config) (Classifier, error) {
		return NewRemoteClassifier(ctx, c.InferenceURL, c.Timeout)
	},
}

// Formats lists the supported backend names.
func Formats() []string {
	return []string{FormatAuto, FormatTreeEnsemble, FormatProcess, FormatRemote}
}

// ResolveFormat turns "auto" or an empty format into a concrete backend.
func ResolveFormat(c Config) (string, error) {
	format := strings.ToLower(strings.TrimSpace(c.Format))
	if format != "" && format != FormatAuto {
		if _, ok := openers[format]; !ok {
			return "", fmt.Errorf("unknown model format %q", c.Format)
		}
		return format, nil
	}

	if c.ModelPath == "" && c.InferenceURL != "" {
		return FormatRemote, nil
	}
	switch strings.ToLower(filepath.Ext(c.ModelPath)) {
	case ".json":
		return FormatTreeEnsemble, nil
	case ".pkl", ".joblib", ".pickle":
		return FormatProcess, nil
	case "":
		return "", fmt.Errorf("no model path or inference URL configured")
	default:
		return "", fmt.Errorf("cannot infer model format from %q", c.ModelPath)
	}
}

// OpenClassifier resolves the format and opens the classifier.
func OpenClassifier(ctx context.Context, c Config) (Classifier, string, error) {
	format, err := ResolveFormat(c)
	if err != nil {
		return nil, "", unavailable("model", c.ModelPath, err)
	}
	cl, err := openers[format](ctx, c)
	if err != nil {
		return nil, format, err
	}
	return cl, format, nil
}
