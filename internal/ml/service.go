package ml

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bird-conservation/internal/traits"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines the metrics the service reports.
type MetricsInterface interface {
	PredictionsInc()
	FailuresInc(kind string)
	LatencyObserve(seconds float64)
	ModelAgeSet(seconds float64)
	ArtifactLoadedSet(loaded bool)
}

// Prediction is the outcome of one successful predict call.
type Prediction struct {
	Label        string `json:"label"`
	ClassIndex   int    `json:"class_index"`
	ModelVersion string `json:"model_version"`
}

// Service is the process-wide prediction context: a classifier paired with
// its label codec. It is never mutated after construction, so one instance
// can be shared by any number of callers without locking.
type Service struct {
	classifier Classifier
	codec      *LabelCodec
	metadata   *ModelMetadata
	format     string
	modelPath  string
	loadedAt   time.Time
	metrics    MetricsInterface
}

// ModelInfo summarises the loaded artifacts.
type ModelInfo struct {
	Version   string    `json:"version"`
	Format    string    `json:"format"`
	ModelPath string    `json:"model_path,omitempty"`
	Classes   []string  `json:"classes"`
	Features  []string  `json:"features"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// Load opens classifier, metadata and codec described by c. Any failure is
// an ErrArtifactUnavailable and the caller must not serve predictions.
func Load(ctx context.Context, c Config, metrics MetricsInterface) (*Service, error) {
	svc, err := load(ctx, c, metrics)
	if metrics != nil {
		metrics.ArtifactLoadedSet(err == nil)
	}
	if err != nil {
		return nil, err
	}

	if info, err := os.Stat(c.ModelPath); err == nil && metrics != nil {
		metrics.ModelAgeSet(time.Since(info.ModTime()).Seconds())
	}

	log.Info().
		Str("format", svc.format).
		Str("model_path", c.ModelPath).
		Str("model_version", svc.ModelVersion()).
		Strs("classes", svc.codec.Classes()).
		Msg("classifier loaded")
	return svc, nil
}

func load(ctx context.Context, c Config, metrics MetricsInterface) (*Service, error) {
	cl, format, err := OpenClassifier(ctx, c)
	if err != nil {
		return nil, err
	}

	md, err := loadModelMetadata(c.MetadataPath, c.ModelPath)
	if err != nil {
		return nil, err
	}

	codec, err := loadCodec(ctx, c, cl, md)
	if err != nil {
		return nil, err
	}

	svc, err := NewService(cl, codec, md, metrics)
	if err != nil {
		return nil, err
	}
	svc.format = format
	svc.modelPath = c.ModelPath
	return svc, nil
}

func loadCodec(ctx context.Context, c Config, cl Classifier, md *ModelMetadata) (*LabelCodec, error) {
	if c.CodecPath == "" {
		if md != nil && len(md.Classes) > 0 {
			codec, err := NewLabelCodec(md.Classes)
			if err != nil {
				return nil, unavailable("label codec", "metadata", err)
			}
			return codec, nil
		}
		return nil, unavailable("label codec", "", fmt.Errorf("no codec path configured and metadata lists no classes"))
	}

	switch strings.ToLower(filepath.Ext(c.CodecPath)) {
	case ".pkl", ".joblib", ".pickle":
		pc, ok := cl.(*ProcessClassifier)
		if !ok {
			return nil, unavailable("label codec", c.CodecPath, fmt.Errorf("pickled codecs need the %s backend", FormatProcess))
		}
		return pc.LoadPickledCodec(ctx, c.CodecPath)
	default:
		return LoadLabelCodec(c.CodecPath)
	}
}

// NewService pairs an already opened classifier with its codec.
func NewService(cl Classifier, codec *LabelCodec, md *ModelMetadata, metrics MetricsInterface) (*Service, error) {
	if cl == nil {
		return nil, unavailable("model", "", fmt.Errorf("no classifier"))
	}
	if codec == nil {
		return nil, unavailable("label codec", "", fmt.Errorf("no codec"))
	}
	if cc, ok := cl.(ClassCounter); ok && cc.NumClasses() != codec.Len() {
		return nil, unavailable("model", "", fmt.Errorf("classifier emits %d classes but codec has %d labels", cc.NumClasses(), codec.Len()))
	}
	if md != nil {
		if err := md.check(codec); err != nil {
			return nil, unavailable("metadata", "", err)
		}
	}

	return &Service{
		classifier: cl,
		codec:      codec,
		metadata:   md,
		loadedAt:   time.Now(),
		metrics:    metrics,
	}, nil
}

// Predict classifies one record and decodes the class index to its label.
// Every failure is returned to the caller; no default label is substituted.
func (s *Service) Predict(ctx context.Context, rec traits.Record) (Prediction, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.LatencyObserve(time.Since(start).Seconds())
		}
	}()

	idx, err := s.classifier.Predict(ctx, rec)
	if err != nil {
		s.fail(err)
		return Prediction{}, err
	}

	label, err := s.codec.Decode(idx)
	if err != nil {
		log.Error().
			Err(err).
			Int("class_index", idx).
			Int("codec_size", s.codec.Len()).
			Str("model_version", s.ModelVersion()).
			Msg("classifier and label codec disagree")
		s.fail(err)
		return Prediction{}, err
	}

	if s.metrics != nil {
		s.metrics.PredictionsInc()
	}

	log.Debug().
		Int("class_index", idx).
		Str("label", label).
		Msg("prediction complete")

	return Prediction{Label: label, ClassIndex: idx, ModelVersion: s.ModelVersion()}, nil
}

func (s *Service) fail(err error) {
	if s.metrics != nil {
		s.metrics.FailuresInc(Classify(err).String())
	}
}

// Codec returns the label codec.
func (s *Service) Codec() *LabelCodec { return s.codec }

// ModelVersion prefers the metadata version over the artifact's own tag.
func (s *Service) ModelVersion() string {
	if s.metadata != nil && s.metadata.Version != "" {
		return s.metadata.Version
	}
	if v, ok := s.classifier.(Versioned); ok && v.Version() != "" {
		return v.Version()
	}
	return "unknown"
}

// Info describes the loaded artifacts.
func (s *Service) Info() ModelInfo {
	info := ModelInfo{
		Version:   s.ModelVersion(),
		Format:    s.format,
		ModelPath: s.modelPath,
		Classes:   s.codec.Classes(),
		Features:  traits.FieldNames(),
		LoadedAt:  s.loadedAt,
	}
	if s.metadata != nil {
		info.TrainedAt = s.metadata.TrainedAt
		info.Accuracy = s.metadata.Accuracy
	}
	return info
}
