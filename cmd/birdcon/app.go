package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bird-conservation/internal/cfg"
	"bird-conservation/internal/common"
	"bird-conservation/internal/dashboard"
	"bird-conservation/internal/dataset"
	"bird-conservation/internal/metrics"
	"bird-conservation/internal/ml"
	"bird-conservation/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// needs selects which parts of the application a command opens.
type needs struct {
	model   bool
	dataset bool
	history bool // required; otherwise history is opened when DATA_PATH is set
	server  bool
}

// app is the application context built once per command invocation.
type app struct {
	settings cfg.Settings
	metrics  *metrics.Metrics
	wrapper  *metrics.MetricsWrapper
	service  *ml.Service
	table    *dataset.Table
	catalog  dataset.Catalog
	store    *storage.Store
	server   *dashboard.Server
}

func newApp(ctx context.Context, s cfg.Settings, n needs) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewWithRegistry(registry)

	a := &app{
		settings: s,
		metrics:  m,
		wrapper:  metrics.NewWrapper(m),
	}

	if n.model {
		if err := a.loadModel(ctx); err != nil {
			return nil, err
		}
	}

	if n.dataset {
		if err := a.loadDataset(); err != nil {
			return nil, err
		}
	} else if n.model && s.DatasetPath != "" {
		// Catalog checks are opt-in per call, so a broken dataset only warns.
		if err := a.loadDataset(); err != nil {
			log.Warn().Err(err).Str("dataset_path", s.DatasetPath).Msg("reference dataset unavailable")
		}
	}

	if err := a.openHistory(n.history); err != nil {
		a.close()
		return nil, err
	}

	if n.server && s.MetricsPort > 0 && a.service != nil {
		var history dashboard.HistoryCounter
		if a.store != nil {
			history = a.store
		}
		a.server = dashboard.NewServer(a.service, a.metrics, history, s.MetricsPort)
		if err := a.server.Start(); err != nil {
			a.close()
			return nil, fmt.Errorf("start ops server: %w", err)
		}
	}

	return a, nil
}

func (a *app) loadModel(ctx context.Context) error {
	c := a.settings.ModelConfig()

	if c.ModelPath == "" && c.InferenceURL == "" {
		v, err := activeVersion(a.settings.ModelsDir)
		if err != nil {
			log.Error().Err(err).Str("models_dir", a.settings.ModelsDir).Msg("no model to load")
			a.wrapper.ArtifactLoadedSet(false)
			return unavailableExit()
		}
		log.Info().Str("version", v.Version).Msg("using active model version")
		c = v.Config(c)
	}

	svc, err := ml.Load(ctx, c, a.wrapper)
	if err != nil {
		log.Error().Err(err).Str("model_path", c.ModelPath).Msg("classifier artifacts could not be loaded")
		return unavailableExit()
	}
	a.service = svc
	return nil
}

func activeVersion(modelsDir string) (ml.ModelVersion, error) {
	if _, err := os.Stat(modelsDir); err != nil {
		return ml.ModelVersion{}, fmt.Errorf("%w: model path is empty and models directory is missing: %w", ml.ErrArtifactUnavailable, err)
	}
	mm, err := ml.NewModelManager(modelsDir)
	if err != nil {
		return ml.ModelVersion{}, fmt.Errorf("%w: %w", ml.ErrArtifactUnavailable, err)
	}
	v, ok := mm.GetCurrentVersion()
	if !ok {
		return ml.ModelVersion{}, fmt.Errorf("%w: no active model version in %s", ml.ErrArtifactUnavailable, modelsDir)
	}
	return v, nil
}

func unavailableExit() error {
	return &exitError{code: common.ExitUnavailable, msg: ml.KindUnavailable.UserMessage()}
}

func (a *app) loadDataset() error {
	if a.settings.DatasetPath == "" {
		return fmt.Errorf("%s is required for this command", common.EnvDatasetPath)
	}

	table, err := dataset.Load(a.settings.DatasetPath, dataset.Options{Sheet: a.settings.DatasetSheet})
	if err != nil {
		return fmt.Errorf("load reference dataset: %w", err)
	}
	catalog, err := dataset.BuildCatalog(table)
	if err != nil {
		return fmt.Errorf("build option catalog: %w", err)
	}

	a.table = table
	a.catalog = catalog
	a.wrapper.DatasetRowsSet(table.Len())
	return nil
}

func (a *app) openHistory(required bool) error {
	if a.settings.DataPath == "" {
		if required {
			return fmt.Errorf("%s is required for this command", common.EnvDataPath)
		}
		return nil
	}

	store, err := storage.New(a.settings.DataPath)
	if err != nil {
		if required {
			return fmt.Errorf("open prediction history: %w", err)
		}
		log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
		return nil
	}
	a.store = store
	return nil
}

// record persists a completed prediction. Failures are logged only.
func (a *app) record(rec storage.PredictionRecord) {
	if a.store == nil {
		return
	}
	_, err := a.store.StorePrediction(rec)
	a.wrapper.HistoryWrite(err)
	if err != nil {
		log.Warn().Err(err).Msg("failed to store prediction")
	}
}

func (a *app) close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.server.Stop(ctx); err != nil {
			log.Warn().Err(err).Msg("ops server shutdown")
		}
		cancel()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("close prediction history")
		}
	}
}
