package metrics

// MetricsWrapper adapts Metrics to the narrow interfaces the ml service and
// the CLI report through.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc() {
	w.m.PredictionsTotal.Inc()
}

func (w *MetricsWrapper) FailuresInc(kind string) {
	w.m.FailuresTotal.WithLabelValues(kind).Inc()
}

func (w *MetricsWrapper) LatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *MetricsWrapper) ModelAgeSet(seconds float64) {
	w.m.ModelAge.Set(seconds)
}

func (w *MetricsWrapper) ArtifactLoadedSet(loaded bool) {
	if loaded {
		w.m.ArtifactLoaded.Set(1)
		return
	}
	w.m.ArtifactLoaded.Set(0)
}

func (w *MetricsWrapper) DatasetRowsSet(rows int) {
	w.m.DatasetRows.Set(float64(rows))
}

// HistoryWrite records the outcome of one history write.
func (w *MetricsWrapper) HistoryWrite(err error) {
	if err != nil {
		w.m.HistoryErrors.Inc()
		return
	}
	w.m.HistoryWrites.Inc()
}
