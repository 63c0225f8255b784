package metrics

// Wrapper adapts Metrics to the narrow interfaces the ml and api packages
// consume, avoiding a circular import between those packages and prometheus
// wiring details.
type Wrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) PredictionsInc()       { w.m.PredictionsTotal.Inc() }
func (w *Wrapper) PredictionErrorsInc()  { w.m.PredictionErrors.Inc() }
func (w *Wrapper) FallbackUseInc()       { w.m.FallbackUse.Inc() }
func (w *Wrapper) SchemaMismatchesInc()  { w.m.SchemaMismatches.Inc() }
func (w *Wrapper) ValidationErrorsInc()  { w.m.ValidationErrors.Inc() }
func (w *Wrapper) RateLimitedInc()       { w.m.RateLimited.Inc() }
func (w *Wrapper) RequestsInc()          { w.m.RequestsTotal.Inc() }
func (w *Wrapper) BatchRequestsInc()     { w.m.BatchRequests.Inc() }
func (w *Wrapper) HighRiskDecisionsInc() { w.m.HighRiskDecisions.Inc() }
func (w *Wrapper) RejectionsInc()        { w.m.Rejections.Inc() }

func (w *Wrapper) ScoreObserve(v float64)            { w.m.PredictionScores.Observe(v) }
func (w *Wrapper) InferenceLatencyObserve(v float64) { w.m.InferenceLatency.Observe(v) }
func (w *Wrapper) RequestDurationObserve(v float64)  { w.m.RequestDuration.Observe(v) }
func (w *Wrapper) ModelAgeSet(v float64)             { w.m.ModelAge.Set(v) }
