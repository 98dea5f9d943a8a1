package scoring

// Engine scores requests against a fixed threshold and model version.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	threshold    float64
	modelVersion string
}

// NewEngine returns an Engine bound to threshold and modelVersion.
func NewEngine(threshold float64, modelVersion string) *Engine {
	return &Engine{threshold: threshold, modelVersion: modelVersion}
}

// Threshold returns the configured malicious threshold.
func (e *Engine) Threshold() float64 { return e.threshold }

// ModelVersion returns the version string reported to callers.
func (e *Engine) ModelVersion() string { return e.modelVersion }

// Evaluate scores host and path. The label is derived from the unrounded score.
func (e *Engine) Evaluate(host, path string) Result {
	s := Score(host, path)
	return Result{
		Score:     s,
		Label:     Label(s, e.threshold),
		Threshold: e.threshold,
	}
}
