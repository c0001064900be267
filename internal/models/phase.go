package models

// PhaseResult summarizes one run of a processing phase so the caller can
// log or alert on per-item outcomes.
type PhaseResult struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
	Reasons   []string
}

// Skip records an item that was passed over for a content reason rather
// than an error.
func (r *PhaseResult) Skip(reason string) {
	r.Processed++
	r.Skipped++
	r.Reasons = append(r.Reasons, reason)
}

// Fail records an item that errored.
func (r *PhaseResult) Fail(reason string) {
	r.Processed++
	r.Failed++
	r.Reasons = append(r.Reasons, reason)
}

// Succeed records an item that completed.
func (r *PhaseResult) Succeed() {
	r.Processed++
	r.Succeeded++
}
