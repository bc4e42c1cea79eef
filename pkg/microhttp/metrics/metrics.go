//go:build !prometheus

package metrics

// Recorder is the no-op implementation linked when the repo is built
// without the "prometheus" tag. Every method is a zero-cost no-op so the
// core's call sites never need to branch on whether metrics are enabled.
type Recorder struct{}

// New returns the no-op Recorder.
func New() *Recorder { return &Recorder{} }

func (r *Recorder) ConnectionAccepted()        {}
func (r *Recorder) ConnectionClosed()          {}
func (r *Recorder) RequestHandled()            {}
func (r *Recorder) RequestError(reason string) {}
func (r *Recorder) IdleTimeout()               {}
func (r *Recorder) PipelineDepth(n int)        {}
