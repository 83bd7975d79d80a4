package publisher

import (
	"time"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
)

// TargetReport is the outcome of one target's cycle.
type TargetReport struct {
	Target models.Target
	// Stage is the last stage reached: StageDone, StageSkipped or the
	// stage that failed.
	Stage models.Stage
	// Resigned counts artifacts signed during this cycle.
	Resigned int
	// Architectures lists the Yum architectures whose metadata changed.
	Architectures []string
	Duration      time.Duration
	Err           error
}

// Published reports whether the cycle reached the public endpoint.
func (r TargetReport) Published() bool {
	return r.Err == nil && r.Stage == models.StageDone
}
