package progression

import (
	"math"
	"time"

	"example.com/medifly/services/delivery/internal/models"
)

// Phase is the portion of its schedule a progression is currently in.
type Phase string

const (
	PhasePreparation Phase = "preparation"
	PhaseInTransit   Phase = "in-transit"
	PhaseCompleted   Phase = "completed"
)

// Snapshot is a point-in-time view of a progression, computed from the
// persisted schedule alone. The tracking view renders countdowns from
// this without owning any timers.
type Snapshot struct {
	Phase            Phase   `json:"phase"`
	ElapsedMinutes   float64 `json:"elapsed_minutes"`
	RemainingMinutes float64 `json:"remaining_minutes"`
	PercentComplete  float64 `json:"percent_complete"`
}

// Progress computes where a progression stands at the given instant.
func Progress(p models.DeliveryProgression, now time.Time) Snapshot {
	elapsed := math.Max(0, now.Sub(p.ApprovedAt).Minutes())
	total := p.TotalTime()

	snapshot := Snapshot{
		ElapsedMinutes:   elapsed,
		RemainingMinutes: math.Max(0, total-elapsed),
	}

	switch {
	case elapsed >= total:
		snapshot.Phase = PhaseCompleted
	case elapsed >= p.PreparationTime:
		snapshot.Phase = PhaseInTransit
	default:
		snapshot.Phase = PhasePreparation
	}

	if total > 0 {
		snapshot.PercentComplete = math.Min(100, elapsed/total*100)
	} else {
		snapshot.PercentComplete = 100
	}

	return snapshot
}
