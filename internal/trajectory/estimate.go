package trajectory

import (
	"time"

	"github.com/stratotrack/stratotrack/internal/atmosphere"
)

const estimateLayer = 100.0 // m

// Estimate is a quick flight duration estimate made without wind data.
type Estimate struct {
	Ascent  time.Duration
	Descent time.Duration
	Total   time.Duration

	// UncertaintyRatio is the expected relative error of Total.
	UncertaintyRatio float64
}

// EstimateFlight estimates ascent and descent durations from the specs in
// the standard atmosphere. Ascent is (burst - launch) / rate; descent is
// integrated layer by layer under terminal velocity.
func EstimateFlight(specs BalloonSpecs, launchAlt float64) (Estimate, error) {
	if err := specs.Validate(); err != nil {
		return Estimate{}, err
	}
	if launchAlt < 0 {
		launchAlt = 0
	}
	if specs.BurstAltitude <= launchAlt {
		return Estimate{}, ErrInvalidSpecs
	}

	ascent := seconds((specs.BurstAltitude - launchAlt) / specs.AscentRate)

	var descentSecs float64
	for alt := specs.BurstAltitude; alt > launchAlt; alt -= estimateLayer {
		layer := min(estimateLayer, alt-launchAlt)
		rho := atmosphere.Standard(alt - layer/2).Density
		descentSecs += layer / TerminalVelocity(specs, rho)
	}
	descent := seconds(descentSecs)

	ratio := 0.10
	if specs.AscentRate < 3 || specs.AscentRate > 8 {
		ratio += 0.10
	}
	if specs.BurstAltitude > 35000 {
		ratio += 0.10
	}
	if specs.DragDefaulted() {
		ratio += 0.05
	}

	return Estimate{
		Ascent:           ascent,
		Descent:          descent,
		Total:            ascent + descent,
		UncertaintyRatio: ratio,
	}, nil
}
