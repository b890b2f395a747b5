// Package interpolation estimates weather values at an arbitrary time and
// altitude from scattered samples.
package interpolation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/stratotrack/stratotrack/internal/geo"
)

// ErrInsufficientData is reported in Result.Err when no sample lies within tolerance.
var ErrInsufficientData = errors.New("insufficient data for interpolation")

// Method is an interpolation method.
type Method string

const (
	Linear Method = "linear"
	Cubic  Method = "cubic"
	Spline Method = "spline"
)

// Result method names.
const (
	MethodExact          = "exact"
	MethodLinear         = "linear"
	MethodExtrapolation  = "extrapolation"
	MethodLinearFallback = "linear_fallback"
	MethodCubic          = "cubic"
	MethodSpline         = "spline"
	MethodNone           = "none"
)

const (
	exactTime     = 60 * time.Second
	exactAltitude = 10.0

	confidenceTimeScale     = 24 * time.Hour
	confidenceAltitudeScale = 5000.0
	minConfidence           = 0.1
	extrapolationConfidence = 0.3
)

// Point is one sample: a set of named values at a time and altitude.
type Point struct {
	Timestamp time.Time
	Altitude  float64
	Values    map[string]float64
}

// Result is an interpolated value set. A result without data carries nil
// Values, zero confidence and ErrInsufficientData.
type Result struct {
	Values     map[string]float64
	Confidence float64
	Method     string

	// Used and Discarded count samples inside and outside tolerance.
	Used      int
	Discarded int

	Warnings []string
	Err      error
}

// Config holds configuration for the interpolator.
type Config struct {
	// TimeTolerance drops samples further from the target time (default: 180 minutes).
	TimeTolerance time.Duration

	// AltitudeTolerance drops samples further from the target altitude (default: 1000 m).
	AltitudeTolerance float64

	// CircularFields are interpolated along the shortest arc (default: wind_direction).
	CircularFields []string

	// Logger for interpolation warnings.
	Logger zerolog.Logger
}

// Interpolator interpolates scattered samples. It is safe for concurrent use.
type Interpolator struct {
	timeTol  time.Duration
	altTol   float64
	circular map[string]bool
	logger   zerolog.Logger
}

// New creates a new interpolator.
func New(cfg Config) *Interpolator {
	if cfg.TimeTolerance <= 0 {
		cfg.TimeTolerance = 180 * time.Minute
	}
	if cfg.AltitudeTolerance <= 0 {
		cfg.AltitudeTolerance = 1000
	}
	if cfg.CircularFields == nil {
		cfg.CircularFields = []string{"wind_direction"}
	}
	circular := make(map[string]bool, len(cfg.CircularFields))
	for _, f := range cfg.CircularFields {
		circular[f] = true
	}
	return &Interpolator{
		timeTol:  cfg.TimeTolerance,
		altTol:   cfg.AltitudeTolerance,
		circular: circular,
		logger:   cfg.Logger,
	}
}

// Interpolate estimates values at target time and altitude.
func (in *Interpolator) Interpolate(target time.Time, altitude float64, points []Point, method Method) Result {
	usable := make([]Point, 0, len(points))
	for _, p := range points {
		if absDuration(p.Timestamp.Sub(target)) > in.timeTol || math.Abs(p.Altitude-altitude) > in.altTol {
			continue
		}
		usable = append(usable, p)
	}

	discarded := len(points) - len(usable)
	var warnings []string
	if discarded > 0 {
		warnings = append(warnings, fmt.Sprintf("%d samples outside tolerance discarded", discarded))
		in.logger.Debug().Int("discarded", discarded).Int("used", len(usable)).Msg("interpolation samples discarded")
	}

	if len(usable) == 0 {
		return Result{Method: MethodNone, Discarded: discarded, Warnings: warnings, Err: ErrInsufficientData}
	}

	var res Result
	if exact, ok := in.exactMatch(target, altitude, usable); ok {
		res = Result{Values: copyValues(exact.Values), Confidence: 1, Method: MethodExact}
	} else {
		switch method {
		case Cubic:
			res = in.cubic(target, altitude, usable)
		case Spline:
			res = in.spline(target, altitude, usable)
		default:
			res = in.linear(target, altitude, usable)
		}
	}

	res.Used = len(usable)
	res.Discarded = discarded
	res.Warnings = append(warnings, res.Warnings...)
	return res
}

func (in *Interpolator) exactMatch(target time.Time, altitude float64, points []Point) (Point, bool) {
	best, found := Point{}, false
	bestScore := math.Inf(1)
	for _, p := range points {
		dt := absDuration(p.Timestamp.Sub(target))
		da := math.Abs(p.Altitude - altitude)
		if dt > exactTime || da > exactAltitude {
			continue
		}
		score := dt.Seconds()/exactTime.Seconds() + da/exactAltitude
		if score < bestScore {
			best, bestScore, found = p, score, true
		}
	}
	return best, found
}

// linear blends the nearest samples at or before and at or after the target
// time. With one side missing the nearest sample is returned as an
// extrapolation.
func (in *Interpolator) linear(target time.Time, altitude float64, points []Point) Result {
	before, after := bracket(target, altitude, points)

	switch {
	case before == nil && after == nil:
		return Result{Method: MethodNone, Err: ErrInsufficientData}
	case before == nil || after == nil:
		p := before
		if p == nil {
			p = after
		}
		return Result{
			Values:     copyValues(p.Values),
			Confidence: extrapolationConfidence,
			Method:     MethodExtrapolation,
			Warnings:   []string{"target outside sampled time range; using nearest sample"},
		}
	}

	ratio := 0.0
	if span := after.Timestamp.Sub(before.Timestamp); span > 0 {
		ratio = float64(target.Sub(before.Timestamp)) / float64(span)
	}

	values := make(map[string]float64, len(before.Values))
	for k := range union(before.Values, after.Values) {
		a, okA := before.Values[k]
		b, okB := after.Values[k]
		if !okA {
			a = math.NaN()
		}
		if !okB {
			b = math.NaN()
		}
		if in.circular[k] {
			values[k] = LerpAngle(a, b, ratio)
		} else {
			values[k] = Lerp(a, b, ratio)
		}
	}

	gapT := max(absDuration(target.Sub(before.Timestamp)), absDuration(after.Timestamp.Sub(target)))
	gapA := math.Max(math.Abs(before.Altitude-altitude), math.Abs(after.Altitude-altitude))
	conf := math.Max(0, 1-float64(gapT)/float64(confidenceTimeScale)) * math.Max(0, 1-gapA/confidenceAltitudeScale)

	return Result{Values: values, Confidence: math.Max(minConfidence, conf), Method: MethodLinear}
}

// cubic smooths the linear estimate with inverse-distance weighting over the
// four nearest samples.
func (in *Interpolator) cubic(target time.Time, altitude float64, points []Point) Result {
	lin := in.linear(target, altitude, points)
	if len(points) < 4 {
		lin.Confidence *= 0.9
		lin.Method = MethodLinearFallback
		return lin
	}
	if lin.Values == nil || lin.Method == MethodExtrapolation {
		return lin
	}

	idw := in.idw(target, altitude, points, 4)
	return Result{
		Values:     in.blend(lin.Values, idw, 0.3),
		Confidence: math.Min(1, lin.Confidence*1.1),
		Method:     MethodCubic,
		Warnings:   lin.Warnings,
	}
}

// spline adds a second smoothing pass over six samples to the cubic estimate.
func (in *Interpolator) spline(target time.Time, altitude float64, points []Point) Result {
	cub := in.cubic(target, altitude, points)
	if cub.Method == MethodExtrapolation {
		return cub
	}
	if len(points) < 6 {
		cub.Confidence *= 0.95
		return cub
	}
	if cub.Values == nil {
		return cub
	}

	idw := in.idw(target, altitude, points, 6)
	return Result{
		Values:     in.blend(cub.Values, idw, 0.2),
		Confidence: math.Min(1, cub.Confidence*1.05),
		Method:     MethodSpline,
		Warnings:   cub.Warnings,
	}
}

// idw averages the k nearest samples weighted by inverse squared distance in
// tolerance-normalised time and altitude.
func (in *Interpolator) idw(target time.Time, altitude float64, points []Point, k int) map[string]float64 {
	type neighbour struct {
		p Point
		d float64
	}
	ns := make([]neighbour, len(points))
	for i, p := range points {
		dt := float64(p.Timestamp.Sub(target)) / float64(in.timeTol)
		da := (p.Altitude - altitude) / in.altTol
		ns[i] = neighbour{p: p, d: math.Hypot(dt, da)}
	}
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].d < ns[j].d })
	if len(ns) > k {
		ns = ns[:k]
	}

	if ns[0].d < 1e-12 {
		return copyValues(ns[0].p.Values)
	}

	sums := make(map[string]float64)
	sins := make(map[string]float64)
	coss := make(map[string]float64)
	weights := make(map[string]float64)
	for _, n := range ns {
		w := 1 / (n.d * n.d)
		for key, v := range n.p.Values {
			if math.IsNaN(v) {
				continue
			}
			if in.circular[key] {
				rad := v * math.Pi / 180
				sins[key] += w * math.Sin(rad)
				coss[key] += w * math.Cos(rad)
			} else {
				sums[key] += w * v
			}
			weights[key] += w
		}
	}

	out := make(map[string]float64, len(weights))
	for key, w := range weights {
		if in.circular[key] {
			out[key] = geo.NormalizeDegrees(math.Atan2(sins[key], coss[key]) * 180 / math.Pi)
			continue
		}
		out[key] = sums[key] / w
	}
	return out
}

// blend mixes base towards smooth by weight; keys missing in smooth keep base.
func (in *Interpolator) blend(base, smooth map[string]float64, weight float64) map[string]float64 {
	out := make(map[string]float64, len(base))
	for k, v := range base {
		s, ok := smooth[k]
		if !ok {
			out[k] = v
			continue
		}
		if in.circular[k] {
			out[k] = LerpAngle(v, s, weight)
		} else {
			out[k] = Lerp(v, s, weight)
		}
	}
	return out
}

// bracket returns the nearest samples at or before and at or after target.
// Equal timestamps resolve to the nearest altitude.
func bracket(target time.Time, altitude float64, points []Point) (before, after *Point) {
	for i := range points {
		p := &points[i]
		if !p.Timestamp.After(target) {
			if before == nil || p.Timestamp.After(before.Timestamp) ||
				(p.Timestamp.Equal(before.Timestamp) && math.Abs(p.Altitude-altitude) < math.Abs(before.Altitude-altitude)) {
				before = p
			}
		}
		if !p.Timestamp.Before(target) {
			if after == nil || p.Timestamp.Before(after.Timestamp) ||
				(p.Timestamp.Equal(after.Timestamp) && math.Abs(p.Altitude-altitude) < math.Abs(after.Altitude-altitude)) {
				after = p
			}
		}
	}
	return before, after
}

// Lerp blends a towards b. The ratio is clamped to [0, 1]; a NaN operand
// yields the other operand, and 0 when both are NaN.
func Lerp(a, b, ratio float64) float64 {
	switch {
	case math.IsNaN(a) && math.IsNaN(b):
		return 0
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	}
	v := a + (b-a)*clampRatio(ratio)
	return math.Max(math.Min(a, b), math.Min(math.Max(a, b), v))
}

// LerpAngle blends angle a towards b in degrees along the shortest arc. The
// result is in [0, 360).
func LerpAngle(a, b, ratio float64) float64 {
	switch {
	case math.IsNaN(a) && math.IsNaN(b):
		return 0
	case math.IsNaN(a):
		return geo.NormalizeDegrees(b)
	case math.IsNaN(b):
		return geo.NormalizeDegrees(a)
	}
	delta := math.Mod(b-a, 360)
	if delta > 180 {
		delta -= 360
	} else if delta <= -180 {
		delta += 360
	}
	return geo.NormalizeDegrees(a + delta*clampRatio(ratio))
}

func clampRatio(r float64) float64 {
	if math.IsNaN(r) {
		return 0
	}
	return math.Max(0, math.Min(1, r))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func copyValues(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func union(a, b map[string]float64) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}
