package prediction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stratotrack/stratotrack/internal/elevation"
	"github.com/stratotrack/stratotrack/internal/forecast"
	"github.com/stratotrack/stratotrack/internal/geo"
	"github.com/stratotrack/stratotrack/internal/interpolation"
	"github.com/stratotrack/stratotrack/internal/quality"
	"github.com/stratotrack/stratotrack/internal/terrain"
	"github.com/stratotrack/stratotrack/internal/trajectory"
	"github.com/stratotrack/stratotrack/internal/weather"
)

// StateAcquireWeather selects the forecast window and model and fetches the
// weather before terrain preparation.
const StateAcquireWeather State = "ACQUIRE_WEATHER"

// WeatherSource supplies weather series.
type WeatherSource interface {
	GetWeather(ctx context.Context, req weather.Request) (*weather.Series, error)
}

// ElevationSource supplies batch elevation lookups.
type ElevationSource interface {
	GetBatchElevation(ctx context.Context, points []geo.Point) (*elevation.BatchResult, error)
}

// DefaultComplexityFactors are the ascent-rate factors per terrain complexity.
func DefaultComplexityFactors() map[terrain.Complexity]float64 {
	return map[terrain.Complexity]float64{
		terrain.ComplexityFlat:        1.0,
		terrain.ComplexityGentle:      0.95,
		terrain.ComplexityModerate:    0.9,
		terrain.ComplexityMountainous: 0.85,
		terrain.ComplexityExtreme:     0.8,
	}
}

// Config holds configuration for the orchestrator.
type Config struct {
	Weather   WeatherSource
	Elevation ElevationSource

	// Components default to instances built with the orchestrator's logger.
	Selector     *forecast.Selector
	Interpolator *interpolation.Interpolator
	Engine       *trajectory.Engine
	Analyzer     *terrain.Analyzer
	Assessor     *quality.Assessor

	// Method is the default interpolation method (default: linear).
	Method interpolation.Method

	// ComplexityFactors map terrain complexity to an ascent-rate factor
	// (default: DefaultComplexityFactors()).
	ComplexityFactors map[terrain.Complexity]float64

	// MaxGridPoints caps each terrain grid; the spacing is widened to fit (default: 441).
	MaxGridPoints int

	// PathSamples is how many descent-path points get an elevation lookup (default: 20).
	PathSamples int

	// WarningDistanceKm is how close to the descent path an obstacle must be to warn (default: 5).
	WarningDistanceKm float64

	// MaxRecommendations bounds the landing-site candidates (default: 3).
	MaxRecommendations int

	// Metrics records prediction outcomes, optional.
	Metrics *Metrics

	// Logger for orchestrator operations.
	Logger zerolog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Orchestrator runs predictions. It is safe for concurrent use; all
// per-request state lives in the call.
type Orchestrator struct {
	weather   WeatherSource
	elevation ElevationSource

	selector *forecast.Selector
	interp   *interpolation.Interpolator
	engine   *trajectory.Engine
	analyzer *terrain.Analyzer
	assessor *quality.Assessor

	method       interpolation.Method
	factors      map[terrain.Complexity]float64
	maxGrid      int
	pathSamples  int
	warnDistance float64
	maxRecs      int

	metrics *Metrics
	tracer  trace.Tracer
	logger  zerolog.Logger
	now     func() time.Time
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Selector == nil {
		cfg.Selector = forecast.NewSelector(forecast.SelectorConfig{Logger: cfg.Logger, Now: cfg.Now})
	}
	if cfg.Interpolator == nil {
		cfg.Interpolator = interpolation.New(interpolation.Config{Logger: cfg.Logger})
	}
	if cfg.Engine == nil {
		cfg.Engine = trajectory.NewEngine(trajectory.EngineConfig{Logger: cfg.Logger})
	}
	if cfg.Analyzer == nil {
		cfg.Analyzer = terrain.NewAnalyzer(terrain.Config{Logger: cfg.Logger})
	}
	if cfg.Assessor == nil {
		cfg.Assessor = quality.NewAssessor(quality.Config{Logger: cfg.Logger})
	}
	if cfg.Method == "" {
		cfg.Method = interpolation.Linear
	}
	if cfg.ComplexityFactors == nil {
		cfg.ComplexityFactors = DefaultComplexityFactors()
	}
	if cfg.MaxGridPoints <= 0 {
		cfg.MaxGridPoints = 441
	}
	if cfg.PathSamples <= 0 {
		cfg.PathSamples = 20
	}
	if cfg.WarningDistanceKm <= 0 {
		cfg.WarningDistanceKm = 5
	}
	if cfg.MaxRecommendations <= 0 {
		cfg.MaxRecommendations = 3
	}

	return &Orchestrator{
		weather:      cfg.Weather,
		elevation:    cfg.Elevation,
		selector:     cfg.Selector,
		interp:       cfg.Interpolator,
		engine:       cfg.Engine,
		analyzer:     cfg.Analyzer,
		assessor:     cfg.Assessor,
		method:       cfg.Method,
		factors:      cfg.ComplexityFactors,
		maxGrid:      cfg.MaxGridPoints,
		pathSamples:  cfg.PathSamples,
		warnDistance: cfg.WarningDistanceKm,
		maxRecs:      cfg.MaxRecommendations,
		metrics:      cfg.Metrics,
		tracer:       otel.Tracer(instrumentationName),
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
}

// Predict runs the pipeline. It returns a *ValidationError for bad input and
// an error wrapping ErrTimeout when ctx ends first. Any other failure yields
// a physics-only result with Fallback set.
func (o *Orchestrator) Predict(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "prediction.predict", trace.WithAttributes(
		attribute.Float64("launch.lat", in.Launch.Lat),
		attribute.Float64("launch.lon", in.Launch.Lon),
	))
	defer span.End()

	res, err := o.predict(ctx, in)

	outcome := OutcomeSuccess
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = OutcomeTimeout
	case err != nil:
		outcome = OutcomeInvalid
	case res.Fallback:
		outcome = OutcomeFallback
	}
	o.metrics.Record(ctx, outcome, time.Since(start))
	span.SetAttributes(attribute.String("prediction.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (o *Orchestrator) predict(ctx context.Context, in Input) (*Result, error) {
	r := &run{o: o, in: in, adj: neutralAdjustments(in.Specs)}
	if r.in.LaunchTime.IsZero() {
		r.in.LaunchTime = o.now().UTC()
	}

	if err := r.step(ctx, StateValidate, r.validate); err != nil {
		return nil, err
	}

	steps := []struct {
		state State
		fn    func(context.Context) error
	}{
		{StateAcquireWeather, r.acquireWeather},
		{StatePrepareTerrain, r.prepareTerrain},
		{StateBasePredict, r.basePredict},
		{StateAnalyzeTerrain, r.analyzeTerrain},
		{StateAdjust, r.adjust},
		{StateRecommendWarn, r.recommendWarn},
	}
	for _, s := range steps {
		err := r.step(ctx, s.state, s.fn)
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, ctxErr)
		}
		var verr *ValidationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		return r.fallback(ctx, err)
	}

	r.states = append(r.states, StateDone)
	return r.result(), nil
}

// run is the state of one prediction.
type run struct {
	o  *Orchestrator
	in Input

	states []State

	window *forecast.Window
	model  *forecast.ModelSelection
	series *weather.Series
	field  *interpolation.WeatherField

	launchGrid      []elevation.Sample
	launchElevation *float64

	base    *trajectory.Prediction
	overall *terrain.Analysis
	landing *terrain.Analysis
	site    *terrain.LandingSite

	adj      Adjustments
	recs     []terrain.LandingSite
	warnings []Warning
}

// step runs fn as one pipeline state. Panics become errors so the fallback
// can absorb them.
func (r *run) step(ctx context.Context, state State, fn func(context.Context) error) (err error) {
	ctx, span := r.o.tracer.Start(ctx, "prediction."+strings.ToLower(string(state)))
	defer span.End()
	r.states = append(r.states, state)

	defer func() {
		if p := recover(); p != nil {
			err = &orchestrationError{State: state, Err: fmt.Errorf("panic: %v", p)}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := fn(ctx); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return err
		}
		return &orchestrationError{State: state, Err: err}
	}
	return nil
}

func (r *run) validate(context.Context) error {
	in := r.in
	switch {
	case math.IsNaN(in.TerrainResolution) || in.TerrainResolution <= 0:
		return &ValidationError{Field: "terrain_resolution", Reason: "must be positive"}
	case math.IsNaN(in.AnalysisRadius) || in.AnalysisRadius <= 0:
		return &ValidationError{Field: "analysis_radius", Reason: "must be positive"}
	}
	if err := in.Launch.Validate(); err != nil {
		return &ValidationError{Field: "launch", Reason: err.Error(), Err: err}
	}
	if err := in.Specs.Validate(); err != nil {
		return &ValidationError{Field: "specs", Reason: err.Error(), Err: err}
	}
	if in.Method != "" && in.Method != interpolation.Linear && in.Method != interpolation.Cubic && in.Method != interpolation.Spline {
		return &ValidationError{Field: "method", Reason: fmt.Sprintf("unknown interpolation method %q", in.Method)}
	}
	return nil
}

func (r *run) acquireWeather(ctx context.Context) error {
	o := r.o
	r.window = o.selector.SelectWindow(forecast.Request{
		LaunchTime:        r.in.LaunchTime,
		Launch:            r.in.Launch,
		Specs:             r.in.Specs,
		UncertaintyMargin: r.in.UncertaintyMargin,
	})

	sel, err := o.selector.SelectModel(r.window, o.now())
	if err != nil {
		o.logger.Warn().Err(err).Msg("no forecast model selected, fetching without a model hint")
	} else {
		r.model = sel
	}

	if o.weather == nil {
		return errors.New("no weather source configured")
	}

	req := weather.Request{Lat: r.in.Launch.Lat, Lon: r.in.Launch.Lon, Start: r.window.Start, End: r.window.End}
	if r.model != nil {
		req.Model = r.model.Model.ID
	}
	series, err := o.weather.GetWeather(ctx, req)
	if err != nil {
		return fmt.Errorf("acquiring weather: %w", err)
	}

	method := r.in.Method
	if method == "" {
		method = o.method
	}
	field, err := interpolation.NewWeatherField(series.Samples, o.interp, interpolation.FieldConfig{Method: method})
	if err != nil {
		return fmt.Errorf("building weather field: %w", err)
	}

	r.series, r.field = series, field
	return nil
}

func (r *run) prepareTerrain(ctx context.Context) error {
	samples, err := r.lookup(ctx, r.grid(r.in.Launch))
	if err != nil {
		return fmt.Errorf("launch terrain: %w", err)
	}
	r.launchGrid = make([]elevation.Sample, len(samples))
	for i, s := range samples {
		r.launchGrid[i] = s.Sample
	}

	launch := geo.NewPoint(r.in.Launch.Lat, r.in.Launch.Lon)
	best := math.Inf(1)
	var ground float64
	for _, s := range samples {
		if d := geo.DistanceMeters(launch, s.Point()); d < best {
			best, ground = d, s.Elevation
		}
	}
	r.launchElevation = &ground
	return nil
}

func (r *run) basePredict(ctx context.Context) error {
	pred, err := r.physics(ctx)
	if err != nil {
		return err
	}
	r.base = pred
	return nil
}

// physics runs the engine with whatever weather and terrain is known.
func (r *run) physics(ctx context.Context) (*trajectory.Prediction, error) {
	launch := geo.NewPoint(r.in.Launch.Lat, r.in.Launch.Lon).WithAlt(r.in.Launch.AltOr(0))
	if r.in.Launch.Alt == nil && r.launchElevation != nil {
		launch = launch.WithAlt(*r.launchElevation)
	}

	var atm trajectory.Atmosphere = trajectory.StillAir{}
	if r.field != nil {
		atm = r.field
	}

	pred, err := r.o.engine.Predict(ctx, trajectory.Input{
		Launch:          launch,
		LaunchTime:      r.in.LaunchTime,
		Specs:           r.in.Specs,
		GroundElevation: r.launchElevation,
	}, atm)
	if errors.Is(err, trajectory.ErrInvalidSpecs) {
		return nil, &ValidationError{Field: "specs", Reason: err.Error(), Err: err}
	}
	return pred, err
}

func (r *run) analyzeTerrain(ctx context.Context) error {
	landing := r.base.Landing.Geo()
	grid := r.grid(landing)
	path := r.pathPoints()

	samples, err := r.lookup(ctx, append(grid, path...))
	if err != nil {
		return fmt.Errorf("landing terrain: %w", err)
	}

	var landingSamples, pathSamples []elevation.Sample
	for _, s := range samples {
		if s.index < len(grid) {
			landingSamples = append(landingSamples, s.Sample)
		} else {
			pathSamples = append(pathSamples, s.Sample)
		}
	}

	site, landingAnalysis, err := r.o.analyzer.AnalyzeLandingSite(landing, landingSamples)
	if err != nil {
		return fmt.Errorf("landing site: %w", err)
	}

	overall, err := r.o.analyzer.Analyze(dedupe(r.launchGrid, pathSamples, landingSamples))
	if err != nil {
		return fmt.Errorf("flight terrain: %w", err)
	}

	r.site, r.landing, r.overall = site, landingAnalysis, overall
	return nil
}

func (r *run) adjust(context.Context) error {
	base, rough := r.base, r.overall.MeanRoughness

	var clearance float64
	for _, ob := range r.overall.Obstacles {
		clearance = math.Max(clearance, ob.RequiredClearance)
	}
	r.adj.BurstHeightM = math.Max(0, clearance-r.in.Specs.BurstAltitude)

	r.adj.TrajectoryDeviationKm = base.DriftKm * rough * 0.1

	shift := 0.5 * r.landing.MeanRoughness
	if base.FinalDescentRate > 0 {
		diff := math.Abs(r.site.Elevation - base.Landing.Altitude)
		shift += diff / base.FinalDescentRate * base.FinalWindSpeed / 1000
	}
	r.adj.LandingShiftKm = shift

	r.adj.ConfidenceFactor = math.Max(0.5, 1-0.5*rough)
	r.adj.FlightTime = min(5*time.Minute, time.Duration(float64(5*time.Minute)*rough))

	factor, ok := r.o.factors[r.overall.Complexity]
	if !ok {
		factor = 1
	}
	r.adj.AscentRateFactor = factor
	r.adj.AdjustedAscentRate = r.in.Specs.AscentRate * factor
	return nil
}

func (r *run) recommendWarn(context.Context) error {
	r.recs = r.o.analyzer.RankLandingSites(r.landing, r.o.maxRecs)

	for _, ob := range r.overall.Obstacles {
		var sev Severity
		switch ob.Impact {
		case terrain.ImpactBlocking:
			sev = SeverityHigh
		case terrain.ImpactMajor:
			sev = SeverityMedium
		default:
			continue
		}
		d := r.distanceToDescent(ob.Geo())
		if d > r.o.warnDistance {
			continue
		}
		r.warnings = append(r.warnings, Warning{
			Type:     WarningObstacle,
			Severity: sev,
			Phase:    trajectory.PhaseDescent,
			Message:  fmt.Sprintf("%s %s at %.0f m (+%.0f m) %.1f km from the descent path", ob.Impact, ob.Type, ob.Elevation, ob.Height, d),
			Lat:      ob.Lat,
			Lon:      ob.Lon,
		})
	}

	if r.adj.BurstHeightM > 0 {
		r.warnings = append(r.warnings, Warning{
			Type:     WarningClearance,
			Severity: SeverityHigh,
			Phase:    trajectory.PhaseAscent,
			Message:  fmt.Sprintf("burst altitude is %.0f m below the clearance required by nearby terrain", r.adj.BurstHeightM),
			Lat:      r.base.Burst.Lat,
			Lon:      r.base.Burst.Lon,
		})
	}

	var sev Severity
	switch r.landing.Complexity {
	case terrain.ComplexityExtreme:
		sev = SeverityHigh
	case terrain.ComplexityMountainous:
		sev = SeverityMedium
	}
	if sev != "" {
		r.warnings = append(r.warnings, Warning{
			Type:     WarningComplexity,
			Severity: sev,
			Phase:    PhaseLanding,
			Message:  fmt.Sprintf("%s terrain around the landing site (%.0f m elevation range)", r.landing.Complexity, r.landing.Variation()),
			Lat:      r.base.Landing.Lat,
			Lon:      r.base.Landing.Lon,
		})
	}
	return nil
}

// fallback rebuilds the physics-only prediction after a pipeline failure.
func (r *run) fallback(ctx context.Context, cause error) (res *Result, err error) {
	r.o.logger.Warn().Err(cause).Msg("prediction pipeline failed, returning physics-only result")
	r.states = append(r.states, StateFallback)

	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("fallback prediction: panic: %v", p)
		}
	}()

	pred, err := r.physics(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, ctxErr)
		}
		var verr *ValidationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, fmt.Errorf("fallback prediction: %w", err)
	}

	r.base = pred
	r.adj = neutralAdjustments(r.in.Specs)
	r.recs = nil
	r.warnings = nil

	t := NeutralTerrain()
	t.LandingElevation = pred.Landing.Altitude
	if r.launchElevation != nil {
		t.LaunchElevation = *r.launchElevation
	} else {
		t.LaunchElevation = pred.Ascent[0].Altitude
	}
	res = r.build(t)
	res.Fallback = true
	res.FallbackReason = cause.Error()
	res.Confidence *= 0.5
	return res, nil
}

func (r *run) result() *Result {
	t := Terrain{
		Complexity:        r.overall.Complexity,
		LandingComplexity: r.landing.Complexity,
		Difficulty:        r.overall.Difficulty,
		Roughness:         r.overall.MeanRoughness,
		ElevationRangeM:   r.overall.Variation(),
		LandingElevation:  r.site.Elevation,
		Obstacles:         r.overall.Obstacles,
		LandingSite:       *r.site,
		SamplesAnalyzed:   len(r.overall.Points),
	}
	if t.Obstacles == nil {
		t.Obstacles = []terrain.Obstacle{}
	}
	if r.launchElevation != nil {
		t.LaunchElevation = *r.launchElevation
	}
	return r.build(t)
}

func (r *run) build(t Terrain) *Result {
	assessment := r.assess()

	res := &Result{
		Ascent:          r.base.Ascent,
		Descent:         r.base.Descent,
		Burst:           r.base.Burst,
		Landing:         r.base.Landing,
		FlightDuration:  r.base.FlightDuration(),
		Specs:           r.base.Specs,
		Terrain:         t,
		Adjustments:     r.adj,
		Recommendations: r.recs,
		Warnings:        r.warnings,
		Window:          r.window,
		Model:           r.model,
		WeatherQuality:  assessment,
		States:          r.states,
	}
	if res.Recommendations == nil {
		res.Recommendations = []terrain.LandingSite{}
	}
	if res.Warnings == nil {
		res.Warnings = []Warning{}
	}
	if r.series != nil {
		res.WeatherProvider = r.series.Provider
	}

	uncertainty := assessment.Uncertainty
	if r.window != nil {
		uncertainty = math.Max(uncertainty, r.window.Quality.UncertaintyFactor)
	}
	res.WeatherImpact = WeatherImpact{
		WindDriftKm:         r.base.DriftKm,
		AltitudeEffectM:     t.LandingElevation - t.LaunchElevation,
		UncertaintyRadiusKm: 0.5 + r.base.DriftKm*uncertainty + r.adj.TrajectoryDeviationKm,
	}

	conf := 0.5*r.base.WeatherConfidence + 0.5*assessment.Confidence
	res.Confidence = math.Max(0, math.Min(1, conf*r.adj.ConfidenceFactor))
	return res
}

// assess scores the weather that fed the prediction.
func (r *run) assess() *quality.Assessment {
	now := r.o.now()
	in := quality.Input{
		Latitude:    r.in.Launch.Lat,
		MinAltitude: math.Min(r.base.Landing.Altitude, r.base.Ascent[0].Altitude),
		MaxAltitude: r.base.Burst.Altitude,
	}

	end := r.base.Landing.Timestamp
	if r.window != nil {
		end = r.window.End
	}

	issued := now
	if r.model != nil {
		m := r.model.Model
		if m.UpdateCycle > 0 {
			issued = now.Add(-m.Latency).Truncate(m.UpdateCycle)
		}
		in.Model = quality.ModelCharacteristics{
			Name:                m.Name,
			SkillScores:         m.SkillScores,
			UpdateFrequency:     m.UpdateCycle,
			MaxReliableHorizon:  m.MaxReliableHorizon,
			SpatialResolutionKm: m.SpatialResolutionKm,
			VerticalLevels:      m.VerticalLevels,
		}
	}
	in.ForecastAge = now.Sub(issued)
	in.ForecastHorizon = max(0, end.Sub(issued))

	return r.o.assessor.Assess(in)
}

// grid returns the terrain grid around center, widening the spacing so the
// grid stays within the configured point cap.
func (r *run) grid(center geo.Point) []geo.Point {
	radius := r.in.AnalysisRadius * 1000
	spacing := r.in.TerrainResolution

	maxSteps := int((math.Sqrt(float64(r.o.maxGrid)) - 1) / 2)
	if maxSteps < 1 {
		maxSteps = 1
	}
	if radius/spacing > float64(maxSteps) {
		spacing = radius / float64(maxSteps)
		r.o.logger.Debug().Float64("spacing_m", spacing).Msg("terrain grid spacing widened")
	}
	return geo.Grid(geo.NewPoint(center.Lat, center.Lon), radius, spacing)
}

// pathPoints picks evenly spaced descent points, excluding the landing.
func (r *run) pathPoints() []geo.Point {
	descent := r.base.Descent
	if len(descent) < 2 {
		return nil
	}
	body := descent[:len(descent)-1]
	n := min(r.o.pathSamples, len(body))
	out := make([]geo.Point, 0, n)
	for i := range n {
		p := body[i*len(body)/n]
		out = append(out, geo.NewPoint(p.Lat, p.Lon))
	}
	return out
}

func (r *run) distanceToDescent(p geo.Point) float64 {
	best := math.Inf(1)
	for _, d := range r.base.Descent {
		best = math.Min(best, geo.DistanceKm(p, geo.NewPoint(d.Lat, d.Lon)))
	}
	return best
}

type indexedSample struct {
	elevation.Sample
	index int
}

// lookup resolves points and pairs every sample with its input index.
// A batch with no resolved point is an error.
func (r *run) lookup(ctx context.Context, points []geo.Point) ([]indexedSample, error) {
	if r.o.elevation == nil {
		return nil, errors.New("no elevation source configured")
	}
	batch, err := r.o.elevation.GetBatchElevation(ctx, points)
	if err != nil {
		return nil, err
	}
	if batch.Status == elevation.BatchError {
		if len(batch.Failures) > 0 {
			return nil, fmt.Errorf("no elevation resolved for %d points: %w", len(points), batch.Failures[0].Err)
		}
		return nil, fmt.Errorf("no elevation resolved for %d points", len(points))
	}

	failed := make(map[int]bool, len(batch.Failures))
	for _, f := range batch.Failures {
		failed[f.Index] = true
	}
	out := make([]indexedSample, 0, len(batch.Samples))
	next := 0
	for i := range points {
		if failed[i] || next >= len(batch.Samples) {
			continue
		}
		out = append(out, indexedSample{Sample: batch.Samples[next], index: i})
		next++
	}
	if len(batch.Failures) > 0 {
		r.o.logger.Warn().Int("failed", len(batch.Failures)).Int("points", len(points)).Msg("partial terrain coverage")
	}
	return out, nil
}

// dedupe merges sample sets, keeping the first sample per ~1 m cell.
func dedupe(sets ...[]elevation.Sample) []elevation.Sample {
	seen := make(map[string]bool)
	var out []elevation.Sample
	for _, set := range sets {
		for _, s := range set {
			key := geo.RoundKey(s.Lat, s.Lon, 5)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}
