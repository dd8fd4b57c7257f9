package process

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/alexandrecuer/postprocess/internal/building"
	"github.com/alexandrecuer/postprocess/internal/feed"
)

// InfiltrationLosses evaluates the air leaving a building through its
// envelope at every timestep of its weather feeds.
const InfiltrationLosses = "infiltration_losses"

func infiltrationLosses() Process {
	return Process{
		Description: Description{
			Name:        "Infiltration losses",
			Group:       "Simulation",
			Description: "Evaluate permeability losses",
			Settings: []Setting{
				feedSetting("tint", "Internal temperature feed :"),
				feedSetting("text", "External temperature feed :"),
				feedSetting("ws", "Wind speed feed in m/s :"),
				valueSetting("qvent", "Ventilation flow rate in m3/h :"),
				valueSetting("hbat", "building height in m :"),
				valueSetting("q4pasurf", "q4pasurf in m3/h/m2 - leakage flow rate at 4 Pa divided by atbat, equivalent to european n50 :"),
				valueSetting("atbat", "atbat in m2 - wall surface exposed to energy losses :"),
				valueSetting("mea", "mea in m3/h - air inlet module :"),
				newFeedSetting("output", "Enter output feed name for permeability losses in m3/h :"),
			},
		},
		Run: runInfiltrationLosses,
	}
}

type infiltrationSettings struct {
	ventilation float64
	height      float64
	params      building.Params
}

func readInfiltrationSettings(item Item) (infiltrationSettings, error) {
	var s infiltrationSettings
	for key, dst := range map[string]*float64{
		"qvent":    &s.ventilation,
		"hbat":     &s.height,
		"q4pasurf": &s.params.LeakageRate,
		"atbat":    &s.params.ExposedSurfaceArea,
		"mea":      &s.params.AirInletModule,
	} {
		v, err := item.Value(key)
		if err != nil {
			return s, err
		}
		*dst = v
	}
	return s, nil
}

func runInfiltrationLosses(ctx context.Context, env Env, item Item) (Result, error) {
	settings, err := readInfiltrationSettings(item)
	if err != nil {
		return Result{}, err
	}
	out, err := item.FeedID("output")
	if err != nil {
		return Result{}, err
	}
	res := Result{Output: out}

	inputs, err := openInputs(env, item, "tint", "text", "ws")
	if err != nil {
		return res, err
	}
	defer closeSeries(inputs)
	tint, text, ws := inputs[0], inputs[1], inputs[2]

	outInfo, err := env.Feeds.Get(out)
	if err != nil {
		return res, fmt.Errorf("output feed: %w", err)
	}
	window, err := feed.ComputeWindow(tint.Meta, text.Meta, ws.Meta)
	if err != nil {
		return res, err
	}
	meta := outputMeta(outInfo, window)
	env.Logger.Debug("output aligned",
		"npoints", meta.NPoints, "interval", meta.Interval, "start_time", meta.StartTime,
		"writing_end_time", window.WritingEnd,
	)

	b, err := building.New(settings.params, building.ReferenceArchetype(settings.height), env.Building...)
	if err != nil {
		return res, err
	}

	var values []float64
	t := meta.End()
	for ; t < window.WritingEnd; t += meta.Interval {
		if len(values)%cancelCheckEvery == 0 && ctx.Err() != nil {
			return res, ctx.Err()
		}

		var cond building.Conditions
		if cond.InteriorTemp, err = tint.ValueAt(t); err != nil {
			return res, err
		}
		if cond.ExteriorTemp, err = text.ValueAt(t); err != nil {
			return res, err
		}
		if cond.WindSpeed, err = ws.ValueAt(t); err != nil {
			return res, err
		}

		v, kind := solveTimestep(env, b, settings.ventilation, cond, t)
		switch kind {
		case "":
		case "nan_input":
			res.Missing++
		default:
			res.Failures++
		}
		values = append(values, v)
	}

	if len(values) == 0 {
		return res, ErrUpToDate
	}
	if _, err := env.Feeds.Append(out, meta, values); err != nil {
		return res, fmt.Errorf("unable to write to the feed with id=%d: %w", out, err)
	}

	res.PointsWritten = len(values)
	res.setLast(t-meta.Interval, values[len(values)-1])
	res.Message = fmt.Sprintf("%d values written, last time value: %d", res.PointsWritten, res.LastTime)
	return res, nil
}

// solveTimestep returns the infiltration losses at t, or NaN with the failure
// kind when the balance cannot be solved.
func solveTimestep(env Env, b *building.Building, ventilation float64, cond building.Conditions, t int64) (float64, string) {
	sol, err := b.Solve(ventilation, cond)
	if err == nil {
		env.Metrics.TimestepsSolved.Inc()
		env.Metrics.SolverIterations.Observe(float64(sol.Iterations))
		return sol.InfiltrationLosses(), ""
	}

	kind := failureKind(err)
	env.Metrics.SolverFailures.WithLabelValues(kind).Inc()
	if errors.Is(err, building.ErrNaNInput) && cond.HasNaN() {
		env.Logger.Debug("missing weather sample", "time", t)
	} else {
		env.Logger.Warn("envelope balance failed",
			"time", t,
			"error", err,
			"qvent", ventilation,
			"ws", cond.WindSpeed,
			"tint", cond.InteriorTemp,
			"text", cond.ExteriorTemp,
		)
	}
	return math.NaN(), kind
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, building.ErrNaNInput):
		return "nan_input"
	case errors.Is(err, building.ErrBracketSign):
		return "bracket_sign"
	default:
		return "non_convergence"
	}
}
