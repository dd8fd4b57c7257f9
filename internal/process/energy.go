package process

import (
	"context"
	"fmt"
	"math"

	"github.com/alexandrecuer/postprocess/internal/feed"
)

const (
	// ConstantFlowToKWh integrates the heat carried by a constant air or
	// water flow between two temperatures.
	ConstantFlowToKWh = "constantflow_tokwh"
	// PowerToKWh integrates a power feed in W into a cumulative kWh feed.
	PowerToKWh = "powertokwh"
)

// spuriousPower bounds the accepted power samples, W.
const spuriousPower = 1e6

func constantFlowToKWh() Process {
	return Process{
		Description: Description{
			Name:        "Constant flow to kWh",
			Group:       "Misc",
			Description: "Convert constant flow to kwh",
			Settings: []Setting{
				valueSetting("vhc", "volumetric heat capacity in Wh/m3/K"),
				valueSetting("flow", "constant flow in m3/h"),
				feedSetting("tint", "Internal temperature feed / start temperature feed :"),
				feedSetting("text", "External temperature feed / return temperature feed :"),
				newFeedSetting("output", "Enter output energy feed name (kWh) :"),
			},
		},
		Run: runConstantFlowToKWh,
	}
}

// runConstantFlowToKWh accumulates 0.001*vhc*flow*max(tint-text, 0) kWh per
// hour. Timesteps with a missing temperature repeat the accumulator.
func runConstantFlowToKWh(ctx context.Context, env Env, item Item) (Result, error) {
	vhc, err := item.Value("vhc")
	if err != nil {
		return Result{}, err
	}
	flow, err := item.Value("flow")
	if err != nil {
		return Result{}, err
	}
	out, err := item.FeedID("output")
	if err != nil {
		return Result{}, err
	}
	res := Result{Output: out}

	inputs, err := openInputs(env, item, "tint", "text")
	if err != nil {
		return res, err
	}
	defer closeSeries(inputs)
	tint, text := inputs[0], inputs[1]

	outInfo, err := env.Feeds.Get(out)
	if err != nil {
		return res, fmt.Errorf("output feed: %w", err)
	}
	window, err := feed.ComputeWindow(tint.Meta, text.Meta)
	if err != nil {
		return res, err
	}
	meta := outputMeta(outInfo, window)

	var kwh float64
	if meta.NPoints > 0 {
		last, _, err := feed.LastValue(env.Feeds, out)
		if err != nil {
			return res, fmt.Errorf("read last output value: %w", err)
		}
		kwh = last
		env.Logger.Debug("accumulation resumes", "kwh", kwh)
	}

	var values []float64
	t := meta.End()
	for ; t < window.WritingEnd; t += meta.Interval {
		if len(values)%cancelCheckEvery == 0 && ctx.Err() != nil {
			return res, ctx.Err()
		}
		ti, err := tint.ValueAt(t)
		if err != nil {
			return res, err
		}
		te, err := text.ValueAt(t)
		if err != nil {
			return res, err
		}
		if math.IsNaN(ti) || math.IsNaN(te) {
			res.Missing++
		} else {
			kwh += 0.001 * vhc * flow * math.Max(ti-te, 0) * float64(meta.Interval) / 3600
		}
		values = append(values, kwh)
	}

	if len(values) == 0 {
		return res, ErrUpToDate
	}
	if _, err := env.Feeds.Append(out, meta, values); err != nil {
		return res, fmt.Errorf("unable to write to the feed with id=%d: %w", out, err)
	}
	res.PointsWritten = len(values)
	res.setLast(t-meta.Interval, kwh)
	res.Message = fmt.Sprintf("%d values written, last time value: %d %g", res.PointsWritten, res.LastTime, kwh)
	return res, nil
}

func powerToKWh() Process {
	return Process{
		Description: Description{
			Name:        "powertokwh",
			Group:       "Main",
			Description: "Convert power feed to kWh feed",
			Settings: []Setting{
				feedSetting("input", "Select input feed:"),
				newFeedSetting("output", "Enter output feed name:"),
			},
		},
		Run: runPowerToKWh,
	}
}

// runPowerToKWh integrates power samples one to one: the output takes the
// input header. Missing samples repeat the last valid power; powers beyond
// +-1 MW are not integrated.
func runPowerToKWh(ctx context.Context, env Env, item Item) (Result, error) {
	out, err := item.FeedID("output")
	if err != nil {
		return Result{}, err
	}
	res := Result{Output: out}

	inputs, err := openInputs(env, item, "input")
	if err != nil {
		return res, err
	}
	defer closeSeries(inputs)
	in := inputs[0]

	outInfo, err := env.Feeds.Get(out)
	if err != nil {
		return res, fmt.Errorf("output feed: %w", err)
	}
	if outInfo.NPoints >= in.Meta.NPoints {
		return res, ErrUpToDate
	}
	if err := in.Meta.Validate(); err != nil {
		return res, err
	}

	var wh float64
	if outInfo.NPoints > 0 {
		last, _, err := feed.LastValue(env.Feeds, out)
		if err != nil {
			return res, fmt.Errorf("read last output value: %w", err)
		}
		wh = last * 1000
	}

	samples, err := in.Values(outInfo.NPoints)
	if err != nil {
		return res, err
	}

	// the last valid power is unknown on resume; the first samples start from 0
	var power float64
	spurious := 0
	values := make([]float64, len(samples))
	for i, p := range samples {
		if i%cancelCheckEvery == 0 && ctx.Err() != nil {
			return res, ctx.Err()
		}
		if math.IsNaN(p) {
			res.Missing++
		} else {
			power = p
		}
		if power > -spuriousPower && power < spuriousPower {
			wh += power * float64(in.Meta.Interval) / 3600
		} else {
			spurious++
		}
		values[i] = wh * 0.001
	}
	if spurious > 0 {
		env.Logger.Warn("filtered spurious power values", "count", spurious, "limit_w", spuriousPower)
	}

	meta := feed.Meta{Interval: in.Meta.Interval, StartTime: in.Meta.StartTime}
	if _, err := env.Feeds.Append(out, meta, values); err != nil {
		return res, fmt.Errorf("unable to write to the feed with id=%d: %w", out, err)
	}
	res.PointsWritten = len(values)
	res.Failures = spurious
	res.setLast(in.Meta.TimeAt(in.Meta.NPoints-1), wh*0.001)
	res.Message = fmt.Sprintf("%d values written, last time value: %d %g", res.PointsWritten, res.LastTime, wh*0.001)
	return res, nil
}
