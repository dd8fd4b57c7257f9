package building

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/alexandrecuer/postprocess/internal/brent"
)

// Params are the building-level envelope parameters.
type Params struct {
	// LeakageRate is the envelope permeability at 4 Pa per unit of exposed
	// surface, m3/h/m2 (q4pasurf).
	LeakageRate float64 `json:"q4pasurf"`
	// ExposedSurfaceArea is the envelope area exposed to losses, m2 (atbat).
	ExposedSurfaceArea float64 `json:"atbat"`
	// AirInletModule is the nominal air inlet capacity, m3/h (mea).
	AirInletModule float64 `json:"mea"`
}

// Validate rejects negative or non-finite parameters. The first invalid
// parameter in declaration order is reported.
func (p Params) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"leakage rate", p.LeakageRate},
		{"exposed surface area", p.ExposedSurfaceArea},
		{"air inlet module", p.AirInletModule},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidParams, f.name)
		}
		if f.v < 0 {
			return fmt.Errorf("%w: %s is negative", ErrInvalidParams, f.name)
		}
	}
	return nil
}

// Conditions are the weather inputs of one timestep.
type Conditions struct {
	WindSpeed    float64 `json:"ws"`   // m/s
	InteriorTemp float64 `json:"tint"` // degree C
	ExteriorTemp float64 `json:"text"` // degree C
}

// HasNaN reports whether any input is missing.
func (c Conditions) HasNaN() bool {
	return math.IsNaN(c.WindSpeed) || math.IsNaN(c.InteriorTemp) || math.IsNaN(c.ExteriorTemp)
}

// Building aggregates an ordered, fixed set of envelope components.
// A Building holds no per-solve state and is safe for concurrent use.
type Building struct {
	params        Params
	components    []Component
	logger        *slog.Logger
	maxIterations int
}

// Option configures a Building.
type Option func(*Building)

// WithLogger sets the logger receiving the debug-level solver trace.
func WithLogger(l *slog.Logger) Option {
	return func(b *Building) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMaxIterations caps the solver main loop.
func WithMaxIterations(n int) Option {
	return func(b *Building) {
		if n > 0 {
			b.maxIterations = n
		}
	}
}

// New builds a Building. The settings slice is copied.
func New(params Params, settings []ComponentSettings, opts ...Option) (*Building, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(settings) == 0 {
		return nil, fmt.Errorf("%w: at least one component is required", ErrInvalidParams)
	}

	b := &Building{
		params:        params,
		components:    make([]Component, len(settings)),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxIterations: brent.DefaultMaxIterations,
	}
	for i, s := range settings {
		for _, v := range []float64{s.WindPressureCoefficient, s.EquivalentHeight, s.InfiltrationWeight, s.AirInletWeight} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: component %d has a non-finite setting", ErrInvalidParams, i)
			}
		}
		b.components[i] = NewComponent(s)
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Params returns the building-level parameters.
func (b *Building) Params() Params { return b.params }

// Components returns a copy of the component list.
func (b *Building) Components() []Component {
	out := make([]Component, len(b.components))
	copy(out, b.components)
	return out
}

// Envelope computes the exterior pressure of every component for the given
// weather.
func (b *Building) Envelope(cond Conditions) Envelope {
	pext := make([]float64, len(b.components))
	for i, c := range b.components {
		pext[i] = c.ExteriorPressure(cond.WindSpeed, cond.InteriorTemp, cond.ExteriorTemp)
	}
	return Envelope{b: b, pext: pext, flows: make([]float64, 2*len(pext))}
}

// Envelope is a building bound to the exterior pressures of one timestep.
// Its flow evaluations share a scratch buffer, so an Envelope is not safe for
// concurrent use; Building.Envelope returns independent values.
type Envelope struct {
	b     *Building
	pext  []float64
	flows []float64
}

// ExteriorPressures returns a copy of the per-component exterior pressures, Pa.
func (e Envelope) ExteriorPressures() []float64 {
	out := make([]float64, len(e.pext))
	copy(out, e.pext)
	return out
}

// NetFlow is the signed envelope flow at interiorPressure, m3/h: the sum of
// infiltration and air inlet flows of every component.
func (e Envelope) NetFlow(interiorPressure float64) float64 {
	p := e.b.params
	for i, c := range e.b.components {
		e.flows[2*i] = c.InfiltrationFlow(e.pext[i], interiorPressure, p.LeakageRate, p.ExposedSurfaceArea)
		e.flows[2*i+1] = c.AirInletFlow(e.pext[i], interiorPressure, p.AirInletModule)
	}
	return floats.Sum(e.flows)
}

// InfiltrationOnly is the air leaving the building at interiorPressure, m3/h,
// truncated to one decimal. Inward flows on one face do not offset losses on
// another.
func (e Envelope) InfiltrationOnly(interiorPressure float64) float64 {
	p := e.b.params
	for i, c := range e.b.components {
		e.flows[2*i] = math.Max(0, c.InfiltrationFlow(e.pext[i], interiorPressure, p.LeakageRate, p.ExposedSurfaceArea))
		e.flows[2*i+1] = math.Max(0, c.AirInletFlow(e.pext[i], interiorPressure, p.AirInletModule))
	}
	return truncate1(floats.Sum(e.flows))
}

// Solution is the interior pressure balancing the envelope against the
// mechanical ventilation.
type Solution struct {
	Pressure   float64 // Pa
	Iterations int
	Envelope   Envelope
}

// InfiltrationLosses evaluates InfiltrationOnly at the balance pressure.
func (s Solution) InfiltrationLosses() float64 {
	return s.Envelope.InfiltrationOnly(s.Pressure)
}

// Solve finds the interior pressure p such that
// ventilationFlow + NetFlow(p) = 0 for the given weather.
func (b *Building) Solve(ventilationFlow float64, cond Conditions) (Solution, error) {
	if cond.HasNaN() || math.IsNaN(ventilationFlow) {
		return Solution{}, &SolveError{
			Kind:            ErrNaNInput,
			VentilationFlow: ventilationFlow,
			Conditions:      cond,
			Err:             errors.New("weather or ventilation input is NaN"),
		}
	}

	env := b.Envelope(cond)
	b.logger.Debug("exterior pressures computed",
		"ws", cond.WindSpeed, "tint", cond.InteriorTemp, "text", cond.ExteriorTemp,
		"pext", env.pext,
	)

	res, err := brent.Find(func(p float64) float64 {
		return ventilationFlow + env.NetFlow(p)
	}, brent.Options{
		MaxIterations: b.maxIterations,
		Logger:        b.logger,
	})
	if err != nil {
		return Solution{}, &SolveError{
			Kind:            kindOf(err),
			VentilationFlow: ventilationFlow,
			Conditions:      cond,
			Err:             err,
		}
	}

	return Solution{Pressure: res.Root, Iterations: res.Iterations, Envelope: env}, nil
}

func kindOf(err error) error {
	switch {
	case errors.Is(err, brent.ErrSameSign):
		return ErrBracketSign
	case errors.Is(err, brent.ErrNaN):
		return ErrNaNInput
	default:
		return ErrNonConvergence
	}
}
