package building

import (
	"errors"
	"fmt"
)

var (
	// ErrBracketSign means the envelope flow does not change sign over the
	// widened search interval for these inputs.
	ErrBracketSign = errors.New("bracket sign failure")
	// ErrNaNInput means a weather input, or an evaluation derived from it, is NaN.
	ErrNaNInput = errors.New("nan input")
	// ErrNonConvergence means the solver hit its iteration cap.
	ErrNonConvergence = errors.New("solver did not converge")
	// ErrInvalidParams rejects a building description.
	ErrInvalidParams = errors.New("invalid building parameters")
)

// SolveError is a failed balance for one timestep. Kind is one of
// ErrBracketSign, ErrNaNInput or ErrNonConvergence.
type SolveError struct {
	Kind            error
	VentilationFlow float64
	Conditions      Conditions
	Err             error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("%v: qvent=%g tint=%g text=%g ws=%g: %v",
		e.Kind, e.VentilationFlow,
		e.Conditions.InteriorTemp, e.Conditions.ExteriorTemp, e.Conditions.WindSpeed,
		e.Err)
}

func (e *SolveError) Unwrap() []error { return []error{e.Kind, e.Err} }
