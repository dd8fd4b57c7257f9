// Package brent finds a zero of a scalar function with the Brent/Dekker
// method: bisection combined with secant and inverse quadratic interpolation,
// starting from a small bracket that is widened once when it does not straddle
// the root.
package brent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
)

const (
	// DefaultA and DefaultB bound the initial search interval.
	DefaultA = -1.0
	DefaultB = 1.0
	// DefaultWidenOffset is added to one side of the interval when f(a) and
	// f(b) share a sign.
	DefaultWidenOffset = 25.0
	// DefaultMaxIterations caps the main loop.
	DefaultMaxIterations = 200
)

// eps is the float64 machine epsilon, 2^-52.
var eps = math.Pow(2, -52)

var (
	// ErrSameSign means f(a) and f(b) share a sign even after widening.
	ErrSameSign = errors.New("sign of f(a) and f(b) must be opposite")
	// ErrNaN means the function evaluated to NaN.
	ErrNaN = errors.New("function evaluated to NaN")
	// ErrNonConvergence means the iteration cap was reached.
	ErrNonConvergence = errors.New("no convergence within iteration limit")
)

// BracketError reports the interval that failed to bracket a root.
type BracketError struct {
	A, B   float64
	FA, FB float64
}

func (e *BracketError) Error() string {
	return fmt.Sprintf("%v: f(%g)=%g, f(%g)=%g", ErrSameSign, e.A, e.FA, e.B, e.FB)
}

func (e *BracketError) Unwrap() error { return ErrSameSign }

// Options tunes Find. Zero values select the package defaults, except A and B
// which are only honored when they differ from each other.
type Options struct {
	A, B          float64
	WidenOffset   float64
	MaxIterations int
	// Logger receives a debug-level trace of every round. Nil disables it.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.A == o.B {
		o.A, o.B = DefaultA, DefaultB
	}
	if o.WidenOffset <= 0 {
		o.WidenOffset = DefaultWidenOffset
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}

// Result is a converged root.
type Result struct {
	Root       float64
	Iterations int
	// A and B are the interval the main loop started from.
	A, B    float64
	Widened bool
}

// Sign returns 1 for x>0, -1 for x<0 and 0 otherwise.
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// Find returns a zero of f.
func Find(f func(float64) float64, opts Options) (Result, error) {
	opts = opts.withDefaults()
	log := opts.Logger
	if log == nil || !log.Enabled(context.Background(), slog.LevelDebug) {
		log = nil
	}

	a, b := opts.A, opts.B
	fa, fb := f(a), f(b)
	res := Result{A: a, B: b}

	if fa == 0 {
		res.Root = a
		return res, nil
	}
	if fb == 0 {
		res.Root = b
		return res, nil
	}

	if Sign(fa) == Sign(fb) {
		a, b = widen(a, b, fa, fb, opts.WidenOffset)
		fa, fb = f(a), f(b)
		res.A, res.B, res.Widened = a, b, true
		if log != nil {
			log.Debug("bracket widened", "a", a, "b", b, "f_a", fa, "f_b", fb)
		}
	}
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return res, fmt.Errorf("%w: f(%g)=%g, f(%g)=%g", ErrNaN, a, fa, b, fb)
	}
	if fa == 0 && fb == 0 {
		res.Root = a
		return res, nil
	}
	if Sign(fa) == Sign(fb) {
		return res, &BracketError{A: a, B: b, FA: fa, FB: fb}
	}

	c, fc := a, fa
	d := b - c
	e := d
	i := 0

	for fb != 0 {
		if log != nil {
			log.Debug("brent round", "i", i, "a", a, "b", b, "c", c, "f_a", fa, "f_b", fb, "f_c", fc)
		}
		// a is the contrapoint, c the previous iterate.
		if Sign(fa) == Sign(fb) {
			a, fa = c, fc
			d = b - c
			e = d
		}
		if math.Abs(fa) < math.Abs(fb) {
			c, b, a = b, a, b
			fc, fb, fa = fb, fa, fb
		}

		m := 0.5 * (a - b)
		tol := 2.0 * eps * math.Max(math.Abs(b), 1.0)
		if math.Abs(m) <= tol || fb == 0 {
			res.Root, res.Iterations = b, i
			return res, nil
		}
		if i >= opts.MaxIterations {
			res.Root, res.Iterations = b, i
			return res, fmt.Errorf("%w: %d iterations, b=%g, f(b)=%g", ErrNonConvergence, i, b, fb)
		}

		if math.Abs(e) < tol || math.Abs(fc) <= math.Abs(fb) {
			d, e = m, m
		} else {
			var p, q float64
			s := fb / fc
			if a == c {
				// secant
				p = 2.0 * m * s
				q = 1.0 - s
			} else {
				// inverse quadratic interpolation
				q = fc / fa
				r := fb / fa
				p = s * (2.0*m*q*(q-r) - (b-c)*(r-1.0))
				q = (q - 1.0) * (r - 1.0) * (s - 1.0)
			}
			if p > 0 {
				q = -q
			} else {
				p = -p
			}
			if 2.0*p < 3.0*m*q-math.Abs(tol*q) && p < math.Abs(0.5*e*q) {
				e = d
				d = p / q
			} else {
				d, e = m, m
			}
		}

		i++
		c, fc = b, fb
		if math.Abs(d) > tol {
			b += d
		} else {
			b -= Sign(b-a) * tol
		}
		fb = f(b)
		if math.IsNaN(fb) {
			res.Root, res.Iterations = b, i
			return res, fmt.Errorf("%w: at b=%g after %d iterations", ErrNaN, b, i)
		}
	}

	res.Root, res.Iterations = b, i
	return res, nil
}

// widen moves one end of [a,b] outward by offset, assuming f keeps its
// direction of variation beyond the interval.
func widen(a, b, fa, fb, offset float64) (float64, float64) {
	switch {
	case fa < 0:
		if fa < fb {
			b += offset
		} else {
			a -= offset
		}
	case fa > 0:
		if fa < fb {
			a -= offset
		} else {
			b += offset
		}
	}
	return a, b
}
