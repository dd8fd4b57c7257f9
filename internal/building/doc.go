// Package building models the airflow balance of a building envelope.
//
// # Model
//
// The envelope is an ordered list of components (faces). For a timestep with
// wind speed ws, interior temperature tint and exterior temperature text,
// every component sees an exterior pressure
//
//	pext = 1.22 * (0.5*cp*(0.9*ws)^2 - h*(tint-text)*9.81/283)
//
// where cp is the wind pressure coefficient and h the equivalent height of
// the face. Weather inputs are truncated to one decimal before use.
//
// Given an interior pressure pib and dp = pext - pib, each face contributes
//
//	infiltration: q4pasurf * atbat * ri * sign(dp) * (|dp|/4)^(2/3)
//	air inlets:   mea * rea * 1.1 * sign(dp) * (|dp|/20)^0.5   when dp < 20
//	              mea * rea * (0.5*dp + 78) / 80              when dp >= 20
//
// Positive flows leave the building.
//
// # Balance
//
// [Building.Solve] finds the interior pressure at which the mechanical
// ventilation flow qvent compensates the envelope:
//
//	qvent + sum(infiltration + air inlets) = 0
//
// using the bracketing root finder in package brent. The reported losses,
// [Envelope.InfiltrationOnly], only count outgoing flows.
//
// # Failures
//
// A failed balance is a [*SolveError] whose Kind is [ErrBracketSign],
// [ErrNaNInput] or [ErrNonConvergence]. Callers processing a time series treat
// it as a missing sample and carry on.
package building
