package building

import (
	"math"

	"github.com/alexandrecuer/postprocess/internal/brent"
)

const (
	// RhoExt is the density of outside air, kg/m3.
	RhoExt = 1.22
	// Gravity in m/s2.
	Gravity = 9.81
	// TRef is the reference outside air temperature, K.
	TRef = 283.0

	// infiltrationRefPressure is the 4 Pa differential the leakage rate is measured at.
	infiltrationRefPressure = 4.0
	// airInletRefPressure is the differential above which air inlets follow the linear law.
	airInletRefPressure = 20.0
)

// ComponentSettings describes one envelope face.
type ComponentSettings struct {
	WindPressureCoefficient float64 `json:"cp"`
	EquivalentHeight        float64 `json:"h"`  // m
	InfiltrationWeight      float64 `json:"ri"` // share of the envelope leakage
	AirInletWeight          float64 `json:"rea"`
}

// Component is an immutable envelope face.
type Component struct {
	cp  float64
	h   float64
	ri  float64
	rea float64
}

// NewComponent builds a component from its settings.
func NewComponent(s ComponentSettings) Component {
	return Component{
		cp:  s.WindPressureCoefficient,
		h:   s.EquivalentHeight,
		ri:  s.InfiltrationWeight,
		rea: s.AirInletWeight,
	}
}

// Settings returns a copy of the component parameters.
func (c Component) Settings() ComponentSettings {
	return ComponentSettings{
		WindPressureCoefficient: c.cp,
		EquivalentHeight:        c.h,
		InfiltrationWeight:      c.ri,
		AirInletWeight:          c.rea,
	}
}

// ExteriorPressure returns the pressure on the outer side of the face, Pa.
// Inputs are truncated to one decimal first so that near-identical weather
// samples give the same pressure.
func (c Component) ExteriorPressure(windSpeed, interiorTemp, exteriorTemp float64) float64 {
	ws := truncate1(windSpeed)
	tint := truncate1(interiorTemp)
	text := truncate1(exteriorTemp)
	wind := 0.9 * ws
	return RhoExt * (0.5*c.cp*wind*wind - c.h*(tint-text)*Gravity/TRef)
}

// InfiltrationFlow is the leakage through the face for a given exterior and
// interior pressure, m3/h. Positive values leave the building.
func (c Component) InfiltrationFlow(exteriorPressure, interiorPressure, leakageRate, exposedSurfaceArea float64) float64 {
	dp := exteriorPressure - interiorPressure
	return leakageRate * exposedSurfaceArea * c.ri * brent.Sign(dp) *
		math.Pow(math.Abs(dp)/infiltrationRefPressure, 2.0/3.0)
}

// AirInletFlow is the flow through the face's air inlets, m3/h. The two
// branches do not meet exactly at 20 Pa.
func (c Component) AirInletFlow(exteriorPressure, interiorPressure, airInletModule float64) float64 {
	dp := exteriorPressure - interiorPressure
	if dp < airInletRefPressure {
		return airInletModule * c.rea * 1.1 * brent.Sign(dp) * math.Sqrt(math.Abs(dp)/airInletRefPressure)
	}
	return airInletModule * c.rea * (0.5*dp + 78) / 80
}

// truncate1 drops everything past the first decimal, toward zero.
func truncate1(x float64) float64 {
	return math.Trunc(x*10) / 10
}
