package building

// Wind pressure coefficients of the reference archetype.
const (
	cpWindward = 0.25
	cpSide     = -0.5
	cpDownwind = -0.5
)

// ReferenceArchetype returns the six-face reference building of the given
// height: windward, side and downwind walls, each split into a top face at
// half the height and a bottom face at ground level. Every face carries one
// sixth of the leakage and of the air inlets.
func ReferenceArchetype(height float64) []ComponentSettings {
	const w = 1.0 / 6.0
	top := height / 2
	return []ComponentSettings{
		{WindPressureCoefficient: cpWindward, EquivalentHeight: top, InfiltrationWeight: w, AirInletWeight: w},
		{WindPressureCoefficient: cpWindward, EquivalentHeight: 0, InfiltrationWeight: w, AirInletWeight: w},
		{WindPressureCoefficient: cpSide, EquivalentHeight: top, InfiltrationWeight: w, AirInletWeight: w},
		{WindPressureCoefficient: cpSide, EquivalentHeight: 0, InfiltrationWeight: w, AirInletWeight: w},
		{WindPressureCoefficient: cpDownwind, EquivalentHeight: top, InfiltrationWeight: w, AirInletWeight: w},
		{WindPressureCoefficient: cpDownwind, EquivalentHeight: 0, InfiltrationWeight: w, AirInletWeight: w},
	}
}
