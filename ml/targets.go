package ml

// Target describes one of the continuous metrics produced by the target model.
type Target struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

var targets = []Target{
	{Name: "Power Output", Unit: "W"},
	{Name: "Efficiency", Unit: "%"},
	{Name: "Hydrogen Consumption Rate", Unit: "L/min"},
	{Name: "Oxygen Consumption Rate", Unit: "L/min"},
	{Name: "Water Production", Unit: "g/min"},
	{Name: "Heat Generation Rate", Unit: "W"},
	{Name: "Power Density", Unit: "W/cm²"},
	{Name: "Current Density", Unit: "A/cm²"},
}

// NumTargets is the number of outputs the target model must produce.
const NumTargets = 8

// Targets returns the ordered target list. The slice is a copy.
func Targets() []Target {
	out := make([]Target, len(targets))
	copy(out, targets)
	return out
}

// TargetNames returns the target labels in model output order.
func TargetNames() []string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name
	}
	return names
}
