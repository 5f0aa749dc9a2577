package stack

const (
	waterMolarMass = 18.015 // g/mol
	electronsPerH2 = 2
	electronsPerO2 = 4
)

// Reference holds first-principles estimates for the same eight quantities the
// target model predicts, in the same order and units.
type Reference struct {
	PowerOutput     float64 `json:"power_output"`
	Efficiency      float64 `json:"efficiency"`
	HydrogenRate    float64 `json:"hydrogen_consumption_rate"`
	OxygenRate      float64 `json:"oxygen_consumption_rate"`
	WaterProduction float64 `json:"water_production"`
	HeatGeneration  float64 `json:"heat_generation_rate"`
	PowerDensity    float64 `json:"power_density"`
	CurrentDensity  float64 `json:"current_density"`
	LoadFraction    float64 `json:"load_fraction"`
	CellVoltage     float64 `json:"cell_voltage"`
}

// Estimate derives reference figures for a stack running at voltage (V) and current (A).
func (p Parameters) Estimate(voltage, current float64) Reference {
	cells := float64(p.NumberOfCells)
	power := voltage * current
	cellVoltage := voltage / cells

	// Faraday's law: molar flow in mol/s across all cells.
	h2MolPerSec := current * cells / (electronsPerH2 * p.FaradayConstant)
	o2MolPerSec := current * cells / (electronsPerO2 * p.FaradayConstant)

	heat := (p.ReferenceVoltageHeat*cells - voltage) * current
	if heat < 0 {
		heat = 0
	}

	return Reference{
		PowerOutput:     power,
		Efficiency:      cellVoltage / p.MaxFuelCellVoltage * 100,
		HydrogenRate:    h2MolPerSec * p.TimeConversion * p.MoleToVolume,
		OxygenRate:      o2MolPerSec * p.TimeConversion * p.MoleToVolume,
		WaterProduction: h2MolPerSec * p.TimeConversion * waterMolarMass,
		HeatGeneration:  heat,
		PowerDensity:    power / (p.EffectiveArea * cells),
		CurrentDensity:  current / p.EffectiveArea,
		LoadFraction:    power / p.RatedPower,
		CellVoltage:     cellVoltage,
	}
}

// Values returns the eight comparable estimates in target model order.
func (r Reference) Values() []float64 {
	return []float64{
		r.PowerOutput,
		r.Efficiency,
		r.HydrogenRate,
		r.OxygenRate,
		r.WaterProduction,
		r.HeatGeneration,
		r.PowerDensity,
		r.CurrentDensity,
	}
}
