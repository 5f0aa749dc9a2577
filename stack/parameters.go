// Package stack describes the PEM fuel cell stack the models were fitted for and
// derives first-principles reference figures from a voltage/current reading.
package stack

import (
	"errors"
	"fmt"
	"math"
)

var ErrParameterOutOfRange = errors.New("stack parameter out of range")

// Parameters are the physical constants of the stack. The zero value is not
// useful; start from Defaults.
type Parameters struct {
	FaradayConstant      float64 `yaml:"faraday_constant" json:"faraday_constant" schema:"faraday_constant"`
	RatedPower           float64 `yaml:"rated_power" json:"rated_power" schema:"rated_power"`
	NumberOfCells        int     `yaml:"number_of_cells" json:"number_of_cells" schema:"number_of_cells"`
	StackVoltage         float64 `yaml:"stack_voltage" json:"stack_voltage" schema:"stack_voltage"`
	EffectiveArea        float64 `yaml:"effective_area" json:"effective_area" schema:"effective_area"`
	TimeConversion       float64 `yaml:"time_conversion" json:"time_conversion" schema:"time_conversion"`
	MoleToVolume         float64 `yaml:"mole_to_volume" json:"mole_to_volume" schema:"mole_to_volume"`
	ReferenceVoltageHeat float64 `yaml:"reference_voltage_heating" json:"reference_voltage_heating" schema:"reference_voltage_heating"`
	MaxFuelCellVoltage   float64 `yaml:"max_fuel_cell_voltage" json:"max_fuel_cell_voltage" schema:"max_fuel_cell_voltage"`
}

// Defaults returns the stack the UI starts with.
func Defaults() Parameters {
	return Parameters{
		FaradayConstant:      96485,
		RatedPower:           100,
		NumberOfCells:        20,
		StackVoltage:         12,
		EffectiveArea:        26,
		TimeConversion:       60,
		MoleToVolume:         23.65,
		ReferenceVoltageHeat: 1.25,
		MaxFuelCellVoltage:   1.48,
	}
}

// Bound is the accepted range of one parameter together with its UI step.
type Bound struct {
	Name  string  `json:"name"`
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Step  float64 `json:"step"`
	Value float64 `json:"value"`
}

// Bounds lists every parameter with its range, in display order.
func (p Parameters) Bounds() []Bound {
	return []Bound{
		{Name: "faraday_constant", Label: "Faraday Constant (C/mol)", Min: 90000, Max: 100000, Step: 0.01, Value: p.FaradayConstant},
		{Name: "rated_power", Label: "Stack Rated Power (W)", Min: 50, Max: 200, Step: 0.01, Value: p.RatedPower},
		{Name: "number_of_cells", Label: "Number of Cells", Min: 10, Max: 50, Step: 1, Value: float64(p.NumberOfCells)},
		{Name: "stack_voltage", Label: "Stack Voltage (V)", Min: 6, Max: 24, Step: 0.01, Value: p.StackVoltage},
		{Name: "effective_area", Label: "Effective Area of PEM Cell (cm²)", Min: 10, Max: 50, Step: 0.1, Value: p.EffectiveArea},
		{Name: "time_conversion", Label: "Time Conversion (sec/min)", Min: 10, Max: 120, Step: 0.1, Value: p.TimeConversion},
		{Name: "mole_to_volume", Label: "Mole to Volume Conversion (L/mol)", Min: 20, Max: 30, Step: 0.01, Value: p.MoleToVolume},
		{Name: "reference_voltage_heating", Label: "Reference Voltage for Heating (V)", Min: 1, Max: 2, Step: 0.01, Value: p.ReferenceVoltageHeat},
		{Name: "max_fuel_cell_voltage", Label: "Maximum Fuel Cell Voltage (V)", Min: 1, Max: 2, Step: 0.01, Value: p.MaxFuelCellVoltage},
	}
}

// Validate checks every parameter against its allowed range.
func (p Parameters) Validate() error {
	var errs []error
	for _, b := range p.Bounds() {
		if math.IsNaN(b.Value) || b.Value < b.Min || b.Value > b.Max {
			errs = append(errs, fmt.Errorf("%w: %s=%g not in [%g, %g]", ErrParameterOutOfRange, b.Name, b.Value, b.Min, b.Max))
		}
	}
	return errors.Join(errs...)
}

// AverageCellVoltage is the nominal per-cell voltage of the stack.
func (p Parameters) AverageCellVoltage() float64 {
	return p.StackVoltage / float64(p.NumberOfCells)
}
