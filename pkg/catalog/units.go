package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownUnit is returned when a length cannot be converted because one
// of the units is not a physical length unit.
var ErrUnknownUnit = errors.New("unknown length unit")

// Unit is a length unit token as used by the catalog (e.g. "MICROMETER").
type Unit string

const (
	Angstrom   Unit = "ANGSTROM"
	Nanometer  Unit = "NANOMETER"
	Micrometer Unit = "MICROMETER"
	Millimeter Unit = "MILLIMETER"
	Centimeter Unit = "CENTIMETER"
	Meter      Unit = "METER"
	Pixel      Unit = "PIXEL"
)

// metres per unit
var unitScale = map[Unit]float64{
	Angstrom:   1e-10,
	Nanometer:  1e-9,
	Micrometer: 1e-6,
	Millimeter: 1e-3,
	Centimeter: 1e-2,
	Meter:      1,
}

var unitSymbols = map[Unit]string{
	Angstrom:   "Å",
	Nanometer:  "nm",
	Micrometer: "µm",
	Millimeter: "mm",
	Centimeter: "cm",
	Meter:      "m",
	Pixel:      "pixel",
}

// Symbol returns the display symbol of the unit, or the token itself for
// units without a known symbol.
func (u Unit) Symbol() string {
	if s, ok := unitSymbols[u.normalize()]; ok {
		return s
	}
	return string(u)
}

func (u Unit) normalize() Unit {
	return Unit(strings.ToUpper(strings.TrimSpace(string(u))))
}

// Length is a physical length: a value with its unit and display symbol.
type Length struct {
	Value  float64 `json:"Value" yaml:"value"`
	Unit   Unit    `json:"Unit" yaml:"unit"`
	Symbol string  `json:"Symbol,omitempty" yaml:"symbol,omitempty"`
}

// DisplaySymbol returns the symbol reported by the catalog, falling back to
// the symbol of the unit.
func (l Length) DisplaySymbol() string {
	if l.Symbol != "" {
		return l.Symbol
	}
	return l.Unit.Symbol()
}

// In returns the length expressed in unit u.
func (l Length) In(u Unit) (Length, error) {
	from, to := l.Unit.normalize(), u.normalize()
	if from == to {
		return Length{Value: l.Value, Unit: to, Symbol: l.DisplaySymbol()}, nil
	}
	fs, ok := unitScale[from]
	if !ok {
		return Length{}, fmt.Errorf("%w: %q", ErrUnknownUnit, l.Unit)
	}
	ts, ok := unitScale[to]
	if !ok {
		return Length{}, fmt.Errorf("%w: %q", ErrUnknownUnit, u)
	}
	return Length{Value: l.Value * fs / ts, Unit: to, Symbol: to.Symbol()}, nil
}
