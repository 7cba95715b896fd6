// Package transform holds the deterministic table transformations applied
// downstream of extraction: unit conversion to micrograms per cubic meter,
// toxics TRV exceedance math, PM2.5 AQI calculation, daily AQI cleaning and
// Envista standardization. All functions are pure frame-to-frame rewrites.
package transform

import (
	"math"
	"strconv"
	"strings"
)

// molarVolume is liters per mole at 25 degrees C and 1 atm.
const molarVolume = 24.45

// unitAliases collapses the unit spellings seen in AQS exports onto the
// canonical forms the converter understands. Unknown spellings normalize to
// "" which converts as already-ug/m3.
var unitAliases = map[string]string{
	"micrograms/cubicmeter": "ug/m3",
	"microgrampercubmeter":  "ug/m3",
	"microgramsperm3":       "ug/m3",
	"ug/m3":                 "ug/m3",
	"µg/m3":            "ug/m3",
	"ug/m^3":                "ug/m3",
	"ug/m³":            "ug/m3",
	"µg/m³":       "ug/m3",

	"nanograms/cubicmeter":      "ng/m3",
	"nanogramscubicmeter(25c)":  "ng/m3",
	"nanograms/cubicmeter(25c)": "ng/m3",
	"nanogramscubicmeter(lc)":   "ng/m3",
	"nanograms/cubicmeter(lc)":  "ng/m3",
	"nanogramsperm3":            "ng/m3",
	"ng/m3":                     "ng/m3",

	"milligrams/cubicmeter": "mg/m3",
	"mg/m3":                 "mg/m3",

	"ppb":                    "ppb",
	"ppbv":                   "ppb",
	"partsperbillion":        "ppb",
	"partsperbillioncarbon":  "ppbc",
	"partsperbillionvolume":  "ppb",

	"ppm":                   "ppm",
	"ppmv":                  "ppm",
	"partspermillion":       "ppm",
	"partspermillionvolume": "ppm",
}

// NormalizeUnit maps a raw unit string onto its canonical form, or "" when
// unrecognized.
func NormalizeUnit(unit string) string {
	key := strings.ReplaceAll(strings.ToLower(unit), " ", "")
	return unitAliases[key]
}

// ToUgM3 converts a measurement to micrograms per cubic meter. Gas
// conversions need the molecular weight; ppbC additionally needs the carbon
// atom count. Inconvertible inputs yield NaN.
func ToUgM3(value float64, unitNorm string, molWeight, carbonAtoms float64) float64 {
	if math.IsNaN(value) {
		return math.NaN()
	}
	switch unitNorm {
	case "ug/m3", "":
		return value
	case "ng/m3":
		return value / 1000.0
	case "mg/m3":
		return value * 1000.0
	case "ppb":
		if math.IsNaN(molWeight) {
			return math.NaN()
		}
		return value * molWeight / molarVolume
	case "ppbc":
		if math.IsNaN(molWeight) || math.IsNaN(carbonAtoms) || carbonAtoms <= 0 {
			return math.NaN()
		}
		return value * molWeight * molarVolume / (carbonAtoms * 1000.0)
	case "ppm":
		if math.IsNaN(molWeight) {
			return math.NaN()
		}
		return value * 1000.0 * molWeight / molarVolume
	}
	return math.NaN()
}

// SafeDiv divides with NaN and zero-denominator protection.
func SafeDiv(n, d float64) float64 {
	if math.IsNaN(n) || math.IsNaN(d) || d == 0 {
		return math.NaN()
	}
	return n / d
}

// parseNum parses a cell, NaN for blank or non-numeric.
func parseNum(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// fmtNum renders a float as a CSV cell, empty for NaN.
func fmtNum(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
