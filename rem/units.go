package rem

import (
	"math"
	"strconv"
	"strings"
)

// unitsPerPixel is how many input units make a pixel: an rpx is half a pixel
// and RootValue is the root font size in pixels.
const unitsPerPixel = 2

// Converter maps magnitudes in the input unit to text in the output unit.
type Converter struct {
	RootValue     float64
	UnitPrecision int
	MinPixelValue float64
	Unit          string
}

// Convert returns replacement text for a literal with the given numeric text
// and magnitude. It returns false when the literal must be kept as is.
//
// Zero, as well as any value which rounds to zero, becomes unitless "0".
//
//	Convert("15", 15) → "0.46875rem" (root value 16)
//	Convert("-.5", -0.5) → "-0.01563rem"
//	Convert("0", 0) → "0"
func (c Converter) Convert(number string, magnitude float64) (string, bool) {
	if magnitude == 0 {
		return "0", true
	}
	if math.Abs(magnitude) < c.MinPixelValue {
		return "", false
	}
	v := roundHalfAwayFromZero(magnitude/unitsPerPixel/c.RootValue, c.UnitPrecision)
	if v == 0 {
		return "0", true
	}
	out := strconv.FormatFloat(v, 'f', -1, 64) + c.Unit
	if strings.HasPrefix(number, "+") {
		out = "+" + out
	}
	return out, true
}

// roundHalfAwayFromZero rounds v to precision decimal places. Values which
// cannot be scaled without losing integer precision are already as precise
// as float64 allows and are returned unchanged.
func roundHalfAwayFromZero(v float64, precision int) float64 {
	multiplier := math.Pow(10, float64(precision))
	scaled := v * multiplier
	if math.IsInf(scaled, 0) || math.Abs(scaled) >= 1<<53 {
		return v
	}
	return math.Round(scaled) / multiplier
}

// ConvertValue rewrites every convertible literal of unit in value, keeping
// all other characters intact. It returns the new value, number of literals
// converted to the output unit and number of literals converted to unitless
// zero.
func (c Converter) ConvertValue(value, unit string) (out string, converted, zeros int) {
	var (
		sb   strings.Builder
		last int
	)
	for occ := range Scan(value, unit) {
		text, ok := c.Convert(occ.Number, occ.Magnitude)
		if !ok {
			continue
		}
		if text == "0" {
			zeros++
		} else {
			converted++
		}
		sb.WriteString(value[last:occ.Start])
		sb.WriteString(text)
		last = occ.End
	}
	if converted+zeros == 0 {
		return value, 0, 0
	}
	sb.WriteString(value[last:])
	return sb.String(), converted, zeros
}
