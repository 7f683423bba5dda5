// Package convert turns raw ADC samples into physical values.
package convert

import (
	"math"

	"github.com/lunixtng/lunix.go/pkg/sensor"
)

// Mote calibration. The ADC is 10-bit against a 1.223V reference; the
// temperature channel reads a 10k NTC thermistor in a 10k divider.
const (
	adcMax  = 1023
	battRef = 1.223

	thermSeries = 10000.0
	thermA      = 0.001010024
	thermB      = 0.000242127
	thermC      = 0.000000146
	zeroCelsius = 273.15
)

// LookupCodec implements sensor.Codec with one precomputed table per
// measurement kind, covering the full 16-bit sample range. Conversion
// is a single table load; the tables are built once at construction.
type LookupCodec struct {
	tables [sensor.KindCount][]int32
}

var _ sensor.Codec = (*LookupCodec)(nil)

// New builds the lookup tables.
func New() *LookupCodec {
	c := &LookupCodec{}
	for kind := range c.tables {
		table := make([]int32, 1<<16)
		convert := converters[kind]
		for raw := range table {
			table[raw] = convert(uint16(raw))
		}
		c.tables[kind] = table
	}
	return c
}

// Convert implements sensor.Codec. An invalid kind converts to 0.
func (c *LookupCodec) Convert(kind sensor.Kind, raw uint16) int32 {
	if !kind.Valid() {
		return 0
	}
	return c.tables[kind][raw]
}

var converters = [sensor.KindCount]func(uint16) int32{
	sensor.Battery:     convertBattery,
	sensor.Temperature: convertTemperature,
	sensor.Light:       convertLight,
}

// convertBattery returns the supply voltage in mV. The reading is the
// reference measured against the supply, so the ratio inverts.
func convertBattery(raw uint16) int32 {
	adc := clamp(raw, 1, adcMax)
	return int32(battRef * adcMax / adc * 1000)
}

// convertTemperature returns milli-degrees Celsius via the
// Steinhart-Hart fit of the thermistor divider.
func convertTemperature(raw uint16) int32 {
	adc := clamp(raw, 1, adcMax-1)
	r := thermSeries * (adcMax - adc) / adc
	lnR := math.Log(r)
	kelvin := 1.0 / (thermA + thermB*lnR + thermC*lnR*lnR*lnR)
	return int32((kelvin - zeroCelsius) * 1000)
}

// convertLight returns the photoresistor reading in raw counts; the
// channel has no absolute calibration.
func convertLight(raw uint16) int32 {
	return int32(raw)
}

func clamp(raw uint16, lo, hi float64) float64 {
	v := float64(raw)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
