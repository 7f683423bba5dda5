package sensor

import "fmt"

// Kind selects one of the measurements a mote reports.
type Kind int

// Measurement kinds, in payload order.
const (
	Battery Kind = iota
	Temperature
	Light

	KindCount = 3
)

var kindNames = [KindCount]string{"battery", "temperature", "light"}

// Valid reports whether k names a measurement.
func (k Kind) Valid() bool {
	return k >= 0 && k < KindCount
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind resolves a kind by name.
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown measurement kind %q", name)
}

// Codec converts a raw 16-bit sample into a physical value in
// milli-units. Implementations must be pure and total.
type Codec interface {
	Convert(kind Kind, raw uint16) int32
}

// CodecFunc is func type of Codec.
type CodecFunc func(kind Kind, raw uint16) int32

// Convert implements Codec.
func (f CodecFunc) Convert(kind Kind, raw uint16) int32 {
	return f(kind, raw)
}
