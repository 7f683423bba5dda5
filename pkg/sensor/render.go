package sensor

import "strconv"

// AppendValue appends the wire-text rendering of a milli-unit value:
// the integer part truncated toward zero, a dot, the absolute
// fractional part zero-padded to three digits, and a newline. This
// exact format is a compatibility contract with existing tooling.
func AppendValue(dst []byte, milli int32) []byte {
	dst = strconv.AppendInt(dst, int64(milli/1000), 10)
	dst = append(dst, '.')
	frac := milli % 1000
	if frac < 0 {
		frac = -frac
	}
	if frac < 100 {
		dst = append(dst, '0')
	}
	if frac < 10 {
		dst = append(dst, '0')
	}
	dst = strconv.AppendInt(dst, int64(frac), 10)
	return append(dst, '\n')
}

// FormatValue is the string form of AppendValue.
func FormatValue(milli int32) string {
	return string(AppendValue(nil, milli))
}
