package protocol

import "encoding/binary"

// Wire protocol literals.
const (
	// Delim marks both the start and the end of a frame.
	Delim byte = 0x7e
	// Escape marks the next byte as stuffed: it is stored with escapeFlip
	// flipped and the Escape byte itself is never stored.
	Escape byte = 0x7d

	escapeFlip byte = 0x20
)

// ReportSignature tags a frame payload as a sensor report.
const ReportSignature byte = 0x11

// Sensor report payload layout, little-endian fields.
const (
	reportNodeOffset  = 1
	reportBattOffset  = 3
	reportTempOffset  = 5
	reportLightOffset = 7
	reportSize        = 9
)

// Frame contains one complete, de-stuffed frame.
//
// A Frame delivered by Parser aliases the parser's working buffer and is
// only valid for the duration of the handler call.
type Frame struct {
	Type     byte
	DestAddr uint16
	AMType   byte
	AMGroup  byte
	Payload  []byte
	CRC      uint16
}

// Report is a decoded sensor report carried in a frame payload.
type Report struct {
	NodeID uint16
	Batt   uint16
	Temp   uint16
	Light  uint16
}

// SensorReport decodes the payload as a sensor report.
// It returns false for any payload not tagged with ReportSignature.
func (f *Frame) SensorReport() (Report, bool) {
	if len(f.Payload) < reportSize || f.Payload[0] != ReportSignature {
		return Report{}, false
	}
	return Report{
		NodeID: binary.LittleEndian.Uint16(f.Payload[reportNodeOffset:]),
		Batt:   binary.LittleEndian.Uint16(f.Payload[reportBattOffset:]),
		Temp:   binary.LittleEndian.Uint16(f.Payload[reportTempOffset:]),
		Light:  binary.LittleEndian.Uint16(f.Payload[reportLightOffset:]),
	}, true
}

// Frame builds a frame carrying the report.
func (r Report) Frame() *Frame {
	payload := make([]byte, reportSize)
	payload[0] = ReportSignature
	binary.LittleEndian.PutUint16(payload[reportNodeOffset:], r.NodeID)
	binary.LittleEndian.PutUint16(payload[reportBattOffset:], r.Batt)
	binary.LittleEndian.PutUint16(payload[reportTempOffset:], r.Temp)
	binary.LittleEndian.PutUint16(payload[reportLightOffset:], r.Light)
	return &Frame{Payload: payload}
}

// AppendFrame appends the stuffed encoding of f to dst.
func AppendFrame(dst []byte, f *Frame) []byte {
	dst = append(dst, Delim)
	dst = appendStuffed(dst, f.Type)
	var addr [2]byte
	binary.LittleEndian.PutUint16(addr[:], f.DestAddr)
	dst = appendStuffed(dst, addr[0], addr[1])
	dst = appendStuffed(dst, f.AMType, f.AMGroup, byte(len(f.Payload)))
	dst = appendStuffed(dst, f.Payload...)
	var crc [2]byte
	binary.LittleEndian.PutUint16(crc[:], f.CRC)
	dst = appendStuffed(dst, crc[0], crc[1])
	return append(dst, Delim)
}

// Bytes returns the stuffed encoding of f for sending.
func (f *Frame) Bytes() []byte {
	return AppendFrame(nil, f)
}

func appendStuffed(dst []byte, bytes ...byte) []byte {
	for _, b := range bytes {
		if b == Delim || b == Escape {
			dst = append(dst, Escape, b^escapeFlip)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}
