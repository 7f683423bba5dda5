package protocol

import "encoding/binary"

// BufferCap bounds the parser's working buffer. A frame whose de-stuffed
// size exceeds it is dropped and the parser resynchronizes.
const BufferCap = 300

// De-stuffed field offsets inside the working buffer.
const (
	offType       = 0
	offDestAddr   = 1
	offAMType     = 3
	offAMGroup    = 4
	offPayloadLen = 5
	offPayload    = 6
)

// FrameHandler is called when a complete frame is received.
type FrameHandler interface {
	HandleFrame(*Frame)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(*Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(frame *Frame) {
	f(frame)
}

type parseStage int

const (
	stageSeekStart parseStage = iota
	stageType
	stageDestAddr
	stageAMType
	stageAMGroup
	stagePayloadLen
	stagePayload
	stageCRC
	stageSeekEnd
)

// Parser assembles frames from an arbitrarily chunked byte stream.
//
// State persists across Feed calls; calls must be serialized by the
// caller (single producer per stream). The zero value is ready to use.
type Parser struct {
	Handler FrameHandler

	stage   parseStage
	buf     [BufferCap]byte
	pos     int
	need    int
	escaped bool
	frame   Frame
}

// Reset discards any partial frame and rescans for a frame start.
func (p *Parser) Reset() {
	p.stage = stageSeekStart
	p.pos = 0
	p.need = 0
	p.escaped = false
}

// Feed consumes a chunk of the stream, invoking Handler once per
// completed frame. Chunk boundaries carry no meaning.
func (p *Parser) Feed(chunk []byte) {
	for _, b := range chunk {
		if frame := p.parse(b); frame != nil {
			if h := p.Handler; h != nil {
				h.HandleFrame(frame)
			}
		}
	}
}

func (p *Parser) parse(b byte) *Frame {
	if p.stage == stageSeekStart {
		if b == Delim {
			p.startFrame()
		}
		return nil
	}

	if p.stage == stageSeekEnd {
		var frame *Frame
		if b == Delim {
			frame = p.finishFrame()
		}
		p.Reset()
		return frame
	}

	// De-stuffing applies to every field between the delimiters.
	if !p.escaped {
		if b == Escape {
			p.escaped = true
			return nil
		}
		if b == Delim {
			// A bare delimiter inside a frame can only mean the previous
			// frame was cut short and a new one begins here.
			p.startFrame()
			return nil
		}
	} else {
		b ^= escapeFlip
		p.escaped = false
	}

	if p.pos >= BufferCap {
		p.Reset()
		return nil
	}
	p.buf[p.pos] = b
	p.pos++
	p.need--
	if p.need > 0 {
		return nil
	}

	switch p.stage {
	case stageType:
		p.stage, p.need = stageDestAddr, 2
	case stageDestAddr:
		p.stage, p.need = stageAMType, 1
	case stageAMType:
		p.stage, p.need = stageAMGroup, 1
	case stageAMGroup:
		p.stage, p.need = stagePayloadLen, 1
	case stagePayloadLen:
		if n := int(p.buf[offPayloadLen]); n > 0 {
			p.stage, p.need = stagePayload, n
		} else {
			p.stage, p.need = stageCRC, 2
		}
	case stagePayload:
		p.stage, p.need = stageCRC, 2
	case stageCRC:
		p.stage = stageSeekEnd
	}
	return nil
}

func (p *Parser) startFrame() {
	p.stage, p.need = stageType, 1
	p.pos = 0
	p.escaped = false
}

func (p *Parser) finishFrame() *Frame {
	payloadLen := int(p.buf[offPayloadLen])
	p.frame = Frame{
		Type:     p.buf[offType],
		DestAddr: binary.LittleEndian.Uint16(p.buf[offDestAddr:]),
		AMType:   p.buf[offAMType],
		AMGroup:  p.buf[offAMGroup],
		Payload:  p.buf[offPayload : offPayload+payloadLen],
		CRC:      binary.LittleEndian.Uint16(p.buf[offPayload+payloadLen:]),
	}
	return &p.frame
}
