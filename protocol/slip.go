package protocol

// Encode wraps a packet in a SLIP frame, escaping the END and ESC bytes.
func Encode(packet []byte) []byte {
	frame := make([]byte, 0, len(packet)+len(packet)/8+2)
	frame = append(frame, SlipEnd)
	for _, b := range packet {
		switch b {
		case SlipEnd:
			frame = append(frame, SlipEsc, SlipEscEnd)
		case SlipEsc:
			frame = append(frame, SlipEsc, SlipEscEsc)
		default:
			frame = append(frame, b)
		}
	}
	return append(frame, SlipEnd)
}

// Decoder reassembles SLIP frames from a byte stream.
//
// Bytes received outside of a frame (boot messages printed by the ROM, line
// noise) are discarded. The zero value is ready to use.
type Decoder struct {
	buf     []byte
	inFrame bool
	escaped bool
}

// Feed consumes one byte and returns a complete packet when b closes a frame.
// The returned slice is owned by the caller.
func (d *Decoder) Feed(b byte) ([]byte, bool) {
	if !d.inFrame {
		if b == SlipEnd {
			d.inFrame = true
			d.buf = d.buf[:0]
		}
		return nil, false
	}

	if d.escaped {
		d.escaped = false
		switch b {
		case SlipEscEnd:
			d.buf = append(d.buf, SlipEnd)
		case SlipEscEsc:
			d.buf = append(d.buf, SlipEsc)
		default:
			// invalid escape, drop the frame
			d.inFrame = false
			d.buf = d.buf[:0]
		}
		return nil, false
	}

	switch b {
	case SlipEsc:
		d.escaped = true
	case SlipEnd:
		if len(d.buf) == 0 {
			// back-to-back delimiters: treat the second as a new frame start
			return nil, false
		}
		packet := make([]byte, len(d.buf))
		copy(packet, d.buf)
		d.buf = d.buf[:0]
		d.inFrame = false
		return packet, true
	default:
		d.buf = append(d.buf, b)
	}
	return nil, false
}

// Reset drops any partially received frame.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.inFrame = false
	d.escaped = false
}
