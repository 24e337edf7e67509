package keyrange

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/latticedb/lattice/lerr"
)

// Decode reads one scalar (non-compound) Key from the front of b, per the
// encoding Encode produces, and reports how many bytes it consumed.
// Compound keys are decoded by calling Decode repeatedly — the caller
// knows each component's arity from the owning IndexSpec, since the
// encoding itself carries no component count.
func Decode(b []byte) (Key, int, error) {
	if len(b) == 0 {
		return nil, 0, lerr.New(lerr.KindData, "keyrange: cannot decode an empty key")
	}
	switch b[0] {
	case tagNumber, tagTime:
		if len(b) < 9 {
			return nil, 0, lerr.New(lerr.KindData, "keyrange: truncated number encoding")
		}
		bits := binary.BigEndian.Uint64(b[1:9])
		if bits&(1<<63) != 0 {
			bits &^= 1 << 63
		} else {
			bits = ^bits
		}
		f := math.Float64frombits(bits)
		if b[0] == tagTime {
			return time.Unix(0, int64(f)).UTC(), 9, nil
		}
		return f, 9, nil
	case tagBool:
		if len(b) < 2 {
			return nil, 0, lerr.New(lerr.KindData, "keyrange: truncated bool encoding")
		}
		return b[1] == 1, 2, nil
	case tagString, tagBytes:
		payload, n, err := decodeTerminated(b)
		if err != nil {
			return nil, 0, err
		}
		if b[0] == tagBytes {
			return payload, n, nil
		}
		return string(payload), n, nil
	default:
		return nil, 0, lerr.New(lerr.KindData, "keyrange: unknown key tag")
	}
}

func decodeTerminated(b []byte) ([]byte, int, error) {
	out := make([]byte, 0, len(b))
	i := 1
	for i < len(b) {
		if b[i] == escByte {
			if i+1 >= len(b) {
				return nil, 0, lerr.New(lerr.KindData, "keyrange: truncated terminated encoding")
			}
			switch b[i+1] {
			case escEnd:
				return out, i + 2, nil
			case escEscaped:
				out = append(out, escByte)
				i += 2
				continue
			default:
				return nil, 0, lerr.New(lerr.KindData, "keyrange: invalid escape sequence")
			}
		}
		out = append(out, b[i])
		i++
	}
	return nil, 0, lerr.New(lerr.KindData, "keyrange: missing terminator")
}

// DecodeN decodes n consecutive scalar keys from the front of b, returning
// them in order plus the total bytes consumed. Used to split a compound
// index's concatenated encoding back into its components.
func DecodeN(b []byte, n int) ([]Key, int, error) {
	out := make([]Key, 0, n)
	total := 0
	for i := 0; i < n; i++ {
		k, consumed, err := Decode(b[total:])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, k)
		total += consumed
	}
	return out, total, nil
}
