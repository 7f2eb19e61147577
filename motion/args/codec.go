package args

import (
	"github.com/pkg/errors"

	"multistepper/motion/axes"
	"multistepper/protocol"
)

// BinaryFormat1 is the version byte for the first (and so far only)
// binary MotionArgs wire format.
const BinaryFormat1 = 0

// fixedScale converts between float units and the VLQ-encoded fixed-point
// integers used on the wire, matching the millis-precision the rest of the
// transport layer already uses for step rates.
const fixedScale = 1000

var (
	// ErrUnsupportedFormat is returned when decoding a version byte this
	// build does not understand.
	ErrUnsupportedFormat = errors.New("unsupported MotionArgs binary format")
	// ErrCRCMismatch is returned when the trailing CRC16 does not match
	// the decoded payload.
	ErrCRCMismatch = errors.New("MotionArgs CRC mismatch")
)

func scaleOut(v float32) int32 {
	return int32(v * fixedScale)
}

func scaleIn(v int32) float32 {
	return float32(v) / fixedScale
}

// Encode packs a to the binary MotionArgs format, returning the encoded
// bytes including the version byte and trailing CRC16.
func Encode(a MotionArgs) []byte {
	out := protocol.NewScratchOutput()
	out.Output([]byte{BinaryFormat1})

	var flags1 byte
	if a.Relative {
		flags1 |= 1 << 0
	}
	if a.LinearNoRamp {
		flags1 |= 1 << 1
	}
	if a.UnitsAreSteps {
		flags1 |= 1 << 2
	}
	if a.DontSplitMove {
		flags1 |= 1 << 3
	}
	if a.AllowOutOfBounds {
		flags1 |= 1 << 4
	}
	if a.MoreMovesComing {
		flags1 |= 1 << 5
	}
	if a.EnableMotors {
		flags1 |= 1 << 6
	}
	if a.PreClearQueue {
		flags1 |= 1 << 7
	}
	out.Output([]byte{flags1})

	var flags2 byte
	if a.IsHoming {
		flags2 |= 1 << 0
	}
	if a.MoveClockwise {
		flags2 |= 1 << 1
	}
	if a.MoveRapid {
		flags2 |= 1 << 2
	}
	if a.TargetSpeedValid {
		flags2 |= 1 << 3
	}
	if a.FeedrateUnitsPerMin {
		flags2 |= 1 << 4
	}
	if a.ExtrudeValid {
		flags2 |= 1 << 5
	}
	if a.MotionTrackingIdxValid {
		flags2 |= 1 << 6
	}
	out.Output([]byte{flags2})

	var validMask uint32
	for i := 0; i < axes.MaxAxes; i++ {
		if a.AxisValid[i] {
			validMask |= 1 << uint(i)
		}
	}
	protocol.EncodeVLQUint(out, validMask)
	for i := 0; i < axes.MaxAxes; i++ {
		if a.AxisValid[i] {
			protocol.EncodeVLQInt(out, scaleOut(a.AxisPos.Get(i)))
		}
	}

	if a.TargetSpeedValid {
		protocol.EncodeVLQInt(out, scaleOut(a.TargetSpeed))
	}
	protocol.EncodeVLQInt(out, scaleOut(a.Feedrate))
	if a.ExtrudeValid {
		protocol.EncodeVLQInt(out, scaleOut(a.ExtrudeDistance))
	}
	if a.MotionTrackingIdxValid {
		protocol.EncodeVLQUint(out, a.MotionTrackingIdx)
	}

	out.Output(a.Endstops.Serialize())

	payload := out.Result()
	crc := protocol.CRC16(payload)
	out.Output([]byte{byte(crc & 0xFF), byte(crc >> 8)})

	return out.Result()
}

// Decode unpacks the binary MotionArgs format produced by Encode. Returns
// ErrUnsupportedFormat for an unrecognized version byte and ErrCRCMismatch
// if the trailing CRC16 does not match.
func Decode(data []byte) (MotionArgs, error) {
	var a MotionArgs
	if len(data) < 3 {
		return a, protocol.ErrBufferTooSmall
	}
	payload := data[:len(data)-2]
	wantCRC := uint16(data[len(data)-2]) | uint16(data[len(data)-1])<<8
	if protocol.CRC16(payload) != wantCRC {
		return a, ErrCRCMismatch
	}

	rest := payload
	if rest[0] != BinaryFormat1 {
		return a, errors.Wrapf(ErrUnsupportedFormat, "version byte %d", rest[0])
	}
	rest = rest[1:]

	if len(rest) < 2 {
		return a, protocol.ErrBufferTooSmall
	}
	flags1 := rest[0]
	flags2 := rest[1]
	rest = rest[2:]

	a.Relative = flags1&(1<<0) != 0
	a.LinearNoRamp = flags1&(1<<1) != 0
	a.UnitsAreSteps = flags1&(1<<2) != 0
	a.DontSplitMove = flags1&(1<<3) != 0
	a.AllowOutOfBounds = flags1&(1<<4) != 0
	a.MoreMovesComing = flags1&(1<<5) != 0
	a.EnableMotors = flags1&(1<<6) != 0
	a.PreClearQueue = flags1&(1<<7) != 0

	a.IsHoming = flags2&(1<<0) != 0
	a.MoveClockwise = flags2&(1<<1) != 0
	a.MoveRapid = flags2&(1<<2) != 0
	a.TargetSpeedValid = flags2&(1<<3) != 0
	a.FeedrateUnitsPerMin = flags2&(1<<4) != 0
	a.ExtrudeValid = flags2&(1<<5) != 0
	a.MotionTrackingIdxValid = flags2&(1<<6) != 0

	validMask, err := protocol.DecodeVLQUint(&rest)
	if err != nil {
		return a, errors.Wrap(err, "decoding axis valid mask")
	}
	for i := 0; i < axes.MaxAxes; i++ {
		if validMask&(1<<uint(i)) != 0 {
			v, err := protocol.DecodeVLQInt(&rest)
			if err != nil {
				return a, errors.Wrapf(err, "decoding axis %d position", i)
			}
			a.SetAxisPosition(i, scaleIn(v))
		}
	}

	if a.TargetSpeedValid {
		v, err := protocol.DecodeVLQInt(&rest)
		if err != nil {
			return a, errors.Wrap(err, "decoding target speed")
		}
		a.TargetSpeed = scaleIn(v)
	}
	feedrate, err := protocol.DecodeVLQInt(&rest)
	if err != nil {
		return a, errors.Wrap(err, "decoding feedrate")
	}
	a.Feedrate = scaleIn(feedrate)

	if a.ExtrudeValid {
		v, err := protocol.DecodeVLQInt(&rest)
		if err != nil {
			return a, errors.Wrap(err, "decoding extrude distance")
		}
		a.ExtrudeDistance = scaleIn(v)
	}
	if a.MotionTrackingIdxValid {
		v, err := protocol.DecodeVLQUint(&rest)
		if err != nil {
			return a, errors.Wrap(err, "decoding motion tracking index")
		}
		a.MotionTrackingIdx = v
	}

	if len(rest) < axes.MaxAxes {
		return a, protocol.ErrBufferTooSmall
	}
	a.Endstops = axes.DeserializeEndstopChecks(rest[:axes.MaxAxes])

	return a, nil
}
