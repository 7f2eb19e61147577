package args

import (
	"errors"
	"testing"

	"multistepper/protocol"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	a := NewMotionArgs()
	a.SetAxisPosition(0, 50)
	a.SetAxisPosition(1, -12.5)
	a.Relative = true
	a.MoreMovesComing = true
	a.TargetSpeedValid = true
	a.TargetSpeed = 123.4
	a.MotionTrackingIdxValid = true
	a.MotionTrackingIdx = 77
	a.ExtrudeValid = true
	a.ExtrudeDistance = 3.5

	encoded := Encode(a)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.Relative != a.Relative || decoded.MoreMovesComing != a.MoreMovesComing {
		t.Errorf("flags mismatch: %+v vs %+v", decoded, a)
	}
	if !decoded.IsAxisPosValid(0) || decoded.AxisPos.Get(0) != 50 {
		t.Errorf("axis 0 mismatch: %v", decoded.AxisPos.Get(0))
	}
	if !decoded.IsAxisPosValid(1) || decoded.AxisPos.Get(1) != -12.5 {
		t.Errorf("axis 1 mismatch: %v", decoded.AxisPos.Get(1))
	}
	if decoded.TargetSpeed != a.TargetSpeed {
		t.Errorf("target speed mismatch: %f vs %f", decoded.TargetSpeed, a.TargetSpeed)
	}
	if decoded.MotionTrackingIdx != 77 {
		t.Errorf("motion tracking idx mismatch: %d", decoded.MotionTrackingIdx)
	}
	if decoded.ExtrudeDistance != 3.5 {
		t.Errorf("extrude distance mismatch: %f", decoded.ExtrudeDistance)
	}
}

func TestDecodeRejectsBadCRC(t *testing.T) {
	a := NewMotionArgs()
	encoded := Encode(a)
	encoded[len(encoded)-1] ^= 0xFF
	if _, err := Decode(encoded); err != ErrCRCMismatch {
		t.Fatalf("expected ErrCRCMismatch, got %v", err)
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	a := NewMotionArgs()
	encoded := Encode(a)
	encoded[0] = 7
	payload := encoded[:len(encoded)-2]
	crc := protocol.CRC16(payload)
	encoded[len(encoded)-2] = byte(crc & 0xFF)
	encoded[len(encoded)-1] = byte(crc >> 8)

	if _, err := Decode(encoded); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
