package axes

import "testing"

func TestPosValuesArithmeticOnlyValidAxes(t *testing.T) {
	var a, b PosValues
	a.Set(0, 10)
	a.Set(1, 20)
	b.Set(0, 1)
	// axis 1 left invalid on b, axis 2 invalid on both

	sum := a.Add(b)
	if !sum.IsValid(0) || sum.Get(0) != 11 {
		t.Fatalf("axis 0 sum = %v valid=%v, want 11 valid", sum.Get(0), sum.IsValid(0))
	}
	if sum.IsValid(1) {
		t.Fatalf("axis 1 should be invalid in sum, b never set it")
	}
	if sum.IsValid(2) {
		t.Fatalf("axis 2 should be invalid in sum, neither operand set it")
	}
}

func TestPosValuesDivByZeroInvalidatesAxis(t *testing.T) {
	var a, b PosValues
	a.Set(0, 10)
	b.Set(0, 0)
	out := a.Div(b)
	if out.IsValid(0) {
		t.Fatalf("division by zero should leave axis invalid")
	}
}

func TestPosValuesDistance(t *testing.T) {
	a := NewPosValues(0, 0, 0)
	b := NewPosValues(3, 4, 0)
	mask := [MaxAxes]bool{true, true, true}
	d := a.Distance(b, mask)
	if d != 5 {
		t.Fatalf("distance = %v, want 5", d)
	}
}

func TestParamValsOutOfRange(t *testing.T) {
	var p ParamVals[int32]
	p.Set(-1, 5)
	p.Set(MaxAxes, 5)
	if p.Get(-1) != 0 || p.Get(MaxAxes) != 0 {
		t.Fatalf("out-of-range Get should return zero value")
	}
}

func TestEndstopChecksRoundTrip(t *testing.T) {
	var e EndstopChecks
	e.Set(0, EndstopMin, CheckHit)
	e.Set(0, EndstopMax, CheckNotHit)
	e.Set(1, EndstopMin, CheckTowards)

	data := e.Serialize()
	got := DeserializeEndstopChecks(data)

	if got.Get(0, EndstopMin) != CheckHit {
		t.Fatalf("axis0 min = %v, want CheckHit", got.Get(0, EndstopMin))
	}
	if got.Get(0, EndstopMax) != CheckNotHit {
		t.Fatalf("axis0 max = %v, want CheckNotHit", got.Get(0, EndstopMax))
	}
	if got.Get(1, EndstopMin) != CheckTowards {
		t.Fatalf("axis1 min = %v, want CheckTowards", got.Get(1, EndstopMin))
	}
	if !got.Any() {
		t.Fatalf("expected Any() true after round trip")
	}
}

func TestEndstopChecksReverseSwapsHitNotHit(t *testing.T) {
	var e EndstopChecks
	e.Set(0, EndstopMin, CheckHit)
	e.Set(1, EndstopMin, CheckNotHit)
	e.Set(2, EndstopMin, CheckTowards)

	rev := e.Reverse()
	if rev.Get(0, EndstopMin) != CheckNotHit {
		t.Fatalf("Hit should reverse to NotHit")
	}
	if rev.Get(1, EndstopMin) != CheckHit {
		t.Fatalf("NotHit should reverse to Hit")
	}
	if rev.Get(2, EndstopMin) != CheckTowards {
		t.Fatalf("Towards should be unchanged by reverse")
	}
}

func TestEndstopChecksAllRequiresEveryAxis(t *testing.T) {
	var e EndstopChecks
	e.Set(0, EndstopMin, CheckHit)
	if e.All() {
		t.Fatalf("All() should be false until every axis has a check")
	}
	e.Set(1, EndstopMin, CheckHit)
	e.Set(2, EndstopMin, CheckHit)
	if !e.All() {
		t.Fatalf("All() should be true once every axis has a check")
	}
}

func TestEndstopChecksClear(t *testing.T) {
	var e EndstopChecks
	e.Set(0, EndstopMin, CheckHit)
	e.Clear()
	if e.Any() {
		t.Fatalf("Clear() should reset every check to None")
	}
}
