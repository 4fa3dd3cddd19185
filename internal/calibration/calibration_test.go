package calibration

import (
	"errors"
	"math"
	"testing"
)

func testParams() Parameters {
	return Parameters{
		KeyEmptyDecanterValue: 400.0,
		KeyFullValue:          900.0,
		KeyMaxNCups:           10.0,
	}
}

func TestEstimateCupsAtReferencePoints(t *testing.T) {
	m, err := ModelFrom(testParams())
	if err != nil {
		t.Fatalf("ModelFrom: %v", err)
	}
	if n, ok := m.EstimateCups(900); !ok || n != 10 {
		t.Fatalf("full = %v, %v; want 10", n, ok)
	}
	if n, ok := m.EstimateCups(400); !ok || n != 0 {
		t.Fatalf("empty = %v, %v; want 0", n, ok)
	}
	if n, ok := m.EstimateCups(500); !ok || math.Abs(n-2) > 1e-12 {
		t.Fatalf("500 = %v, %v; want 2", n, ok)
	}
}

func TestEstimateCupsUndefinedForNonFiniteInput(t *testing.T) {
	m, _ := ModelFrom(testParams())
	if _, ok := m.EstimateCups(math.NaN()); ok {
		t.Fatal("NaN raw value should be undefined")
	}
	if _, ok := m.EstimateCups(math.Inf(1)); ok {
		t.Fatal("infinite raw value should be undefined")
	}
}

func TestModelFromRejectsDegenerateCalibration(t *testing.T) {
	cases := map[string]Parameters{
		"equal refs": {KeyEmptyDecanterValue: 500.0, KeyFullValue: 500.0, KeyMaxNCups: 10.0},
		"zero cups":  {KeyEmptyDecanterValue: 400.0, KeyFullValue: 900.0, KeyMaxNCups: 0.0},
		"missing":    {KeyEmptyDecanterValue: 400.0, KeyMaxNCups: 10.0},
		"text":       {KeyEmptyDecanterValue: "heavy", KeyFullValue: 900.0, KeyMaxNCups: 10.0},
		"nan":        {KeyEmptyDecanterValue: math.NaN(), KeyFullValue: 900.0, KeyMaxNCups: 10.0},
	}
	for name, params := range cases {
		_, err := ModelFrom(params)
		if !errors.Is(err, ErrCalibration) {
			t.Fatalf("%s: err = %v, want ErrCalibration", name, err)
		}
		var ce *CalibrationError
		if !errors.As(err, &ce) || ce.Key == "" {
			t.Fatalf("%s: expected CalibrationError naming a key, got %v", name, err)
		}
	}
}

func TestModelFromAcceptsNumericStringsAndInts(t *testing.T) {
	m, err := ModelFrom(Parameters{KeyEmptyDecanterValue: "400", KeyFullValue: int64(900), KeyMaxNCups: 10})
	if err != nil {
		t.Fatalf("ModelFrom: %v", err)
	}
	if m.Empty != 400 || m.Full != 900 || m.MaxNCups != 10 {
		t.Fatalf("model = %+v", m)
	}
}

func TestClassifyComingBeforeClamp(t *testing.T) {
	st := Classify(13, true, 10, 1.2)
	if !st.CoffeeComing || st.NCups != 10 || !st.IsCoffee || st.TrayEmpty {
		t.Fatalf("state = %+v", st)
	}
	st = Classify(12, true, 10, 1.2)
	if st.CoffeeComing {
		t.Fatal("exactly 120% must not count as brewing")
	}
}

func TestClassifyUndefinedIsTrayEmpty(t *testing.T) {
	st := Classify(math.NaN(), false, 10, 0)
	if !st.TrayEmpty || st.IsCoffee || st.CoffeeComing || st.NCups != 0 {
		t.Fatalf("state = %+v", st)
	}
}

func TestClassifyNegativeEstimateClampsToZero(t *testing.T) {
	st := Classify(-3, true, 10, 1.2)
	if st.IsCoffee || st.NCups != 0 || st.TrayEmpty {
		t.Fatalf("state = %+v", st)
	}
}

func TestModelClassifyEndToEnd(t *testing.T) {
	m, _ := ModelFrom(testParams())
	st := m.Classify(500, DefaultCoffeeComingRatio)
	if math.Abs(st.NCups-2) > 1e-12 || !st.IsCoffee || st.CoffeeComing || st.TrayEmpty {
		t.Fatalf("state = %+v", st)
	}
}

func TestParametersEqual(t *testing.T) {
	a := Parameters{KeyMaxNCups: int64(10), "note": " kitchen "}
	b := Parameters{KeyMaxNCups: 10.0, "note": "kitchen"}
	if !a.Equal(b) {
		t.Fatal("normalized parameters should be equal")
	}
	c := Parameters{KeyMaxNCups: 10.0, "note": "office"}
	if a.Equal(c) {
		t.Fatal("differing values compared equal")
	}
	d := Parameters{KeyMaxNCups: 10.0}
	if a.Equal(d) {
		t.Fatal("differing key sets compared equal")
	}
	e := Parameters{KeyMaxNCups: 10.0, "other": "kitchen"}
	if a.Equal(e) {
		t.Fatal("differing keys compared equal")
	}
}
