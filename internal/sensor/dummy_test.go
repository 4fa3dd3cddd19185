package sensor

import (
	"testing"
	"time"
)

func TestDummyStaysInRange(t *testing.T) {
	now := time.Unix(0, 0)
	d := NewDummy(WithSeed(42), WithClock(func() time.Time { return now }))
	for i := range 500 {
		now = now.Add(time.Duration(1+i%5) * time.Second)
		v, err := d.ReadRaw()
		if err != nil {
			t.Fatalf("ReadRaw: %v", err)
		}
		if v < 0 || v >= dummyRange {
			t.Fatalf("value %d out of range", v)
		}
	}
	d.Cleanup()
	d.Cleanup()
}

func TestDummyHoldsWithinSecond(t *testing.T) {
	now := time.Unix(0, 0)
	d := NewDummy(WithSeed(1), WithClock(func() time.Time { return now }))
	now = now.Add(500 * time.Millisecond)
	v, _ := d.ReadRaw()
	if v != 0 {
		t.Fatalf("value moved before a whole second elapsed: %d", v)
	}
}

func TestDummyIsDeterministicWithSeed(t *testing.T) {
	run := func() []int64 {
		now := time.Unix(0, 0)
		d := NewDummy(WithSeed(7), WithClock(func() time.Time { return now }))
		out := make([]int64, 0, 20)
		for range 20 {
			now = now.Add(2 * time.Second)
			v, _ := d.ReadRaw()
			out = append(out, v)
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("walk diverged at %d: %d vs %d", i, a[i], b[i])
		}
	}
}
