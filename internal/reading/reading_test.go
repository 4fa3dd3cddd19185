package reading

import (
	"encoding/json"
	"testing"
)

func TestDatapointsScanRoundTrip(t *testing.T) {
	value, err := Datapoints{1.5, 2, 3.25}.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	var d Datapoints
	if err := d.Scan(value); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(d) != 3 || d[0] != 1.5 || d[2] != 3.25 {
		t.Fatalf("unexpected datapoints %v", d)
	}

	if err := d.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if d != nil {
		t.Fatalf("expected nil datapoints after NULL scan, got %v", d)
	}
	if v, _ := Datapoints(nil).Value(); v != nil {
		t.Fatalf("nil datapoints should store NULL, got %v", v)
	}
}

func TestReadingJSONOmitsDatapointsWhenAbsent(t *testing.T) {
	data, err := json.Marshal(Reading{Timestamp: 10, NCups: 2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded[FieldDatapoints]; ok {
		t.Fatalf("datapoints should be omitted: %s", data)
	}
	for _, field := range Fields[:len(Fields)-1] {
		if _, ok := decoded[field]; !ok {
			t.Fatalf("missing field %q in %s", field, data)
		}
	}
}

func TestProjectKeepsTimestamp(t *testing.T) {
	r := Reading{Timestamp: 42, NCups: 3, IsCoffee: true}
	got := r.Project([]string{FieldNCups, "bogus"})
	if len(got) != 2 {
		t.Fatalf("projection = %v", got)
	}
	if got[FieldTimestamp] != 42.0 || got[FieldNCups] != 3.0 {
		t.Fatalf("projection = %v", got)
	}
	if full := r.Project(nil); len(full) != 8 {
		t.Fatalf("full projection without datapoints should have 8 fields, got %d", len(full))
	}
}
