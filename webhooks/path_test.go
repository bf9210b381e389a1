package webhooks

import (
	"encoding/json"
	"testing"
)

func TestResolvePath(t *testing.T) {
	data := map[string]any{
		"machine": map[string]any{
			"id":      "m-7",
			"sensors": []any{map[string]any{"kind": "temp"}, map[string]any{"kind": "vibration"}},
		},
		"oee": 0.71,
	}

	if value, ok := ResolvePath(data, "machine.id"); !ok || value != "m-7" {
		t.Fatalf("expected machine.id, got %#v ok=%v", value, ok)
	}
	if value, ok := ResolvePath(data, "machine.sensors.1.kind"); !ok || value != "vibration" {
		t.Fatalf("expected array index resolution, got %#v ok=%v", value, ok)
	}
	if _, ok := ResolvePath(data, "machine.sensors.5.kind"); ok {
		t.Fatalf("expected out of range index to miss")
	}
	if _, ok := ResolvePath(data, "oee.value"); ok {
		t.Fatalf("expected scalar traversal to miss")
	}
	if _, ok := ResolvePath(data, "machine.missing"); ok {
		t.Fatalf("expected missing key to miss")
	}
	if _, ok := ResolvePath(data, ""); ok {
		t.Fatalf("expected empty path to miss")
	}
}

func TestNormalizeDataConvertsStructs(t *testing.T) {
	type machine struct {
		ID         string `json:"id"`
		Department string `json:"department"`
	}
	normalized, err := normalizeData(struct {
		Machine machine `json:"machine"`
		Count   int     `json:"count"`
	}{Machine: machine{ID: "m-1", Department: "assembly"}, Count: 3})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if value, ok := ResolvePath(normalized, "machine.department"); !ok || value != "assembly" {
		t.Fatalf("expected struct fields to resolve, got %#v", value)
	}
	if value, _ := ResolvePath(normalized, "count"); value != json.Number("3") {
		t.Fatalf("expected numbers as json.Number, got %#v", value)
	}
}
