package models

import (
	"database/sql/driver"
	"encoding/json"
	"testing"
)

// TestGeometryImplementsInterfaces verifies Geometry implements required interfaces
func TestGeometryImplementsInterfaces(t *testing.T) {
	var _ driver.Valuer = Geometry{}

	var g Geometry
	var scanner interface{} = &g
	if _, ok := scanner.(interface{ Scan(interface{}) error }); !ok {
		t.Error("Geometry does not implement sql.Scanner interface")
	}
}

// TestGeometryValue tests the Value method (writing to database)
func TestGeometryValue(t *testing.T) {
	tests := []struct {
		name     string
		geometry Geometry
		wantNil  bool
	}{
		{
			name:     "valid polygon",
			geometry: *NewPolygon([][][2]float64{{{21.2, 44.8}, {21.3, 44.8}, {21.3, 44.9}, {21.2, 44.8}}}),
			wantNil:  false,
		},
		{
			name:     "empty geometry",
			geometry: Geometry{},
			wantNil:  true,
		},
		{
			name:     "null coordinates",
			geometry: Geometry{Type: GeometryPolygon, Coordinates: json.RawMessage("null")},
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, err := tt.geometry.Value()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil && val != nil {
				t.Errorf("expected nil value, got %v", val)
			}
			if !tt.wantNil {
				s, ok := val.(string)
				if !ok {
					t.Fatalf("expected string value, got %T", val)
				}
				var decoded Geometry
				if err := json.Unmarshal([]byte(s), &decoded); err != nil {
					t.Fatalf("value is not valid GeoJSON: %v", err)
				}
				if decoded.Type != GeometryPolygon {
					t.Errorf("expected type %s, got %s", GeometryPolygon, decoded.Type)
				}
			}
		})
	}
}

// TestGeometryScan tests the Scan method (reading from database)
func TestGeometryScan(t *testing.T) {
	tests := []struct {
		name      string
		input     interface{}
		wantType  string
		wantError bool
	}{
		{
			name:     "bytes",
			input:    []byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`),
			wantType: GeometryPolygon,
		},
		{
			name:     "string",
			input:    `{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]]]}`,
			wantType: GeometryMultiPolygon,
		},
		{
			name:     "nil leaves geometry empty",
			input:    nil,
			wantType: "",
		},
		{
			name:      "unsupported type",
			input:     42,
			wantError: true,
		},
		{
			name:      "invalid json",
			input:     []byte(`{"type":`),
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g Geometry
			err := g.Scan(tt.input)

			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if g.Type != tt.wantType {
				t.Errorf("expected type %q, got %q", tt.wantType, g.Type)
			}
		})
	}
}

func TestGeometryHasCoordinates(t *testing.T) {
	polygon := NewPolygon([][][2]float64{{{0, 0}, {1, 1}}})

	tests := []struct {
		name     string
		geometry *Geometry
		want     bool
	}{
		{name: "nil", geometry: nil, want: false},
		{name: "no coordinates", geometry: &Geometry{Type: GeometryPolygon}, want: false},
		{name: "polygon", geometry: polygon, want: true},
		{name: "feature wrapper", geometry: &Geometry{Type: GeometryFeature, Geometry: polygon}, want: true},
		{name: "empty feature", geometry: &Geometry{Type: GeometryFeature}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.geometry.HasCoordinates(); got != tt.want {
				t.Errorf("HasCoordinates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGeometryRings(t *testing.T) {
	g := &Geometry{Type: GeometryPolygon, Coordinates: json.RawMessage(`[[[1,2],[3,4]]]`)}
	rings, err := g.Rings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rings) != 1 || len(rings[0]) != 2 || rings[0][1] != [2]float64{3, 4} {
		t.Errorf("unexpected rings: %v", rings)
	}

	flat := &Geometry{Type: GeometryPolygon, Coordinates: json.RawMessage(`[1,2,3,4]`)}
	if _, err := flat.Rings(); err == nil {
		t.Error("expected error decoding flat coordinates as rings")
	}
}

func TestFeatureJSON(t *testing.T) {
	f := NewFeature(NewPolygon(nil), nil)

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out["type"] != "Feature" {
		t.Errorf("expected type Feature, got %v", out["type"])
	}
	props, ok := out["properties"].(map[string]interface{})
	if !ok || len(props) != 0 {
		t.Errorf("expected empty properties object, got %v", out["properties"])
	}

	fc := NewFeatureCollection(nil)
	data, _ = json.Marshal(fc)
	if string(data) != `{"type":"FeatureCollection","features":[]}` {
		t.Errorf("unexpected collection JSON: %s", data)
	}
}
