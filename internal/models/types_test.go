package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseIndexType(t *testing.T) {
	tests := []struct {
		input   string
		want    IndexType
		wantErr bool
	}{
		{input: "NDVI", want: IndexNDVI},
		{input: "ndmi", want: IndexNDMI},
		{input: " Ndre ", want: IndexNDRE},
		{input: "EVI", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseIndexType(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseIndexType(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2024-03-15" {
		t.Errorf("expected 2024-03-15, got %s", d)
	}

	if _, err := ParseDate("15.03.2024"); err == nil {
		t.Error("expected error for non ISO date")
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(time.Date(2024, 5, 1, 17, 30, 0, 0, time.UTC))

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `"2024-05-01"` {
		t.Errorf("unexpected JSON: %s", data)
	}

	var back Date
	if err := json.Unmarshal([]byte(`"2024-05-01T10:00:00Z"`), &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Errorf("expected %s, got %s", d, back)
	}

	var zero Date
	data, _ = json.Marshal(zero)
	if string(data) != "null" {
		t.Errorf("expected null for zero date, got %s", data)
	}
}

func TestParseZoneType(t *testing.T) {
	for _, z := range AllZoneTypes {
		got, err := ParseZoneType(string(z))
		if err != nil || got != z {
			t.Errorf("ParseZoneType(%q) = %q, %v", z, got, err)
		}
		if ZoneAdvice(z) == "" {
			t.Errorf("missing advice for %s", z)
		}
	}

	if _, err := ParseZoneType("blue"); err == nil {
		t.Error("expected error for unknown zone")
	}
}

func TestSafeID(t *testing.T) {
	if got := SafeID("1427/2"); got != "1427_2" {
		t.Errorf("SafeID = %q, want 1427_2", got)
	}
	if got := SafeID("a/b/c"); got != "a_b_c" {
		t.Errorf("SafeID = %q, want a_b_c", got)
	}
}
