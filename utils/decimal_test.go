package utils

import (
	"encoding/json"
	"testing"
)

func TestParseAmount_AcceptsFormattedStrings(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"20000", "20000"},
		{"20,000", "20000"},
		{"$ 1,000", "1000"},
		{"USD -20,000", "-20000"},
		{"-1,234.50", "-1234.5"},
		{"  1,234.50  ", "1234.5"},
	}
	for _, tc := range cases {
		d, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q) error: %v", tc.in, err)
		}
		if d.String() != tc.expected {
			t.Fatalf("ParseAmount(%q) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}
}

func TestParseAmount_RejectsEmpty(t *testing.T) {
	for _, in := range []string{"", "USD", "  "} {
		if _, err := ParseAmount(in); err == nil {
			t.Fatalf("ParseAmount(%q) expected error", in)
		}
	}
}

func TestAmount_UnmarshalJSON(t *testing.T) {
	var req struct {
		A Amount  `json:"a"`
		B Amount  `json:"b"`
		C *Amount `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 1000.25, "b": "2,500", "c": null}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.A.String() != "1000.25" {
		t.Fatalf("a expected 1000.25, got %s", req.A.String())
	}
	if req.B.String() != "2500" {
		t.Fatalf("b expected 2500, got %s", req.B.String())
	}
	if req.C != nil {
		t.Fatalf("c expected nil, got %v", req.C)
	}
}
