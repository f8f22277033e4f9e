package pgvector

import (
	"strings"
	"testing"
)

func TestFormatVector(t *testing.T) {
	testCases := []struct {
		description string
		vector      []float32
		expect      string
	}{
		{
			description: "plain values",
			vector:      []float32{0.25, -1, 0.5},
			expect:      "[0.25,-1,0.5]",
		},
		{
			description: "single value",
			vector:      []float32{1},
			expect:      "[1]",
		},
		{
			description: "empty vector",
			vector:      nil,
			expect:      "[]",
		},
	}
	for _, testCase := range testCases {
		if got := formatVector(testCase.vector); got != testCase.expect {
			t.Errorf("%v: expected %q, got %q", testCase.description, testCase.expect, got)
		}
	}
}

func TestVectorColumn(t *testing.T) {
	fixed := &Store{dimension: 1536}
	if got := fixed.vectorColumn(); got != "vector(1536)" {
		t.Errorf("expected typed column, got %q", got)
	}
	open := &Store{}
	if got := open.vectorColumn(); got != "vector" {
		t.Errorf("expected untyped column, got %q", got)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	encoded, err := encodeMetadata(map[string]interface{}{"source": "/corpus/vacation.txt", "page": 3})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := decodeMetadata(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["source"] != "/corpus/vacation.txt" {
		t.Errorf("expected source, got %v", decoded["source"])
	}

	empty, err := decodeMetadata(nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty metadata, got %v (%v)", empty, err)
	}

	if _, err := encodeMetadata(map[string]interface{}{"bad": func() {}}); err == nil {
		t.Errorf("expected error for unencodable metadata")
	}
}

func TestNewStore_RequiresDSN(t *testing.T) {
	_, err := NewStore()
	if err == nil || !strings.Contains(err.Error(), "dsn required") {
		t.Fatalf("expected dsn error, got %v", err)
	}
}
