package ai

import (
	"testing"
)

func TestUnmarshalFlexible(t *testing.T) {
	type verdict struct {
		Verdict   string `json:"verdict"`
		Reasoning string `json:"reasoning,omitempty"`
	}

	tests := []struct {
		name  string
		input string
		want  verdict
	}{
		{
			name:  "valid json",
			input: `{"verdict":"reject"}`,
			want:  verdict{Verdict: "reject"},
		},
		{
			name:  "unquoted key and single quotes",
			input: `{verdict: 'reject'}`,
			want:  verdict{Verdict: "reject"},
		},
		{
			name:  "trailing comma",
			input: `{"verdict":"reject",}`,
			want:  verdict{Verdict: "reject"},
		},
		{
			name:  "missing closing brace",
			input: `{"verdict":"reject"`,
			want:  verdict{Verdict: "reject"},
		},
		{
			name:  "double-encoded",
			input: `"{ \"verdict\": \"reject\", \"reasoning\": \"same concept\" }"`,
			want:  verdict{Verdict: "reject", Reasoning: "same concept"},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"verdict\": \"reject\"\n}\n",
			want:  verdict{Verdict: "reject"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got verdict
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexibleUnrecoverable(t *testing.T) {
	var got struct {
		Verdict string `json:"verdict"`
	}
	if err := UnmarshalFlexible("no json here at all", &got); err == nil {
		t.Fatal("expected error for unrecoverable input")
	}
}

func TestGenerateSchema(t *testing.T) {
	type wire struct {
		Verdict  string   `json:"verdict"`
		Children []string `json:"children"`
	}

	// Works for both value and pointer inputs.
	if got := GenerateSchema(wire{}); got == nil {
		t.Fatal("GenerateSchema(value) = nil")
	}
	if got := GenerateSchema(&wire{}); got == nil {
		t.Fatal("GenerateSchema(pointer) = nil")
	}
}
