package fingerprint

import "testing"

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "empty input",
			input:    []byte{},
			expected: "d41d8cd98f00b204e9800998ecf8427e",
		},
		{
			name:     "known value",
			input:    []byte("hello world"),
			expected: "5eb63bbbe01eeed093cb22bb8f5acdc3",
		},
		{
			name:     "nil input matches empty",
			input:    nil,
			expected: "d41d8cd98f00b204e9800998ecf8427e",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sum(tt.input); got != tt.expected {
				t.Errorf("Sum() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSumDeterministic(t *testing.T) {
	data := []byte("a photo of a cat")

	first := Sum(data)
	second := Sum(data)
	if first != second {
		t.Errorf("Sum is not deterministic: %q != %q", first, second)
	}

	changed := Sum([]byte("a photo of a dog"))
	if changed == first {
		t.Error("Different content produced the same fingerprint")
	}
}
