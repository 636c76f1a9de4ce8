package main

import "testing"

func TestOutputName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"order.wf.yaml", "order.yaml"},
		{"order.yaml", "order.yaml"},
		{"dir/nested/batch.wf.yml", "batch.yaml"},
		{"plain", "plain.yaml"},
	}

	for _, tt := range tests {
		if got := outputName(tt.path); got != tt.want {
			t.Errorf("outputName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
