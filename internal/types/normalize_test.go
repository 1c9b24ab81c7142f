package types

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Daily Log", "dailylog"},
		{"daily_log", "dailylog"},
		{"DAILY-LOG", "dailylog"},
		{"Due Date", "duedate"},
		{"  spaced  out  ", "spacedout"},
		{"Q3 Review!", "q3review"},
		{"émigré", "émigré"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNodeNameOrEmpty(t *testing.T) {
	name := "Apollo"
	if got := (&Node{ID: "n1", Name: &name}).NameOrEmpty(); got != "Apollo" {
		t.Errorf("named = %q", got)
	}
	if got := (&Node{ID: "n1"}).NameOrEmpty(); got != "" {
		t.Errorf("unnamed = %q", got)
	}
}
