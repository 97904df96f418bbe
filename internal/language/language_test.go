package language

import "testing"

func TestToISO3(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"es", "spa"},
		{"ES", "spa"},
		{"fr", "fre"},
		{"fra", "fre"},
		{"de", "ger"},
		{"pt-BR", "por"},
		{"es_419", "spa"},
		{"japanese", "jpn"},
		{"zho", "chi"},
		{"tlh", "tlh"},
		{"xx", "und"},
		{"", "und"},
	}
	for _, tt := range tests {
		if got := ToISO3(tt.input); got != tt.expected {
			t.Errorf("ToISO3(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestToISO2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"eng", "en"},
		{"ger", "de"},
		{"nld", "nl"},
		{"Spanish", "es"},
		{"pt-PT", "pt"},
		{"xx", "xx"},
		{"klingon", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ToISO2(tt.input); got != tt.expected {
			t.Errorf("ToISO2(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"es", "Spanish"},
		{"deu", "German"},
		{"zh-Hant", "Chinese"},
		{"xyz", "XYZ"},
		{"  ", "Unknown"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.input); got != tt.expected {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
