package normalize

import "testing"

func TestNormalizers(t *testing.T) {
	tests := []struct {
		fn    string
		norm  func(string) string
		input string
		want  string
	}{
		{"Name", Name, "  Ada\tLovelace \n", "Ada Lovelace"},
		{"Name", Name, "Ada   Lovelace", "Ada Lovelace"},
		{"Name", Name, "ADA", "ADA"},
		{"Name", Name, "   ", ""},
		{"Role", Role, "  Admin ", "admin"},
		{"Role", Role, "", ""},
		{"TriggerType", TriggerType, " PASSWORD_RESET\n", "password_reset"},
		{"QueryParam", QueryParam, "  Europe/London ", "Europe/London"},
		{"QueryParam", QueryParam, "template_saved", "template_saved"},
	}

	for _, tt := range tests {
		if got := tt.norm(tt.input); got != tt.want {
			t.Errorf("%s(%q) = %q, want %q", tt.fn, tt.input, got, tt.want)
		}
	}
}
