package sanitize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"empty", "", ""},
		{"plain", "Kashyapa", "Kashyapa"},
		{"trims", "  Rohini  ", "Rohini"},
		{"script removed", "Ravi<script>alert('x')</script>", "Ravi"},
		{"tags stripped", "<b>Bold</b> name", "Bold name"},
		{"ampersand kept", "Tom & Jerry", "Tom & Jerry"},
		{"handler attribute", `<img src=x onerror="alert(1)">Sita`, "Sita"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.in); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextPtr(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Error("nil should stay nil")
	}
	in := "<i>Hyderabad</i>"
	if got := TextPtr(&in); *got != "Hyderabad" {
		t.Errorf("TextPtr = %q", *got)
	}
}
