package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"demo.mp4", "demo.mp4"},
		{"  a/b\\c:d  ", "a-b-c-d"},
		{`what?"<>|`, "what"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := SanitizeFileName(tc.in); got != tc.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("Demo Studio!"); got != "demo_studio" {
		t.Fatalf("unexpected token: %q", got)
	}
	if got := SanitizeToken("   "); got != "unknown" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
