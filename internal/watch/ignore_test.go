package watch

import "testing"

func TestIgnore_Match(t *testing.T) {
	ig := NewIgnore(".git/", "*.log", "/dist", "!keep.log", "# comment", "")

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{".git", true, true},
		{".git/HEAD", false, true},
		{"sub/.git/config", false, true},
		{".git", false, false},
		{"app.log", false, true},
		{"logs/app.log", false, true},
		{"keep.log", false, false},
		{"dist", true, true},
		{"dist/bundle.js", false, true},
		{"src/dist/bundle.js", false, false},
		{"main.go", false, false},
		{".", true, false},
	}
	for _, tt := range tests {
		if got := ig.Match(tt.path, tt.isDir); got != tt.want {
			t.Errorf("Match(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
		}
	}
}
