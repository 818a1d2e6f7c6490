package buildinfo

import (
	"strings"
	"testing"
)

func TestTemplate(t *testing.T) {
	old := Version
	Version = "v1.2.3"
	t.Cleanup(func() { Version = old })

	got := Template()
	if !strings.HasPrefix(got, "{{.Name}} version v1.2.3\n") {
		t.Errorf("Template() = %q", got)
	}
	for _, want := range []string{"commit: ", "built: ", "go: go"} {
		if !strings.Contains(got, want) {
			t.Errorf("Template() missing %q: %q", want, got)
		}
	}
}

func TestLdflagsWin(t *testing.T) {
	oldCommit, oldDate := Commit, Date
	Commit, Date = "abc123", "2026-01-01"
	t.Cleanup(func() { Commit, Date = oldCommit, oldDate })

	commit, date := vcs()
	if commit != "abc123" || date != "2026-01-01" {
		t.Errorf("vcs() = %q, %q, want ldflags values", commit, date)
	}
}
