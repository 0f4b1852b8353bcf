package config

import (
	"os"
	"regexp"
	"testing"
)

func TestREADMEConfigDefaultsStayInSync(t *testing.T) {
	data, err := os.ReadFile("../../README.md")
	if err != nil {
		t.Fatalf("read README: %v", err)
	}
	readme := string(data)

	assertDocDefault(t, readme, "backend.kind", "paper")
	assertDocDefault(t, readme, "backend.generate_timeout", "3m")
	assertDocDefault(t, readme, "probe.debounce", "300ms")
	assertDocDefault(t, readme, "probe.cache_ttl", "60s")
	assertDocDefault(t, readme, "weeks.refresh_interval", "1h")
	assertDocDefault(t, readme, "history.capacity", "200")
	assertDocDefault(t, readme, "paper.max_legs", "10")
}

func assertDocDefault(t *testing.T, readme, field, want string) {
	t.Helper()
	pattern := "\\| `" + regexp.QuoteMeta(field) + "` \\| [^\\n]*? \\| `([^`]+)` \\|"
	re := regexp.MustCompile(pattern)
	m := re.FindStringSubmatch(readme)
	if len(m) != 2 {
		t.Fatalf("field %q not found in README config table", field)
	}
	if m[1] != want {
		t.Fatalf("README default mismatch for %s: want %s got %s", field, want, m[1])
	}
}
