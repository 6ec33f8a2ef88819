package instance

import (
	"os"
	"strings"
)

// GetID identifies the running process in logs and lock ownership. Explicit
// configuration wins over the platform dyno name; local runs fall back to
// "<kind>-local".
func GetID(kind string) string {
	for _, env := range []string{"UNINOTE_INSTANCE_ID", "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(env)); id != "" {
			return id
		}
	}
	if kind == "" {
		kind = "uninote"
	}
	return kind + "-local"
}
