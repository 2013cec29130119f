// Package testing switches binaries and helpers into test mode when imported
// for side effects from a _test.go file.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// testDefaults keep tests away from real infrastructure unless a variable is set explicitly.
var testDefaults = map[string]string{
	"ODYSSEY_TEST_MODE": "1",
	"GOTENBERG_URL":     "http://127.0.0.1:0",
	"DATA_BACKEND":      "memory",
	"MIGRATE_ON_START":  "false",
}

func ensureTestMode() {
	once.Do(func() {
		for key, value := range testDefaults {
			if key == "ODYSSEY_TEST_MODE" || os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
