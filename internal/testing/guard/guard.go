// Package guard switches the process into test mode. Importing it for side
// effects is enough; Enable exists for callers that need to be explicit.
package guard

import (
	"os"
	"sync"
)

// EnvTestMode is read by app.IsTestMode.
const EnvTestMode = "PNAR_TEST_MODE"

// testSecret is only ever used when no JWT_SECRET is exported.
const testSecret = "pnar-test-secret-0123456789abcdef0123456789"

var once sync.Once

// Enable marks the process as running under tests and fills in the
// environment a test binary needs to load configuration.
func Enable() {
	once.Do(func() {
		if os.Getenv(EnvTestMode) == "" {
			_ = os.Setenv(EnvTestMode, "1")
		}
		if os.Getenv("JWT_SECRET") == "" {
			_ = os.Setenv("JWT_SECRET", testSecret)
		}
	})
}

func init() {
	Enable()
}
