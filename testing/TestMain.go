// Package testing is blank-imported by test packages to force test mode
// before any package-level configuration is read.
package testing

import (
	"os"
	stdtesting "testing"

	"github.com/pnar-online/pnar-api/internal/testing/guard"
)

func init() {
	guard.Enable()
}

func TestMain(m *stdtesting.M) {
	guard.Enable()
	os.Exit(m.Run())
}
