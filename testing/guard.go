// Package testing flags test runs so the binaries skip runtime startup.
// Import it blank from handler tests that exercise main-adjacent wiring.
package testing

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SCOLARIS_TEST_MODE") == "" {
			_ = os.Setenv("SCOLARIS_TEST_MODE", "1")
		}
	})
}
