// Package guard switches binaries into test mode when imported by tests.
package guard

import (
	"os"
	"sync"
)

const testModeEnv = "CRM_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}
