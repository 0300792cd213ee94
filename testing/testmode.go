// Package testing marks the process as a test run when imported for side
// effects by a test binary.
package testing

import "os"

// EnvTestMode is read by app.InTestMode.
const EnvTestMode = "COLLABHUB_TEST_MODE"

func init() {
	_ = os.Setenv(EnvTestMode, "1")
}
