package app

import (
	"os"
	"strconv"
	"sync"
)

const testModeEnv = "COLLABHUB_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	on, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	return on
})

// InTestMode reports whether the process runs under tests, where rate limiting
// and process startup are skipped. The flag is read once.
func InTestMode() bool {
	return testMode()
}
