package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// TestModeEnv names the variable that keeps binaries from dialling
// Postgres and Redis. Any value strconv.ParseBool accepts as true enables it.
const TestModeEnv = "CLASSBOARD_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeInit sync.Once
)

func loadTestMode() {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.Store(err == nil && on)
}

// InTestMode reports whether startup side effects should be skipped.
func InTestMode() bool {
	testModeInit.Do(loadTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads TestModeEnv, for tests that change it with t.Setenv.
func RefreshTestMode() {
	testModeInit.Do(func() {})
	loadTestMode()
}
