// Package guard is blank-imported by tests that drive a binary's main or
// build full handler stacks. It switches on CLASSBOARD_TEST_MODE and sends
// default slog output to io.Discard unless CLASSBOARD_TEST_LOGS is set.
package guard

import (
	"io"
	"log/slog"
	"os"
)

func init() {
	if _, set := os.LookupEnv("CLASSBOARD_TEST_MODE"); !set {
		_ = os.Setenv("CLASSBOARD_TEST_MODE", "1")
	}
	if os.Getenv("CLASSBOARD_TEST_LOGS") == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	}
}
