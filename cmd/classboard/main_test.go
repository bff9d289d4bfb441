package main

import (
	"testing"

	_ "github.com/classboard/classboard/internal/testing/guard"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	main()
}
