package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInTestModeSetByTestingPackage(t *testing.T) {
	// router_test imports the testing package, which forces the flag on.
	require.True(t, InTestMode())
}

func TestDetectTestModeReadsEnv(t *testing.T) {
	t.Cleanup(detectTestMode)
	t.Setenv(testModeEnv, "0")

	detectTestMode()
	require.False(t, testModeFlag.Load())

	t.Setenv(testModeEnv, "1")
	detectTestMode()
	require.True(t, testModeFlag.Load())
}
