package memutils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, CheckPow2(uint(1), "alignment"))
	require.NoError(t, CheckPow2(uint(256), "alignment"))
	require.NoError(t, CheckPow2(uint(65536), "alignment"))

	err := CheckPow2(uint(768), "alignment")
	require.Error(t, err)
	require.ErrorIs(t, err, PowerOfTwoError)
}

func TestAlignUp(t *testing.T) {
	require.Equal(t, 0, AlignUp(0, 256))
	require.Equal(t, 256, AlignUp(1, 256))
	require.Equal(t, 256, AlignUp(256, 256))
	require.Equal(t, 512, AlignUp(257, 256))
	require.Equal(t, 1024, AlignUp(1000, 256))
}

func TestAlignDown(t *testing.T) {
	require.Equal(t, 0, AlignDown(255, 256))
	require.Equal(t, 256, AlignDown(256, 256))
	require.Equal(t, 256, AlignDown(511, 256))
}
