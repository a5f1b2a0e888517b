package emov2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ValidateDefault(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfig_ValidateErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero input channels", func(c *Config) { c.DimIn = 0 }, "DimIn"},
		{"zero classes", func(c *Config) { c.NumClasses = 0 }, "NumClasses"},
		{"short depths", func(c *Config) { c.Depths = []int{1, 2} }, "Depths"},
		{"short windows", func(c *Config) { c.WindowSizes = nil }, "WindowSizes"},
		{"zero depth", func(c *Config) { c.Depths[2] = 0 }, "depth"},
		{"head mismatch", func(c *Config) { c.DimHeads[1] = 48 }, "not divisible"},
		{"odd stem dim", func(c *Config) { c.EmbedDims[0] = 63; c.DimHeads[0] = 63 }, "even"},
		{"out index high", func(c *Config) { c.OutIndices = []int{5} }, "output index"},
		{"out index negative", func(c *Config) { c.OutIndices = []int{-1} }, "output index"},
		{"frozen out of range", func(c *Config) { c.FrozenStages = 5 }, "FrozenStages"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestOpKind_String(t *testing.T) {
	assert.Equal(t, "conv", OpConv.String())
	assert.Equal(t, "attn_remote", OpAttnRemote.String())
	assert.Equal(t, "attn_close", OpAttnClose.String())
	assert.Equal(t, "attn_hybrid", OpAttnHybrid.String())
}
