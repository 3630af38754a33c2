package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(nil))
	assert.NoError(t, ValidateConfig(DefaultConfig()))
	assert.NoError(t, ValidateConfig(Config{"transactions": 10, "label": "nightly", "extra": map[string]any{"x": 1}}))

	for name, cfg := range map[string]Config{
		"negative workers":   {"workers": -1},
		"string number":      {"duration": "600"},
		"empty regions":      {"regions": []any{}},
		"optimization > 100": {"optimization": 120},
	} {
		t.Run(name, func(t *testing.T) {
			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfigAccessors(t *testing.T) {
	cfg := Config{"transactions": 1000, "regions": []any{"europe", 3, "americas"}, "region": "asiaPacific", "workload": "geo"}
	n, ok := cfg.Number("transactions")
	require.True(t, ok)
	assert.Equal(t, float64(1000), n)
	_, ok = cfg.Number("workload")
	assert.False(t, ok)
	n, ok = Config{"workers": " 24 "}.Number("workers")
	require.True(t, ok)
	assert.Equal(t, float64(24), n)
	assert.Equal(t, []string{"europe", "americas"}, cfg.Regions())
	assert.Equal(t, []string{"asiaPacific"}, Config{"region": "asiaPacific"}.Regions())
	assert.Equal(t, "geo", Run{Config: cfg}.Workload())

	clone := cfg.clone()
	clone["workload"] = "other"
	assert.Equal(t, "geo", cfg.String("workload"))
}
