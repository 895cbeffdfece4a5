package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/szweimin/ai-ros/internal/fleet"
)

func TestLoad_Defaults(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "fault_trees.yaml", r.CatalogPath)
	require.Equal(t, 10, r.EvidenceTopK)
	require.Equal(t, 0.1, r.EvidenceBonus)
	require.Equal(t, "info", r.LogLevel)
	require.Equal(t, fleet.DefaultThresholds(), r.FleetThresholds())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
catalog_path: /etc/airos/trees.yaml
evidence_top_k: 5
fleet_min_samples: 7
log_level: debug
`), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/etc/airos/trees.yaml", r.CatalogPath)
	require.Equal(t, 5, r.EvidenceTopK)
	require.Equal(t, 7, r.FleetThresholds().MinSamples)
	require.Equal(t, "debug", r.LogLevel)
	// Untouched keys keep their defaults.
	require.Equal(t, 0.1, r.EvidenceBonus)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airos.yaml")
	require.NoError(t, os.WriteFile(path, []byte("evidence_top_k: 5\n"), 0o644))

	t.Setenv("AIROS_EVIDENCE_TOP_K", "3")
	r, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, r.EvidenceTopK)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"evidence_top_k: 0":         "evidence_top_k",
		"evidence_bonus: 1.5":       "evidence_bonus",
		"fleet_firmware_ratio: 2.0": "fleet_firmware_ratio",
		"fleet_model_ratio: -0.3":   "fleet_model_ratio",
	}
	for body, wantSubstr := range cases {
		path := filepath.Join(t.TempDir(), "airos.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body+"\n"), 0o644))

		_, err := Load(path)
		require.Error(t, err, body)
		require.Contains(t, err.Error(), wantSubstr)
	}
}
