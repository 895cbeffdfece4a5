package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/szweimin/ai-ros/internal/fleet"
)

// Runtime holds the engine tunables. Sources, high to low priority:
// AIROS_* environment variables, an optional YAML file, built-in
// defaults. The fleet thresholds are configuration on purpose: the
// classification rule's evaluation order is fixed, its constants are not.
type Runtime struct {
	CatalogPath        string  `mapstructure:"catalog_path"`
	EvidenceTopK       int     `mapstructure:"evidence_top_k"`
	EvidenceBonus      float64 `mapstructure:"evidence_bonus"`
	ConditionCacheSize int     `mapstructure:"condition_cache_size"`
	FleetMinSamples    int     `mapstructure:"fleet_min_samples"`
	FleetFirmwareRatio float64 `mapstructure:"fleet_firmware_ratio"`
	FleetModelRatio    float64 `mapstructure:"fleet_model_ratio"`
	SweepWorkers       int     `mapstructure:"sweep_workers"`
	ObsBuffer          int     `mapstructure:"obs_buffer"`
	LogLevel           string  `mapstructure:"log_level"`
	LogFile            string  `mapstructure:"log_file"`
}

// Load reads configuration, optionally from the YAML file at path.
func Load(path string) (Runtime, error) {
	v := viper.New()

	v.SetDefault("catalog_path", "fault_trees.yaml")
	v.SetDefault("evidence_top_k", 10)
	v.SetDefault("evidence_bonus", 0.1)
	v.SetDefault("condition_cache_size", 256)
	v.SetDefault("fleet_min_samples", fleet.DefaultMinSamples)
	v.SetDefault("fleet_firmware_ratio", fleet.DefaultFirmwareRatio)
	v.SetDefault("fleet_model_ratio", fleet.DefaultModelRatio)
	v.SetDefault("sweep_workers", fleet.DefaultSweepWorkers)
	v.SetDefault("obs_buffer", 4096)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("AIROS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Runtime{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var r Runtime
	if err := v.Unmarshal(&r); err != nil {
		return Runtime{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := r.validate(); err != nil {
		return Runtime{}, err
	}
	return r, nil
}

func (r Runtime) validate() error {
	if r.EvidenceTopK < 1 {
		return fmt.Errorf("evidence_top_k must be >= 1, got %d", r.EvidenceTopK)
	}
	if r.EvidenceBonus < 0 || r.EvidenceBonus > 1 {
		return fmt.Errorf("evidence_bonus must be in [0,1], got %v", r.EvidenceBonus)
	}
	if r.FleetFirmwareRatio <= 0 || r.FleetFirmwareRatio > 1 {
		return fmt.Errorf("fleet_firmware_ratio must be in (0,1], got %v", r.FleetFirmwareRatio)
	}
	if r.FleetModelRatio <= 0 || r.FleetModelRatio > 1 {
		return fmt.Errorf("fleet_model_ratio must be in (0,1], got %v", r.FleetModelRatio)
	}
	return nil
}

// FleetThresholds projects the fleet tunables.
func (r Runtime) FleetThresholds() fleet.Thresholds {
	return fleet.Thresholds{
		MinSamples:    r.FleetMinSamples,
		FirmwareRatio: r.FleetFirmwareRatio,
		ModelRatio:    r.FleetModelRatio,
	}
}
