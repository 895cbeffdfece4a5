package fleet

import (
	"sort"

	"github.com/szweimin/ai-ros/internal/snapshot"
)

// Classification of an error's spread across a fleet.
type Classification string

const (
	ClassificationIsolated         Classification = "isolated"
	ClassificationModelPattern     Classification = "model_pattern"
	ClassificationFirmwarePattern  Classification = "firmware_pattern"
	ClassificationInsufficientData Classification = "insufficient_data"
)

// Classification thresholds. Named so the rule can be tuned as
// configuration; the evaluation order in Correlate is fixed.
const (
	DefaultMinSamples    = 3
	DefaultFirmwareRatio = 0.5
	DefaultModelRatio    = 0.3
)

type Thresholds struct {
	MinSamples    int     `yaml:"min_samples" json:"min_samples"`
	FirmwareRatio float64 `yaml:"firmware_ratio" json:"firmware_ratio"`
	ModelRatio    float64 `yaml:"model_ratio" json:"model_ratio"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSamples:    DefaultMinSamples,
		FirmwareRatio: DefaultFirmwareRatio,
		ModelRatio:    DefaultModelRatio,
	}
}

// FirmwareStats counts robots per firmware version within the fleet.
type FirmwareStats struct {
	Total    int `json:"total"`
	Affected int `json:"affected"`
}

// Assessment is the fleet-level verdict for one error code: how many
// robots of the target's model still report it in their most recent
// snapshot, and whether the spread points at firmware, model, or a
// single unit.
type Assessment struct {
	Classification          Classification           `json:"classification"`
	ErrorCode               string                   `json:"error_code"`
	Model                   string                   `json:"model"`
	AffectedCount           int                      `json:"affected_count"`
	TotalCount              int                      `json:"total_count"`
	AffectedRatio           float64                  `json:"affected_ratio"`
	FirmwareBreakdown       map[string]FirmwareStats `json:"firmware_breakdown,omitempty"`
	AffectedFirmware        string                   `json:"affected_firmware,omitempty"`
	DominantHealthyFirmware string                   `json:"dominant_healthy_firmware,omitempty"`
}

// Correlator classifies error spread over snapshot history. Stateless;
// safe for concurrent use.
type Correlator struct {
	thresholds Thresholds
}

func NewCorrelator(thresholds Thresholds) *Correlator {
	if thresholds.MinSamples <= 0 {
		thresholds.MinSamples = DefaultMinSamples
	}
	if thresholds.FirmwareRatio <= 0 {
		thresholds.FirmwareRatio = DefaultFirmwareRatio
	}
	if thresholds.ModelRatio <= 0 {
		thresholds.ModelRatio = DefaultModelRatio
	}
	return &Correlator{thresholds: thresholds}
}

// Correlate filters snapshots to the target robot's model, reduces each
// robot to its most recent snapshot in the window, and applies the
// ordered classification rules:
//
//  1. fewer than MinSamples robots -> insufficient_data
//  2. ratio >= FirmwareRatio and every affected robot shares one
//     firmware distinct from the unaffected robots' dominant version
//     -> firmware_pattern
//  3. ratio >= ModelRatio -> model_pattern
//  4. otherwise -> isolated
func (c *Correlator) Correlate(errorCode string, snapshots []snapshot.RuntimeSnapshot, target snapshot.RuntimeSnapshot) Assessment {
	latest := make(map[string]snapshot.RuntimeSnapshot)
	for _, snap := range snapshots {
		if snap.Model != target.Model {
			continue
		}
		cur, ok := latest[snap.RobotID]
		if !ok || snap.Timestamp.After(cur.Timestamp) {
			latest[snap.RobotID] = snap
		}
	}

	a := Assessment{
		ErrorCode:         errorCode,
		Model:             target.Model,
		TotalCount:        len(latest),
		FirmwareBreakdown: make(map[string]FirmwareStats),
	}

	affectedFirmware := make(map[string]struct{})
	healthyFirmware := make(map[string]int)
	for _, snap := range latest {
		stats := a.FirmwareBreakdown[snap.Firmware]
		stats.Total++
		if snap.HasError(errorCode) {
			stats.Affected++
			a.AffectedCount++
			affectedFirmware[snap.Firmware] = struct{}{}
		} else {
			healthyFirmware[snap.Firmware]++
		}
		a.FirmwareBreakdown[snap.Firmware] = stats
	}

	if a.TotalCount > 0 {
		a.AffectedRatio = float64(a.AffectedCount) / float64(a.TotalCount)
	}
	if len(affectedFirmware) == 1 {
		for fw := range affectedFirmware {
			a.AffectedFirmware = fw
		}
	}
	a.DominantHealthyFirmware = dominantFirmware(healthyFirmware)

	switch {
	case a.TotalCount < c.thresholds.MinSamples:
		a.Classification = ClassificationInsufficientData
	case a.AffectedRatio >= c.thresholds.FirmwareRatio &&
		a.AffectedFirmware != "" &&
		a.DominantHealthyFirmware != "" &&
		a.AffectedFirmware != a.DominantHealthyFirmware:
		a.Classification = ClassificationFirmwarePattern
	case a.AffectedRatio >= c.thresholds.ModelRatio:
		a.Classification = ClassificationModelPattern
	default:
		a.Classification = ClassificationIsolated
	}
	return a
}

// dominantFirmware picks the most common version; ties resolve to the
// lexicographically smallest so results stay deterministic.
func dominantFirmware(counts map[string]int) string {
	versions := make([]string, 0, len(counts))
	for fw := range counts {
		versions = append(versions, fw)
	}
	sort.Strings(versions)

	best := ""
	bestCount := 0
	for _, fw := range versions {
		if counts[fw] > bestCount {
			best = fw
			bestCount = counts[fw]
		}
	}
	return best
}
