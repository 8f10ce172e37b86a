// Package feed implements the personalized feed pipeline: candidate
// generation, quick scoring, full multi-factor scoring, explore/exploit
// interleaving, and creator diversity enforcement.
package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Weights holds the maximum contribution of each full-scorer factor. The
// defaults are the calibrated production caps; a calibration file can scale
// individual factors for A/B experiments without a code change.
type Weights struct {
	CreatorAffinity     float64 `json:"creator_affinity"`     // default 40
	ContentSimilarity   float64 `json:"content_similarity"`   // default 30
	Collaborative       float64 `json:"collaborative"`        // default 25
	TrendingVelocity    float64 `json:"trending_velocity"`    // default 20
	Media               float64 `json:"media"`                // default 15
	DomainAffinity      float64 `json:"domain_affinity"`      // default 15
	EngagementQuality   float64 `json:"engagement_quality"`   // default 10
	SessionRelevance    float64 `json:"session_relevance"`    // default 20
	CreatorSatisfaction float64 `json:"creator_satisfaction"` // default 15
}

// CalibrationConfig is the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// DefaultWeights returns the factor caps from the ranking contract.
func DefaultWeights() *Weights {
	return &Weights{
		CreatorAffinity:     40,
		ContentSimilarity:   30,
		Collaborative:       25,
		TrendingVelocity:    20,
		Media:               15,
		DomainAffinity:      15,
		EngagementQuality:   10,
		SessionRelevance:    20,
		CreatorSatisfaction: 15,
	}
}

// LoadCalibration loads factor weights from a JSON calibration file. A
// missing or unparsable file degrades to defaults with a warning; partial
// configurations merge with defaults so a file may override a single factor.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read feed calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse feed calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	return MergeCalibration(DefaultWeights(), &config.Weights), nil
}

// MergeCalibration merges override weights onto base weights. Only non-zero
// override values are applied, allowing partial calibration files.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base
	if override.CreatorAffinity != 0 {
		result.CreatorAffinity = override.CreatorAffinity
	}
	if override.ContentSimilarity != 0 {
		result.ContentSimilarity = override.ContentSimilarity
	}
	if override.Collaborative != 0 {
		result.Collaborative = override.Collaborative
	}
	if override.TrendingVelocity != 0 {
		result.TrendingVelocity = override.TrendingVelocity
	}
	if override.Media != 0 {
		result.Media = override.Media
	}
	if override.DomainAffinity != 0 {
		result.DomainAffinity = override.DomainAffinity
	}
	if override.EngagementQuality != 0 {
		result.EngagementQuality = override.EngagementQuality
	}
	if override.SessionRelevance != 0 {
		result.SessionRelevance = override.SessionRelevance
	}
	if override.CreatorSatisfaction != 0 {
		result.CreatorSatisfaction = override.CreatorSatisfaction
	}
	return &result
}
