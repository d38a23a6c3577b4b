package scoring

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Weights holds the calibrated fit score weight configuration.
// The core components are normalized over the weights that apply to a given
// input; SocialBoost is applied on top of the normalized base score.
type Weights struct {
	Similarity  float64 `json:"similarity"`   // Weight for text/semantic similarity (default: 0.30)
	Mood        float64 `json:"mood"`         // Weight for mood/category match (default: 0.25)
	Price       float64 `json:"price"`        // Weight for price-band fit (default: 0.15)
	Recency     float64 `json:"recency"`      // Weight for time-window fit (default: 0.15)
	Distance    float64 `json:"distance"`     // Weight for distance decay (default: 0.15)
	Taste       float64 `json:"taste"`        // Weight for taste-vector affinity (default: 0.20)
	SocialBoost float64 `json:"social_boost"` // Additive boost weight for social proof (default: 0.10)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configuration
}

// DefaultWeights returns the default fit score weight configuration.
//
// Base formula: fit = (similarity*0.30 + mood*0.25 + price*0.15 + recency*0.15 + distance*0.15 + taste*0.20) / applicable_weight_sum
// then fit = min(1, fit + social*0.10)
//
// The distance and taste terms are dropped from both numerator and
// denominator when unknown, so unlocated events and users without a taste
// vector are neutral rather than penalized.
func DefaultWeights() *Weights {
	return &Weights{
		Similarity:  0.30,
		Mood:        0.25,
		Price:       0.15,
		Recency:     0.15,
		Distance:    0.15,
		Taste:       0.20,
		SocialBoost: 0.10,
	}
}

// LoadCalibration loads fit score weights from a JSON calibration file.
// If the file doesn't exist or can't be parsed, returns default weights with
// an error so the caller can log and degrade gracefully. Zero-valued fields
// in the file are filled from defaults.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return DefaultWeights(), fmt.Errorf("failed to read calibration file %s: %w", filePath, err)
	}

	var cfg CalibrationConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file %s: %w", filePath, err)
	}

	w := cfg.Weights
	defaults := DefaultWeights()
	if w.Similarity == 0 {
		w.Similarity = defaults.Similarity
	}
	if w.Mood == 0 {
		w.Mood = defaults.Mood
	}
	if w.Price == 0 {
		w.Price = defaults.Price
	}
	if w.Recency == 0 {
		w.Recency = defaults.Recency
	}
	if w.Distance == 0 {
		w.Distance = defaults.Distance
	}
	if w.Taste == 0 {
		w.Taste = defaults.Taste
	}
	if w.SocialBoost == 0 {
		w.SocialBoost = defaults.SocialBoost
	}

	slog.Info("loaded fit score calibration",
		slog.String("file", filePath),
		slog.String("version", cfg.Version))

	return &w, nil
}
