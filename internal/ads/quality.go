package ads

// Creative multipliers for quality scoring. Better-formed creatives earn a
// higher multiplier, which lets a lower raw bid win and pay less.
const (
	imageBonus  = 0.10
	bodyBonus   = 0.05
	nativeBonus = 0.15
	// substantialBodyLen is the minimum body length counted as real copy.
	substantialBodyLen = 40
	// ctrLift scales historical CTR into the quality multiplier.
	ctrLift = 10.0
)

// CalculateQualityScore combines the campaign's base quality with
// creative-shape multipliers and historical CTR, capped at MaxQualityScore.
func CalculateQualityScore(c *Campaign, creative *Creative) float64 {
	base := c.QualityBase
	if base <= 0 {
		base = 1.0
	}

	mult := 1.0
	if creative != nil {
		if creative.ImageURL != "" {
			mult += imageBonus
		}
		if len(creative.Body) >= substantialBodyLen {
			mult += bodyBonus
		}
		if creative.Format == FormatNative {
			mult += nativeBonus
		}
	}

	score := base * mult * (1 + ctrLift*c.HistoricalCTR())
	if score > MaxQualityScore {
		return MaxQualityScore
	}
	return score
}
