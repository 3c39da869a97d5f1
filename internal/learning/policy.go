package learning

// AutoApprove decides whether a scored proposal publishes without human
// review. All threshold conditions must hold, and content still matching an
// identifying PII pattern is never auto-approved regardless of scores.
func (c *Config) AutoApprove(
	ptype ProposalType,
	confidence, quality, similarity float64,
	content string,
) bool {
	t, ok := c.thresholdsFor(ptype)
	if !ok {
		return false
	}

	if confidence < t.MinConfidence {
		return false
	}
	if quality < t.MinQuality {
		return false
	}
	if similarity > t.MaxSimilarity {
		return false
	}
	if ContainsPII(content) {
		return false
	}

	return true
}
