package vector

// clampScore maps a cosine similarity onto [0, 1].
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
