package risk

// Score computes the 0-100 device privacy score from per-tier app counts.
// High-risk apps cost up to 50 points, medium-risk up to 25, proportional to
// their share of scanned apps. Zero scanned apps is the vacuous case: no
// penalty applies and the score is 100.
func Score(highCount, mediumCount, totalApps int) int {
	score := 100
	if totalApps > 0 {
		highPenalty := float64(highCount) / float64(totalApps) * 50
		mediumPenalty := float64(mediumCount) / float64(totalApps) * 25
		score = int(100 - highPenalty - mediumPenalty)
		if score < 0 {
			score = 0
		}
	}
	return score
}
