package reviewStatus

import (
	"pvv/api/models/constants"
	"strings"
)

const (
	NotApplicable constants.StarRating = "N/A"

	Zero  constants.StarRating = "0"
	One   constants.StarRating = "1"
	Two   constants.StarRating = "2"
	Three constants.StarRating = "3"
	Four  constants.StarRating = "4"
)

// ToStarRating maps a ClinVar review status to its gold-star rating
func ToStarRating(reviewStatus string) constants.StarRating {
	rs := strings.ToLower(strings.TrimSpace(reviewStatus))
	switch {
	case rs == "":
		return Zero
	case strings.Contains(rs, "practice guideline"):
		return Four
	case strings.Contains(rs, "expert panel"):
		return Four
	case strings.Contains(rs, "multiple submitters") && strings.Contains(rs, "no conflict"):
		return Three
	case strings.Contains(rs, "multiple submitters"):
		return Two
	case strings.Contains(rs, "single submitter"):
		return One
	case strings.Contains(rs, "conflicting"):
		return One
	case strings.Contains(rs, "no assertion"), strings.Contains(rs, "no criteria"):
		return Zero
	default:
		return NotApplicable
	}
}
