package recommendations

import "strings"

const maxRecommendations = 3

// Select returns up to three catalogue resources whose tags intersect the
// problem tags, in catalogue order. Matching is case-insensitive; resources
// are never ranked by relevance.
func Select(problemTags []string) []Resource {
	wanted := make(map[string]bool, len(problemTags))
	for _, tag := range problemTags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			wanted[tag] = true
		}
	}

	out := make([]Resource, 0, maxRecommendations)
	if len(wanted) == 0 {
		return out
	}
	for _, res := range catalogue {
		if matches(res, wanted) {
			out = append(out, res)
			if len(out) == maxRecommendations {
				break
			}
		}
	}
	return out
}

func matches(res Resource, wanted map[string]bool) bool {
	for _, tag := range res.Tags {
		if wanted[strings.ToLower(tag)] {
			return true
		}
	}
	return false
}
