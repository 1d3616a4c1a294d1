// Package suggest finds near matches for mistyped keys and ids using
// Levenshtein distance.
package suggest

// levenshtein calculates the edit distance between two strings
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(
				prev[j]+1,      // deletion
				cur[j-1]+1,     // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// Similar returns up to three candidates close to unknown, best first.
// A candidate qualifies within 3 edits or half the input length.
func Similar(unknown string, candidates []string) []string {
	type scored struct {
		value string
		score int
	}
	var found []scored

	maxDist := max(3, len(unknown)/2)
	for _, c := range candidates {
		if d := levenshtein(unknown, c); d <= maxDist {
			found = append(found, scored{c, d})
		}
	}

	// Stable insertion sort keeps candidate order on ties
	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].score < found[j-1].score; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}

	var result []string
	for i := 0; i < len(found) && i < 3; i++ {
		result = append(result, found[i].value)
	}
	return result
}
