// Package similarity provides normalized text similarity scoring used
// for duplicate suppression.
package similarity

// Score returns the normalized Levenshtein similarity of a and b in
// [0, 1]. 1 means identical, 0 means no common structure. The function
// is deterministic and symmetric. Two empty strings score 1.
//
// Comparison is rune-based so multi-byte scripts (the usual input here)
// are measured per character, not per byte.
func Score(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)

	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1.0
	}

	dist := levenshtein(ra, rb)
	return 1.0 - float64(dist)/float64(longest)
}

// levenshtein computes edit distance with a single rolling row,
// O(len(a)*len(b)) time and O(len(b)) space.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(a); i++ {
		prev := row[0] // row[i-1][j-1] before overwrite
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur := min(row[j]+1, row[j-1]+1, prev+cost)
			prev = row[j]
			row[j] = cur
		}
	}

	return row[len(b)]
}
