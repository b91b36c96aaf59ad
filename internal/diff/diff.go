// Package diff computes word-granularity diffs between an original and an
// edited text. Output is deterministic for a fixed input pair.
package diff

import "strings"

// Part is an atomic diff unit. Unchanged parts have neither flag set; a part
// never has both.
type Part struct {
	Value   string
	Added   bool
	Removed bool
}

// Words diffs two texts at word granularity using a longest-common-subsequence
// walk. Runs of words with the same disposition are coalesced into one Part,
// joined by single spaces. At a divergence, removed words are emitted before
// added words.
func Words(original, edited string) []Part {
	a := strings.Fields(original)
	b := strings.Fields(edited)

	// Trim the common prefix and suffix so the quadratic LCS table only
	// covers the changed middle.
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	midA := a[prefix : len(a)-suffix]
	midB := b[prefix : len(b)-suffix]

	var parts []Part
	if prefix > 0 {
		parts = append(parts, Part{Value: strings.Join(a[:prefix], " ")})
	}
	parts = appendMiddle(parts, midA, midB)
	if suffix > 0 {
		parts = append(parts, Part{Value: strings.Join(a[len(a)-suffix:], " ")})
	}
	return parts
}

// appendMiddle runs the LCS walk over the changed middle and appends
// coalesced parts.
func appendMiddle(parts []Part, a, b []string) []Part {
	switch {
	case len(a) == 0 && len(b) == 0:
		return parts
	case len(a) == 0:
		return append(parts, Part{Value: strings.Join(b, " "), Added: true})
	case len(b) == 0:
		return append(parts, Part{Value: strings.Join(a, " "), Removed: true})
	}

	// dp[i][j] = LCS length of a[i:] and b[j:], flattened row-major.
	m, n := len(a), len(b)
	width := n + 1
	dp := make([]int, (m+1)*width)
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i*width+j] = dp[(i+1)*width+j+1] + 1
			} else if dp[(i+1)*width+j] >= dp[i*width+j+1] {
				dp[i*width+j] = dp[(i+1)*width+j]
			} else {
				dp[i*width+j] = dp[i*width+j+1]
			}
		}
	}

	var cur []string
	var curKind Part // flags only
	flush := func() {
		if len(cur) == 0 {
			return
		}
		parts = append(parts, Part{
			Value:   strings.Join(cur, " "),
			Added:   curKind.Added,
			Removed: curKind.Removed,
		})
		cur = nil
	}
	emit := func(word string, kind Part) {
		if curKind != kind {
			flush()
			curKind = kind
		}
		cur = append(cur, word)
	}

	i, j := 0, 0
	for i < m && j < n {
		switch {
		case a[i] == b[j]:
			emit(a[i], Part{})
			i++
			j++
		case dp[(i+1)*width+j] >= dp[i*width+j+1]:
			emit(a[i], Part{Removed: true})
			i++
		default:
			emit(b[j], Part{Added: true})
			j++
		}
	}
	for ; i < m; i++ {
		emit(a[i], Part{Removed: true})
	}
	for ; j < n; j++ {
		emit(b[j], Part{Added: true})
	}
	flush()
	return parts
}
