package prefetch

// SingleIndices builds the candidate index order for single-image
// prefetch: alternating next/prev around current (+1, -1, +2, -2, ...),
// wrapping over a list of length n, deduplicated, stopping once every
// index has been produced.
func SingleIndices(current, n int) []int {
	if n <= 1 {
		return nil
	}
	seen := make(map[int]bool, n)
	var out []int
	for delta := 1; len(out) < n-1; delta++ {
		next := mod(current+delta, n)
		if !seen[next] {
			seen[next] = true
			out = append(out, next)
		}
		prev := mod(current-delta, n)
		if !seen[prev] {
			seen[prev] = true
			out = append(out, prev)
		}
		if delta > n {
			break // safety net; every index should be covered well before this
		}
	}
	return out
}

func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

// TilePageIndices builds the adjacent tile-page start indices to prefetch,
// without wraparound: the next page and the previous page, whichever
// exist, next first.
func TilePageIndices(currentPageStart, pageSize, total int) []int {
	var out []int
	next := currentPageStart + pageSize
	if next < total {
		out = append(out, next)
	}
	prev := currentPageStart - pageSize
	if prev >= 0 {
		out = append(out, prev)
	}
	return out
}

// Signature identifies a prefetch request's shape so the caller can skip
// re-submitting an identical one while nothing has changed.
type Signature struct {
	Mode    string
	Key     string
	Width   int
	Height  int
	FitMode int
}
