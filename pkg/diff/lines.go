package diff

import (
	"slices"
	"strings"
)

// LineOp classifies a line in an edit script.
type LineOp int

const (
	Equal  LineOp = iota // Line is unchanged.
	Insert               // Line is present only in the new content.
	Delete               // Line is present only in the old content.
)

// Line is one entry of a line-level edit script.
type Line struct {
	Op   LineOp
	Text string
}

// maxEditDistance bounds the shortest-edit search. Past it the changed
// region is reported as one block of deletions followed by insertions, which
// keeps memory at O(maxEditDistance²) whatever the input size.
const maxEditDistance = 1024

// Lines computes a line edit script turning a into b. Common leading and
// trailing lines are matched directly; the region between them gets a
// shortest edit script when one exists within maxEditDistance edits. A
// trailing newline does not produce an empty final line.
func Lines(a, b []byte) []Line {
	return editScript(splitLines(string(a)), splitLines(string(b)), maxEditDistance)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func editScript(a, b []string, limit int) []Line {
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	var out []Line
	for _, s := range a[:prefix] {
		out = append(out, Line{Op: Equal, Text: s})
	}
	midA, midB := a[prefix:len(a)-suffix], b[prefix:len(b)-suffix]
	if mid, ok := shortestEdit(midA, midB, limit); ok {
		out = append(out, mid...)
	} else {
		out = appendReplace(out, midA, midB)
	}
	for _, s := range a[len(a)-suffix:] {
		out = append(out, Line{Op: Equal, Text: s})
	}
	return out
}

func appendReplace(out []Line, a, b []string) []Line {
	for _, s := range a {
		out = append(out, Line{Op: Delete, Text: s})
	}
	for _, s := range b {
		out = append(out, Line{Op: Insert, Text: s})
	}
	return out
}

// shortestEdit runs the greedy forward search of Myers' O(ND) algorithm.
// furthest[k+offset] is the largest x reached on diagonal k = x-y. After
// round d only diagonals -d..d are live, so rounds keeps just that window.
// It reports false when no script of at most limit edits exists.
func shortestEdit(a, b []string, limit int) ([]Line, bool) {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return appendReplace(nil, a, b), true
	}
	bound := min(n+m, limit)
	offset := bound + 1
	furthest := make([]int, 2*bound+3)
	var rounds [][]int

	for d := 0; d <= bound; d++ {
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && furthest[offset+k-1] < furthest[offset+k+1]) {
				x = furthest[offset+k+1]
			} else {
				x = furthest[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			furthest[offset+k] = x
			if x >= n && y >= m {
				rounds = append(rounds, slices.Clone(furthest[offset-d:offset+d+1]))
				return traceBack(rounds, a, b), true
			}
		}
		rounds = append(rounds, slices.Clone(furthest[offset-d:offset+d+1]))
	}
	return nil, false
}

// traceBack walks the recorded rounds from (len(a), len(b)) to the origin.
// rounds[d][k+d] is the furthest x on diagonal k after round d.
func traceBack(rounds [][]int, a, b []string) []Line {
	x, y := len(a), len(b)
	var rev []Line

	for d := len(rounds) - 1; d > 0; d-- {
		prev := rounds[d-1]
		at := func(k int) int { return prev[k+d-1] }

		k := x - y
		down := k == -d || (k != d && at(k-1) < at(k+1))
		prevK := k - 1
		if down {
			prevK = k + 1
		}
		prevX := at(prevK)
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			rev = append(rev, Line{Op: Equal, Text: a[x]})
		}
		if down {
			y--
			rev = append(rev, Line{Op: Insert, Text: b[y]})
		} else {
			x--
			rev = append(rev, Line{Op: Delete, Text: a[x]})
		}
	}
	for x > 0 && y > 0 {
		x--
		y--
		rev = append(rev, Line{Op: Equal, Text: a[x]})
	}

	slices.Reverse(rev)
	return rev
}
