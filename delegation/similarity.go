package delegation

import "github.com/agnivade/levenshtein"

// antiMonolithThreshold is the similarity ratio above which a
// delegate instruction is rejected as "really just the whole original
// task again" rather than a genuine sub-task breakdown.
const antiMonolithThreshold = 0.8

// similarityRatio returns 1 - (edit distance / max length), the same
// normalized-similarity shape Levenshtein-ratio libraries in other
// languages expose; 1.0 means identical strings, 0.0 means completely
// different.
func similarityRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

// looksLikeTheWholeTask reports whether instructions is too similar
// to lastUserMessage to be a genuine delegated sub-task, guarding
// against an agent "delegating" its entire assignment to a single
// helper instead of decomposing the work.
func looksLikeTheWholeTask(instructions, lastUserMessage string) bool {
	if lastUserMessage == "" {
		return false
	}
	return similarityRatio(instructions, lastUserMessage) > antiMonolithThreshold
}
