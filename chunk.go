package braid

import "strings"

// chunkByTokens splits data into token-bounded windows, consecutive
// windows sharing up to overlapTokens of trailing context. Splitting
// happens on whitespace so words are never cut; a single word larger than
// the window still becomes its own chunk. Overlap is clamped below the
// window size so every step makes forward progress.
func chunkByTokens(data string, counter TokenCounter, chunkTokens, overlapTokens int) []string {
	words := strings.Fields(data)
	if len(words) == 0 {
		return nil
	}
	if chunkTokens <= 0 {
		return []string{strings.Join(words, " ")}
	}
	if overlapTokens >= chunkTokens {
		overlapTokens = chunkTokens - 1
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	costs := make([]int, len(words))
	for i, w := range words {
		costs[i] = counter.Count(w)
	}

	var chunks []string
	start := 0
	for start < len(words) {
		total := 0
		end := start
		for end < len(words) {
			if total+costs[end] > chunkTokens && end > start {
				break
			}
			total += costs[end]
			end++
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}
		next := end
		carried := 0
		for next > start+1 && carried+costs[next-1] <= overlapTokens {
			next--
			carried += costs[next]
		}
		start = next
	}
	return chunks
}
