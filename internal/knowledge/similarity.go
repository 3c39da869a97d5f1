package knowledge

import "math"

// Cosine returns the cosine similarity of two vectors clamped to [0,1].
// Mismatched or empty vectors score zero.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(0, math.Min(1, sim))
}

// SplitChunks slices content into chunks of at most size runes, breaking on
// paragraph boundaries where possible.
func SplitChunks(content string, size int) []string {
	if content == "" {
		return nil
	}

	runes := []rune(content)
	if len(runes) <= size {
		return []string{content}
	}

	var chunks []string
	for len(runes) > 0 {
		end := min(size, len(runes))

		// Prefer the last paragraph break in the window to keep chunks
		// semantically whole.
		if end < len(runes) {
			for i := end - 1; i > size/2; i-- {
				if runes[i] == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
					end = i
					break
				}
			}
		}

		chunks = append(chunks, string(runes[:end]))
		runes = runes[end:]
	}

	return chunks
}
