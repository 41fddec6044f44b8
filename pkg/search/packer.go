package search

// minPartialTokens is the smallest leftover budget worth filling with
// a truncated result.
const minPartialTokens = 50

// Packer fits ranked results into a token budget. Results are emitted
// in rank order; a result that does not fit is truncated on a sentence
// boundary when enough budget remains, and packing stops there.
type Packer struct {
	counter *TokenCounter
}

func NewPacker(counter *TokenCounter) *Packer {
	return &Packer{counter: counter}
}

func (p *Packer) Pack(results []SearchResult, maxTokens int) []SearchResult {
	if maxTokens <= 0 {
		return results
	}

	packed := make([]SearchResult, 0, len(results))
	used := 0
	for _, res := range results {
		tokens := p.counter.Count(res.Content)
		if used+tokens <= maxTokens {
			packed = append(packed, res)
			used += tokens
			continue
		}

		if remaining := maxTokens - used; remaining > minPartialTokens {
			res.Content = p.counter.TruncateToTokens(res.Content, remaining)
			res.Truncated = true
			packed = append(packed, res)
		}
		break
	}
	return packed
}
