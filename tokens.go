package braid

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures text against a token budget.
type TokenCounter interface {
	Count(text string) int
}

// Estimator approximates token counts as one token per four characters.
// Good enough for budget checks when no BPE vocabulary is available.
type Estimator struct{}

func (Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// Tiktoken counts with a BPE vocabulary. The encoding loads lazily on
// first use; the vocabulary may be fetched on demand, and when loading
// fails counting falls back to the character estimator so budget checks
// keep working offline.
type Tiktoken struct {
	Encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTiktoken returns a counter over the cl100k_base encoding.
func NewTiktoken() *Tiktoken {
	return &Tiktoken{Encoding: "cl100k_base"}
}

func (t *Tiktoken) Count(text string) int {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.Encoding)
		if err == nil {
			t.enc = enc
		}
	})
	if t.enc == nil {
		return Estimator{}.Count(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

var _ TokenCounter = Estimator{}
var _ TokenCounter = (*Tiktoken)(nil)
