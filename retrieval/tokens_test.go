package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordCounter(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"one", 2},
		{"one two three", 4},
		{"  spaced\tout\nwords  here ", 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WordCounter{}.CountTokens(tt.text), tt.text)
	}
}

func TestTiktokenCounter(t *testing.T) {
	counter, err := NewTiktokenCounter("")
	if err != nil {
		// The encoding is fetched on first use; offline machines cannot load it.
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	assert.Zero(t, counter.CountTokens(""))
	assert.Equal(t, 2, counter.CountTokens("hello world"))

	ranker := newTestRanker(t, WithTokenCounter(counter))
	assert.Equal(t, counter, ranker.counter)
}

func TestTiktokenCounter_UnknownEncodingFallsBack(t *testing.T) {
	_, err := NewTiktokenCounter("no_such_encoding")
	assert.Error(t, err)

	c := &TiktokenCounter{encoding: "no_such_encoding"}
	assert.Equal(t, WordCounter{}.CountTokens("one two three"), c.CountTokens("one two three"))
}
