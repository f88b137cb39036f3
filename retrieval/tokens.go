package retrieval

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures evidence text against a token budget.
// Implementations must be safe for concurrent use.
type TokenCounter interface {
	CountTokens(text string) int
}

// WordCounter estimates tokens as 4/3 of the whitespace-separated words,
// rounded up. It needs no encoding data.
type WordCounter struct{}

func (WordCounter) CountTokens(text string) int {
	words := len(strings.Fields(text))
	return (words*4 + 2) / 3
}

// TiktokenCounter counts tokens with a tiktoken encoding such as
// "cl100k_base". The encoding is loaded on first use.
type TiktokenCounter struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
	fallback WordCounter
}

// DefaultEncoding is the encoding used by the OpenAI embedding and chat models.
const DefaultEncoding = "cl100k_base"

// NewTiktokenCounter creates a counter for the named encoding and loads it.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	c := &TiktokenCounter{encoding: encoding}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *TiktokenCounter) init() error {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.initErr = fmt.Errorf("init tiktoken encoding %s: %w", c.encoding, err)
			return
		}
		c.enc = enc
	})
	return c.initErr
}

// CountTokens returns the encoded length of text, or the word estimate when
// the encoding could not be loaded.
func (c *TiktokenCounter) CountTokens(text string) int {
	if err := c.init(); err != nil {
		return c.fallback.CountTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}
