package mock

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/santhosh0997/Multimodal-Rag-System/ai"
)

// organizationSuffixes mark a capitalized phrase as an organization.
var organizationSuffixes = map[string]bool{
	"corp": true, "corporation": true, "inc": true, "ltd": true, "llc": true,
	"co": true, "gmbh": true, "plc": true, "group": true,
}

// MockExtractor is a test double for ai.Extractor.
// It allows custom behavior injection via function fields and is safe for
// concurrent use.
type MockExtractor struct {
	// ExtractFunc is called by Extract if set.
	// If nil, uses the default capitalized-phrase heuristic.
	ExtractFunc func(ctx context.Context, text string, mode ai.Mode) (*ai.Extraction, error)

	mu        sync.Mutex
	callCount int
}

// NewMockExtractor creates a mock extractor with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockExtractor().
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{}
}

// Extract finds entities and relationships with a deterministic heuristic:
// runs of capitalized words are entities, and one or two lowercase words
// between two entities in the same sentence form a relationship.
func (m *MockExtractor) Extract(ctx context.Context, text string, mode ai.Mode) (*ai.Extraction, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, text, mode)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := &ai.Extraction{}
	for _, sentence := range splitSentences(text) {
		entities, relations := scanSentence(sentence)
		ext.Entities = append(ext.Entities, entities...)
		if mode == ai.ModeIngestion {
			ext.Relationships = append(ext.Relationships, relations...)
		}
	}
	ext.Sanitize()
	return ext, nil
}

// CallCount returns the number of times Extract was called.
func (m *MockExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.ExtractFunc = nil
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n' || r == ';'
	})
}

func scanSentence(sentence string) ([]ai.ExtractedEntity, []ai.ExtractedRelationship) {
	words := strings.Fields(sentence)

	var entities []ai.ExtractedEntity
	var relations []ai.ExtractedRelationship
	var phrase, between []string
	var previous string

	flush := func() {
		if len(phrase) == 0 {
			return
		}
		name := strings.Join(phrase, " ")
		entities = append(entities, ai.ExtractedEntity{Name: name, Type: guessType(phrase)})
		if previous != "" && len(between) > 0 && len(between) <= 2 {
			relations = append(relations, ai.ExtractedRelationship{
				Source:     previous,
				Relation:   strings.Join(between, "_"),
				Target:     name,
				Confidence: 0.9,
			})
		}
		previous = name
		phrase = nil
		between = nil
	}

	for i, raw := range words {
		word := strings.Trim(raw, ",:\"'()[]{}")
		if word == "" {
			continue
		}
		first := []rune(word)[0]
		capitalized := unicode.IsUpper(first) || unicode.IsDigit(first)
		if capitalized && i == 0 && stopWords[strings.ToLower(word)] {
			capitalized = false
		}
		if capitalized {
			phrase = append(phrase, word)
			continue
		}
		flush()
		if !stopWords[strings.ToLower(word)] {
			between = append(between, strings.ToLower(word))
		}
	}
	flush()
	return entities, relations
}

func guessType(phrase []string) string {
	last := strings.ToLower(strings.Trim(phrase[len(phrase)-1], "."))
	if organizationSuffixes[last] {
		return "organization"
	}
	if unicode.IsDigit([]rune(phrase[0])[0]) {
		return "date"
	}
	return "other"
}
