// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retrieval

import (
	"cmp"
	"math"
	"slices"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

// Default fusion weights.
const (
	DefaultVectorWeight = 0.6
	DefaultGraphWeight  = 0.4
)

// Weights scale the normalized vector and graph scores in the fused score.
type Weights struct {
	Vector float64
	Graph  float64
}

// DefaultWeights returns 0.6 vector, 0.4 graph.
func DefaultWeights() Weights {
	return Weights{Vector: DefaultVectorWeight, Graph: DefaultGraphWeight}
}

// Validate checks that both weights are non-negative and not both zero.
func (w Weights) Validate() error {
	if w.Vector < 0 || w.Graph < 0 || w.Vector+w.Graph <= 0 ||
		math.IsNaN(w.Vector) || math.IsNaN(w.Graph) {
		return ErrInvalidWeights
	}
	return nil
}

// Budget bounds the evidence returned by one retrieval.
// A zero field is unlimited.
type Budget struct {
	MaxEvidence int `json:"max_evidence"`
	MaxTokens   int `json:"max_tokens"`
}

// Validate rejects negative limits.
func (b Budget) Validate() error {
	if b.MaxEvidence < 0 || b.MaxTokens < 0 {
		return ErrInvalidBudget
	}
	return nil
}

// Ranker fuses graph and vector hits into one ranked evidence list.
// It holds no mutable state and is safe for concurrent use.
type Ranker struct {
	weights Weights
	counter TokenCounter
}

// RankerOption configures a Ranker.
type RankerOption func(*Ranker) error

// WithWeights sets the fusion weights.
func WithWeights(w Weights) RankerOption {
	return func(r *Ranker) error {
		if err := w.Validate(); err != nil {
			return err
		}
		r.weights = w
		return nil
	}
}

// WithTokenCounter sets the counter used for token budgets.
// Default is WordCounter.
func WithTokenCounter(counter TokenCounter) RankerOption {
	return func(r *Ranker) error {
		if counter == nil {
			counter = WordCounter{}
		}
		r.counter = counter
		return nil
	}
}

// NewRanker creates a Ranker.
func NewRanker(opts ...RankerOption) (*Ranker, error) {
	r := &Ranker{
		weights: DefaultWeights(),
		counter: WordCounter{},
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Weights returns the fusion weights.
func (r *Ranker) Weights() Weights {
	return r.weights
}

// candidate accumulates everything known about one chunk.
type candidate struct {
	ref        core.ChunkRef
	text       string
	vector     float64
	graph      float64
	fromVector bool
	fromGraph  bool
	facts      []core.Fact
}

// Rank fuses hits and truncates the ranking to budget.
//
// Each path's scores are min-max normalized to [0, 1] on their own, so a path
// whose hits all score the same normalizes every hit to 1. Evidence citing the
// same chunk is merged, keeping each path's highest score. The fused score is
// the weighted sum of the two components, and ties are broken by document
// offset, then document ID, then chunk ID, so identical inputs always produce
// identical output.
func (r *Ranker) Rank(hits *Hits, budget Budget) []core.Evidence {
	if hits == nil {
		return []core.Evidence{}
	}

	byChunk := make(map[core.ID]*candidate)
	get := func(ref core.ChunkRef) *candidate {
		c, ok := byChunk[ref.ChunkID]
		if !ok {
			c = &candidate{ref: ref}
			if chunk := hits.Chunks[ref.ChunkID]; chunk != nil {
				c.ref = chunk.Ref()
				c.text = chunk.Text
			}
			byChunk[ref.ChunkID] = c
		}
		return c
	}

	// Vector path
	vectorHits := make([]core.VectorHit, 0, len(hits.Vector))
	for _, h := range hits.Vector {
		if h.Chunk != nil {
			vectorHits = append(vectorHits, h)
		}
	}
	vectorRaw := make([]float64, len(vectorHits))
	for i, h := range vectorHits {
		vectorRaw[i] = float64(h.Score)
	}
	for i, score := range normalize(vectorRaw) {
		chunk := vectorHits[i].Chunk
		c := get(chunk.Ref())
		c.text = chunk.Text
		c.fromVector = true
		c.vector = max(c.vector, score)
	}

	// Graph path: every relationship cites the chunks it was extracted from.
	type citation struct {
		ref  core.ChunkRef
		fact core.Fact
	}
	var (
		citations []citation
		graphRaw  []float64
	)
	for _, h := range hits.Graph {
		if h.Relationship == nil {
			continue
		}
		fact := factOf(h)
		for _, ref := range h.Relationship.Provenance {
			if !hits.admits(ref) {
				continue
			}
			citations = append(citations, citation{ref: ref, fact: fact})
			graphRaw = append(graphRaw, GraphScore(h))
		}
	}
	for i, score := range normalize(graphRaw) {
		c := get(citations[i].ref)
		c.fromGraph = true
		c.graph = max(c.graph, score)
		c.facts = addFact(c.facts, citations[i].fact)
	}

	evidence := make([]core.Evidence, 0, len(byChunk))
	for _, c := range byChunk {
		slices.SortFunc(c.facts, compareFacts)
		evidence = append(evidence, core.Evidence{
			ChunkRef:    c.ref,
			Text:        c.text,
			Score:       r.weights.Vector*c.vector + r.weights.Graph*c.graph,
			VectorScore: c.vector,
			GraphScore:  c.graph,
			Origin:      origin(c.fromVector, c.fromGraph),
			Facts:       c.facts,
		})
	}
	slices.SortFunc(evidence, compareEvidence)
	return r.truncate(evidence, budget)
}

// truncate keeps the highest-ranked prefix that fits the budget. The token
// budget stops at the first item that would exceed it.
func (r *Ranker) truncate(evidence []core.Evidence, budget Budget) []core.Evidence {
	if budget.MaxEvidence > 0 && len(evidence) > budget.MaxEvidence {
		evidence = evidence[:budget.MaxEvidence]
	}
	if budget.MaxTokens <= 0 {
		return evidence
	}
	used := 0
	for i, e := range evidence {
		used += r.counter.CountTokens(e.Text)
		if used > budget.MaxTokens {
			return evidence[:i]
		}
	}
	return evidence
}

// GraphScore is the raw graph relevance of a traversal hit: the relationship
// confidence divided by the number of hops it took to reach it.
func GraphScore(h core.GraphHit) float64 {
	if h.Relationship == nil {
		return 0
	}
	return h.Relationship.Confidence / float64(max(h.Hops, 1))
}

// normalize min-max scales scores to [0, 1]. Equal scores all become 1.
func normalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lo, hi := slices.Min(scores), slices.Max(scores)
	for i, s := range scores {
		if hi == lo {
			out[i] = 1
			continue
		}
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}

func origin(fromVector, fromGraph bool) core.Origin {
	switch {
	case fromVector && fromGraph:
		return core.OriginBoth
	case fromGraph:
		return core.OriginGraph
	default:
		return core.OriginVector
	}
}

func factOf(h core.GraphHit) core.Fact {
	fact := core.Fact{
		RelationshipID: h.Relationship.ID,
		Relation:       h.Relationship.Type,
		Confidence:     h.Relationship.Confidence,
		Hops:           h.Hops,
	}
	if h.Source != nil {
		fact.Source = h.Source.Name
	}
	if h.Target != nil {
		fact.Target = h.Target.Name
	}
	return fact
}

// addFact appends f unless the relationship is already cited, keeping the
// smaller hop count.
func addFact(facts []core.Fact, f core.Fact) []core.Fact {
	for i := range facts {
		if facts[i].RelationshipID == f.RelationshipID {
			facts[i].Hops = min(facts[i].Hops, f.Hops)
			return facts
		}
	}
	return append(facts, f)
}

func compareFacts(a, b core.Fact) int {
	if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Hops, b.Hops); c != 0 {
		return c
	}
	return cmp.Compare(a.RelationshipID, b.RelationshipID)
}

func compareEvidence(a, b core.Evidence) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	if c := cmp.Compare(a.DocumentID, b.DocumentID); c != 0 {
		return c
	}
	return cmp.Compare(a.ChunkID, b.ChunkID)
}
