package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/logger"
	"github.com/custodia-labs/verselens-cli/internal/similarity"
)

// Candidate pool sizing. Cards fan out into verses and post-filters drop
// chunks, so the first nearest-neighbour query asks for more than the limit.
const (
	candidateFactor = 5
	minCandidates   = 50
)

func candidatePool(limit int) int {
	return max(limit*candidateFactor, minCandidates)
}

// request is one ranking pass.
type request struct {
	vec     []float32
	lexText string
	opts    domain.SearchOptions

	// exclude drops candidates in similarity-by-item mode.
	exclude func(domain.ChunkInfo) bool
}

// candidate is a chunk that survived filtering, with its cosine similarity.
type candidate struct {
	chunk      domain.ChunkInfo
	similarity float64
}

// rank runs candidate retrieval, filtering, backfill, verse scoring, card
// grouping, MMR selection and pinning, in that order.
func (s *SearchService) rank(ctx context.Context, req request) ([]domain.Card, error) {
	opts := req.opts

	candidates, err := s.candidates(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Debug("%d candidates after filtering", len(candidates))

	cards, err := s.cards(ctx, candidates, req)
	if err != nil {
		return nil, err
	}

	if opts.Diversity > 0 {
		cards = selectMMR(cards, opts.Diversity, opts.Limit)
	} else if len(cards) > opts.Limit {
		cards = cards[:opts.Limit]
	}

	if opts.PinVerseID != "" {
		cards, err = s.pin(ctx, cards, req)
		if err != nil {
			return nil, err
		}
	}

	for i := range cards {
		cards[i].Verses = trimVerses(cards[i].Verses, opts.VersesPerCard)
	}
	return cards, nil
}

// candidates queries the index without scope, post-filters the hits and
// backfills with a scoped query when filtering left too few.
func (s *SearchService) candidates(ctx context.Context, req request) ([]candidate, error) {
	opts := req.opts
	pool := candidatePool(opts.Limit)

	hits, err := s.index.NearestChunks(ctx, req.vec, pool, domain.Scope{})
	if err != nil {
		return nil, fmt.Errorf("nearest chunks: %w", err)
	}

	seen := make(map[string]bool, len(hits))
	kept, dropped, err := s.filter(ctx, hits, seen, req)
	if err != nil {
		return nil, err
	}

	if len(kept) < opts.Limit && dropped > 0 {
		logger.Debug("backfilling %d cards within scope", opts.Limit-len(kept))
		more, err := s.index.NearestChunks(ctx, req.vec, pool*2, opts.Scope)
		if err != nil {
			return nil, fmt.Errorf("backfill: %w", err)
		}
		extra, _, err := s.filter(ctx, more, seen, req)
		if err != nil {
			return nil, err
		}
		kept = append(kept, extra...)
	}
	return kept, nil
}

// filter loads unseen hits and keeps those inside scope and not excluded.
// It returns how many unseen hits were dropped.
func (s *SearchService) filter(
	ctx context.Context, hits []domain.ScoredID, seen map[string]bool, req request,
) ([]candidate, int, error) {
	ids := make([]string, 0, len(hits))
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		ids = append(ids, h.ID)
		scores[h.ID] = h.Score
	}
	if len(ids) == 0 {
		return nil, 0, nil
	}

	chunks, err := s.reader.Chunks(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("load chunks: %w", err)
	}

	kept := make([]candidate, 0, len(chunks))
	for _, c := range chunks {
		if !req.opts.Scope.Matches(c.BookID, c.WorkID, c.BookSeq) {
			continue
		}
		if req.exclude != nil && req.exclude(c) {
			continue
		}
		kept = append(kept, candidate{chunk: c, similarity: scores[c.ID]})
	}
	return kept, len(ids) - len(kept), nil
}

// cards expands candidates into scored verses and groups them back into
// cards sorted by descending score.
func (s *SearchService) cards(ctx context.Context, candidates []candidate, req request) ([]domain.Card, error) {
	if len(candidates) == 0 {
		return []domain.Card{}, nil
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.chunk.ID
	}
	verses, err := s.reader.ChunkVerses(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("chunk verses: %w", err)
	}

	cards := make([]domain.Card, 0, len(candidates))
	for _, c := range candidates {
		scored, err := s.scoreVerses(ctx, verses[c.chunk.ID], c.similarity, req)
		if err != nil {
			return nil, err
		}
		cards = append(cards, newCard(c.chunk, c.similarity, scored))
	}
	sortCards(cards)
	return cards, nil
}

// scoreVerses gives each verse its chunk's similarity plus the weighted
// lexical boost when blending is on.
func (s *SearchService) scoreVerses(
	ctx context.Context, verses []domain.VerseInfo, chunkSim float64, req request,
) ([]domain.ScoredVerse, error) {
	var lexical map[string]float64
	if req.opts.Lexical && req.lexText != "" && len(verses) > 0 {
		ids := make([]string, len(verses))
		for i, v := range verses {
			ids[i] = v.ID
		}
		var err error
		lexical, err = s.index.TextSimilarity(ctx, req.lexText, ids)
		if err != nil {
			return nil, fmt.Errorf("text similarity: %w", err)
		}
	}

	out := make([]domain.ScoredVerse, len(verses))
	for i, v := range verses {
		lex := lexical[v.ID]
		out[i] = domain.ScoredVerse{
			Verse:      v,
			Similarity: chunkSim,
			Lexical:    lex,
			Score:      chunkSim + req.opts.LexicalWeight*lex,
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Verse.Chapter != b.Verse.Chapter {
			return a.Verse.Chapter < b.Verse.Chapter
		}
		return a.Verse.Number < b.Verse.Number
	})
	return out, nil
}

// newCard scores a card by its best verse. A chunk with no verses keeps its
// raw similarity.
func newCard(chunk domain.ChunkInfo, sim float64, verses []domain.ScoredVerse) domain.Card {
	score := sim
	if len(verses) > 0 {
		score = verses[0].Score
	}
	return domain.Card{Chunk: chunk, Similarity: sim, Score: score, Verses: verses}
}

func sortCards(cards []domain.Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Score != cards[j].Score {
			return cards[i].Score > cards[j].Score
		}
		return cards[i].Chunk.ID < cards[j].Chunk.ID
	})
}

// selectMMR picks up to k cards by Maximal Marginal Relevance. Relevance is
// the card score; redundancy is cosine similarity between chunk embeddings.
func selectMMR(cards []domain.Card, lambda float64, k int) []domain.Card {
	rel := make([]float64, len(cards))
	for i, c := range cards {
		rel[i] = c.Score
	}
	order := mmr(rel, func(i, j int) float64 {
		return similarity.Cosine(cards[i].Chunk.Embedding, cards[j].Chunk.Embedding)
	}, lambda, k)

	out := make([]domain.Card, len(order))
	for i, idx := range order {
		out[i] = cards[idx]
	}
	return out
}

// mmr returns min(k, len(relevance)) distinct indices in selection order.
// Each step picks the item maximising
// lambda*relevance - (1-lambda)*max similarity to the items already picked.
// Ties go to the lower index.
func mmr(relevance []float64, sim func(i, j int) float64, lambda float64, k int) []int {
	n := len(relevance)
	k = min(k, n)
	picked := make([]bool, n)
	penalty := make([]float64, n)
	order := make([]int, 0, k)

	for len(order) < k {
		best := -1
		var bestScore float64
		for i := 0; i < n; i++ {
			if picked[i] {
				continue
			}
			score := lambda*relevance[i] - (1-lambda)*penalty[i]
			if best < 0 || score > bestScore {
				best, bestScore = i, score
			}
		}
		picked[best] = true
		order = append(order, best)

		for i := 0; i < n; i++ {
			if picked[i] {
				continue
			}
			if s := sim(i, best); len(order) == 1 || s > penalty[i] {
				penalty[i] = s
			}
		}
	}
	return order
}

// pin puts the chunk that owns the pinned verse first. A card already in the
// list is promoted and boosted to the top score; otherwise its similarity is
// computed directly and the card is injected, bypassing scope and exclusions.
func (s *SearchService) pin(ctx context.Context, cards []domain.Card, req request) ([]domain.Card, error) {
	verse, err := s.reader.Verse(ctx, req.opts.PinVerseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: pinned verse %s does not exist", domain.ErrInvalidInput, req.opts.PinVerseID)
		}
		return nil, fmt.Errorf("pinned verse: %w", err)
	}

	var card domain.Card
	found := -1
	for i := range cards {
		if cards[i].Chunk.ID == verse.ChunkID {
			found = i
			break
		}
	}

	if found >= 0 {
		card = cards[found]
		if len(cards) > 0 && cards[0].Score > card.Score {
			card.Score = cards[0].Score
		}
		cards = append(cards[:found], cards[found+1:]...)
	} else {
		sim, err := s.index.ChunkSimilarity(ctx, req.vec, verse.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("pinned chunk similarity: %w", err)
		}
		chunks, err := s.reader.Chunks(ctx, []string{verse.ChunkID})
		if err != nil {
			return nil, fmt.Errorf("pinned chunk: %w", err)
		}
		if len(chunks) == 0 {
			return nil, fmt.Errorf("pinned chunk %s: %w", verse.ChunkID, domain.ErrNotFound)
		}
		members, err := s.reader.ChunkVerses(ctx, []string{verse.ChunkID})
		if err != nil {
			return nil, fmt.Errorf("pinned chunk verses: %w", err)
		}
		scored, err := s.scoreVerses(ctx, members[verse.ChunkID], sim, req)
		if err != nil {
			return nil, err
		}
		card = newCard(chunks[0], sim, scored)
		card.Score = sim
		if len(cards) >= req.opts.Limit {
			cards = cards[:max(req.opts.Limit-1, 0)]
		}
	}

	card.Pinned = true
	card.Verses = pinVerse(card.Verses, verse.ID)
	logger.Debug("pinned %s", verse.Reference())
	return append([]domain.Card{card}, cards...), nil
}

// pinVerse moves the verse with id to the front.
func pinVerse(verses []domain.ScoredVerse, id string) []domain.ScoredVerse {
	for i, v := range verses {
		if v.Verse.ID != id {
			continue
		}
		out := make([]domain.ScoredVerse, 0, len(verses))
		out = append(out, v)
		out = append(out, verses[:i]...)
		return append(out, verses[i+1:]...)
	}
	return verses
}

// trimVerses keeps the first n verses. The pinned verse is already first.
func trimVerses(verses []domain.ScoredVerse, n int) []domain.ScoredVerse {
	if n <= 0 || len(verses) <= n {
		return verses
	}
	return verses[:n]
}
