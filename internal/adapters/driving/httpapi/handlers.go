package httpapi

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// scopeParams are the filter parameters shared by the retrieval routes.
type scopeParams struct {
	book, work, testament string
	seqMin, seqMax        int
}

func (p *scopeParams) bind(b *echo.ValueBinder) *echo.ValueBinder {
	return b.
		String("book", &p.book).
		String("work", &p.work).
		String("testament", &p.testament).
		Int("seq_min", &p.seqMin).
		Int("seq_max", &p.seqMax)
}

func (p *scopeParams) scope() (domain.Scope, error) {
	return domain.NewScope(p.book, p.work, p.seqMin, p.seqMax, p.testament)
}

// lexicalResponse is the body of a lexical search.
type lexicalResponse struct {
	Query string              `json:"query"`
	Hits  []domain.LexicalHit `json:"hits"`
	Count int                 `json:"count"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleSearch serves GET /api/search.
func (s *Server) handleSearch(c echo.Context) error {
	var (
		query, pin            string
		limit, perCard        int
		lexical, expand, summ bool
		weight, diversity     float64
		sp                    scopeParams
	)
	err := sp.bind(echo.QueryParamsBinder(c).
		String("q", &query).
		Int("k", &limit).
		Int("verses", &perCard).
		Bool("lexical", &lexical).
		Float64("weight", &weight).
		Float64("diversity", &diversity).
		Bool("expand", &expand).
		String("pin", &pin).
		Bool("summary", &summ)).
		BindError()
	if err != nil {
		return err
	}
	scope, err := sp.scope()
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	result, err := s.search.Search(ctx, query, domain.SearchOptions{
		Limit:         limit,
		VersesPerCard: perCard,
		Lexical:       lexical,
		LexicalWeight: weight,
		Expand:        expand,
		Diversity:     diversity,
		PinVerseID:    pin,
		Scope:         scope,
	})
	if err != nil {
		return err
	}
	if summ {
		result.Summary = s.search.Summarise(ctx, result.Query, result.Cards)
	}
	return c.JSON(http.StatusOK, result)
}

// handleSimilar serves GET /api/similar/:verseID.
func (s *Server) handleSimilar(c echo.Context) error {
	var (
		exclude        string
		limit, perCard int
		lexical        bool
		diversity      float64
		sp             scopeParams
	)
	err := sp.bind(echo.QueryParamsBinder(c).
		Int("k", &limit).
		Int("verses", &perCard).
		String("exclude", &exclude).
		Bool("lexical", &lexical).
		Float64("diversity", &diversity)).
		BindError()
	if err != nil {
		return err
	}
	scope, err := sp.scope()
	if err != nil {
		return err
	}
	ex, err := domain.ParseExclusions(exclude)
	if err != nil {
		return err
	}

	result, err := s.search.Similar(c.Request().Context(), c.Param("verseID"), domain.SearchOptions{
		Limit:         limit,
		VersesPerCard: perCard,
		Lexical:       lexical,
		Diversity:     diversity,
		Scope:         scope,
		Exclude:       ex,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// handleLexical serves GET /api/lexical.
func (s *Server) handleLexical(c echo.Context) error {
	var (
		query, target string
		limit         int
		sp            scopeParams
	)
	err := sp.bind(echo.QueryParamsBinder(c).
		String("q", &query).
		String("target", &target).
		Int("k", &limit)).
		BindError()
	if err != nil {
		return err
	}
	scope, err := sp.scope()
	if err != nil {
		return err
	}

	hits, err := s.search.Lexical(c.Request().Context(), query, domain.LexicalOptions{
		Target: domain.LexicalTarget(target),
		Limit:  limit,
		Scope:  scope,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lexicalResponse{Query: query, Hits: hits, Count: len(hits)})
}

// handleVerse serves GET /api/verses/:book/:chapter/:verse.
func (s *Server) handleVerse(c echo.Context) error {
	var chapter, verse int
	err := echo.PathParamsBinder(c).
		Int("chapter", &chapter).
		Int("verse", &verse).
		BindError()
	if err != nil {
		return err
	}
	book, err := url.PathUnescape(c.Param("book"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid book")
	}

	v, err := s.search.Verse(c.Request().Context(), c.QueryParam("work"), book, chapter, verse)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}
