package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// scopeFlags are the corpus filters shared by the retrieval commands.
type scopeFlags struct {
	book, work, testament string
	seqMin, seqMax        int
}

func (f *scopeFlags) register(cmd *cobra.Command, withRange bool) {
	cmd.Flags().StringVar(&f.book, "book", "", "restrict to one book, e.g. \"1 John\"")
	cmd.Flags().StringVar(&f.work, "work", "", "restrict to one work id")
	cmd.Flags().StringVar(&f.testament, "testament", "", "restrict to the old or new testament")
	if withRange {
		cmd.Flags().IntVar(&f.seqMin, "seq-min", 0, "lowest canonical book number (Genesis = 1)")
		cmd.Flags().IntVar(&f.seqMax, "seq-max", 0, "highest canonical book number (Revelation = 66)")
	}
}

func (f *scopeFlags) scope() (domain.Scope, error) {
	return domain.NewScope(f.book, f.work, f.seqMin, f.seqMax, f.testament)
}

var (
	searchLimit     int
	searchVerses    int
	searchLexical   bool
	searchWeight    float64
	searchDiversity float64
	searchExpand    bool
	searchPin       string
	searchSummary   bool
	searchJSON      bool
	searchScope     scopeFlags
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search passages by meaning",
	Long: `Embeds the query and ranks passage chunks by semantic similarity.

--lexical blends fuzzy text similarity into verse scores, --diversity
re-ranks with Maximal Marginal Relevance and --expand averages the query
with an LLM restatement of it.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var (
	similarLimit     int
	similarVerses    int
	similarExclude   string
	similarLexical   bool
	similarDiversity float64
	similarJSON      bool
	similarScope     scopeFlags
)

var similarCmd = &cobra.Command{
	Use:   "similar [verse-id]",
	Short: "Find passages similar to a verse's passage",
	Long: `Ranks passages against the stored embedding of the chunk that contains
the verse. Use 'verselens verse' to find a verse id.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

var (
	lexicalTarget string
	lexicalLimit  int
	lexicalJSON   bool
	lexicalScope  scopeFlags
)

var lexicalCmd = &cobra.Command{
	Use:   "lexical [query]",
	Short: "Fuzzy text search",
	Long: `Matches verse text by trigram similarity, falling back to phrase,
any-word, passage-text and first-word matching. --target chapters matches
chapter titles instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runLexical,
}

var (
	verseWork string
	verseJSON bool
)

var verseCmd = &cobra.Command{
	Use:   "verse [book] [chapter] [verse]",
	Short: "Look up a verse and print its id",
	Long: `Prints the id and text of a verse. The id is used by 'similar' and by
'search --pin'. Book names may span several arguments (verse 1 John 4 8).`,
	Args: cobra.MinimumNArgs(3),
	RunE: runVerse,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of passages (default from config)")
	searchCmd.Flags().IntVar(&searchVerses, "verses", domain.DefaultVersesPerCard, "verses shown per passage")
	searchCmd.Flags().BoolVar(&searchLexical, "lexical", false, "blend fuzzy text similarity into verse scores")
	searchCmd.Flags().Float64Var(&searchWeight, "weight", 0, "lexical weight (default from config)")
	searchCmd.Flags().Float64Var(&searchDiversity, "diversity", 0, "MMR lambda in (0,1]; lower favours variety, -1 disables")
	searchCmd.Flags().BoolVar(&searchExpand, "expand", false, "average the query with an LLM restatement")
	searchCmd.Flags().StringVar(&searchPin, "pin", "", "verse id whose passage must come first")
	searchCmd.Flags().BoolVar(&searchSummary, "summary", false, "add a short LLM summary")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchScope.register(searchCmd, true)

	similarCmd.Flags().IntVarP(&similarLimit, "limit", "n", 0, "maximum number of passages (default from config)")
	similarCmd.Flags().IntVar(&similarVerses, "verses", domain.DefaultVersesPerCard, "verses shown per passage")
	similarCmd.Flags().StringVar(&similarExclude, "exclude", "", "skip passages sharing the source's chapter, book or work (comma-separated)")
	similarCmd.Flags().BoolVar(&similarLexical, "lexical", false, "blend text similarity to the source verse")
	similarCmd.Flags().Float64Var(&similarDiversity, "diversity", 0, "MMR lambda in (0,1]; -1 disables")
	similarCmd.Flags().BoolVar(&similarJSON, "json", false, "output results as JSON")
	similarScope.register(similarCmd, false)

	lexicalCmd.Flags().StringVar(&lexicalTarget, "target", string(domain.LexicalTargetVerses), "verses or chapters")
	lexicalCmd.Flags().IntVarP(&lexicalLimit, "limit", "n", 0, "maximum number of matches (default from config)")
	lexicalCmd.Flags().BoolVar(&lexicalJSON, "json", false, "output results as JSON")
	lexicalScope.register(lexicalCmd, false)

	verseCmd.Flags().StringVar(&verseWork, "work", "", "work id when several works are loaded")
	verseCmd.Flags().BoolVar(&verseJSON, "json", false, "output the verse as JSON")

	rootCmd.AddCommand(searchCmd, similarCmd, lexicalCmd, verseCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	scope, err := searchScope.scope()
	if err != nil {
		return err
	}
	svc, err := searchPort(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	result, err := svc.Search(ctx, args[0], domain.SearchOptions{
		Limit:         searchLimit,
		VersesPerCard: searchVerses,
		Lexical:       searchLexical,
		LexicalWeight: searchWeight,
		Expand:        searchExpand,
		Diversity:     searchDiversity,
		PinVerseID:    searchPin,
		Scope:         scope,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchSummary {
		result.Summary = svc.Summarise(ctx, result.Query, result.Cards)
	}

	if searchJSON {
		return printJSON(cmd, result)
	}
	printCards(cmd, result)
	return nil
}

func runSimilar(cmd *cobra.Command, args []string) error {
	scope, err := similarScope.scope()
	if err != nil {
		return err
	}
	exclude, err := domain.ParseExclusions(similarExclude)
	if err != nil {
		return err
	}
	svc, err := searchPort(cmd)
	if err != nil {
		return err
	}

	result, err := svc.Similar(cmd.Context(), args[0], domain.SearchOptions{
		Limit:         similarLimit,
		VersesPerCard: similarVerses,
		Lexical:       similarLexical,
		Diversity:     similarDiversity,
		Scope:         scope,
		Exclude:       exclude,
	})
	if err != nil {
		return fmt.Errorf("similar failed: %w", err)
	}

	if similarJSON {
		return printJSON(cmd, result)
	}
	printCards(cmd, result)
	return nil
}

func runLexical(cmd *cobra.Command, args []string) error {
	scope, err := lexicalScope.scope()
	if err != nil {
		return err
	}
	svc, err := searchPort(cmd)
	if err != nil {
		return err
	}

	hits, err := svc.Lexical(cmd.Context(), args[0], domain.LexicalOptions{
		Target: domain.LexicalTarget(lexicalTarget),
		Limit:  lexicalLimit,
		Scope:  scope,
	})
	if err != nil {
		return fmt.Errorf("lexical search failed: %w", err)
	}

	if lexicalJSON {
		return printJSON(cmd, hits)
	}
	printLexicalHits(cmd, args[0], hits)
	return nil
}

func runVerse(cmd *cobra.Command, args []string) error {
	book, chapter, verse, err := parseReference(args)
	if err != nil {
		return err
	}
	svc, err := searchPort(cmd)
	if err != nil {
		return err
	}

	v, err := svc.Verse(cmd.Context(), verseWork, book, chapter, verse)
	if err != nil {
		return fmt.Errorf("verse lookup failed: %w", err)
	}

	if verseJSON {
		return printJSON(cmd, v)
	}
	printVerse(cmd, v)
	return nil
}

// parseReference splits "<book words...> <chapter> <verse>".
func parseReference(args []string) (book string, chapter, verse int, err error) {
	n := len(args)
	chapter, err = strconv.Atoi(args[n-2])
	if err != nil || chapter < 0 {
		return "", 0, 0, fmt.Errorf("%w: chapter must be a number, got %q", domain.ErrInvalidInput, args[n-2])
	}
	verse, err = strconv.Atoi(args[n-1])
	if err != nil || verse < 0 {
		return "", 0, 0, fmt.Errorf("%w: verse must be a number, got %q", domain.ErrInvalidInput, args[n-1])
	}
	return strings.Join(args[:n-2], " "), chapter, verse, nil
}
