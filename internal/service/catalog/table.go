package catalog

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/books/v1"
	"google.golang.org/api/option"

	"github.com/kapu/shortlist-go/internal/constants"
	"github.com/kapu/shortlist-go/internal/domain"
)

// Endpoints holds provider base URLs. Tests point them at httptest servers.
type Endpoints struct {
	RAWG              string
	TMDB              string
	TMDBImages        string
	ITunes            string
	GoogleBooks       string
	OpenLibrary       string
	OpenLibraryCovers string
	Jikan             string
	Wikipedia         string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		RAWG:              constants.APIConfig.RAWGBaseURL,
		TMDB:              constants.APIConfig.TMDBBaseURL,
		TMDBImages:        constants.APIConfig.TMDBImageBaseURL,
		ITunes:            constants.APIConfig.ITunesBaseURL,
		GoogleBooks:       constants.APIConfig.GoogleBooksBaseURL,
		OpenLibrary:       constants.APIConfig.OpenLibraryBaseURL,
		OpenLibraryCovers: constants.APIConfig.OpenLibraryCovers,
		Jikan:             constants.APIConfig.JikanBaseURL,
		Wikipedia:         constants.APIConfig.WikipediaBaseURL,
	}
}

type TableOptions struct {
	RAWGAPIKey        string
	TMDBAPIKey        string
	GoogleBooksAPIKey string
	// Language is the TMDB locale (fr-FR); its prefix restricts Google Books.
	Language        string
	Country         string
	EnableWikipedia bool
	Endpoints       Endpoints
}

// NewStrategyTable builds the per-category fallback chains. Providers that
// need a key are left out when the key is missing.
func NewStrategyTable(ctx context.Context, fetcher *Fetcher, opts TableOptions) (StrategyTable, error) {
	ep := opts.Endpoints
	if opts.Language == "" {
		opts.Language = "fr-FR"
	}
	if opts.Country == "" {
		opts.Country = "fr"
	}
	lang := strings.ToLower(strings.SplitN(opts.Language, "-", 2)[0])

	booksService, err := books.NewService(ctx,
		option.WithHTTPClient(fetcher.HTTPClient()),
		option.WithEndpoint(ep.GoogleBooks),
		option.WithoutAuthentication(),
	)
	if err != nil {
		return nil, fmt.Errorf("create google books client: %w", err)
	}

	var (
		games  []Strategy
		screen []Strategy
	)
	if opts.RAWGAPIKey != "" {
		games = append(games, &rawgStrategy{fetcher: fetcher, baseURL: ep.RAWG, apiKey: opts.RAWGAPIKey})
	}
	if opts.TMDBAPIKey != "" {
		screen = append(screen, &tmdbStrategy{
			fetcher:   fetcher,
			baseURL:   ep.TMDB,
			imageBase: ep.TMDBImages,
			apiKey:    opts.TMDBAPIKey,
			language:  opts.Language,
		})
	}

	bookChain := []Strategy{
		&itunesStrategy{fetcher: fetcher, baseURL: ep.ITunes, country: opts.Country},
		&googleBooksStrategy{fetcher: fetcher, service: booksService, apiKey: opts.GoogleBooksAPIKey, lang: lang},
		&openLibraryStrategy{fetcher: fetcher, baseURL: ep.OpenLibrary, coverBase: ep.OpenLibraryCovers},
	}
	japanese := []Strategy{&jikanStrategy{fetcher: fetcher, baseURL: ep.Jikan}}

	table := StrategyTable{
		domain.CategoryVideoGame: games,
		domain.CategoryMovie:     screen,
		domain.CategorySeries:    screen,
		domain.CategoryAnime:     japanese,
		domain.CategoryManga:     japanese,
		domain.CategoryBook:      bookChain,
	}

	if opts.EnableWikipedia {
		wiki := &wikipediaStrategy{fetcher: fetcher, baseURL: ep.Wikipedia}
		for category, chain := range table {
			table[category] = append(append([]Strategy{}, chain...), wiki)
		}
	}

	return table, nil
}
