package catalog

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"google.golang.org/api/books/v1"
	"google.golang.org/api/googleapi"

	"github.com/kapu/shortlist-go/internal/domain"
)

// firstString extracts the first non-empty path from a JSON body.
func firstString(body []byte, paths ...string) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range paths {
		if v := gjson.GetBytes(body, path).String(); v != "" {
			return v
		}
	}
	return ""
}

func imageOrNoResult(raw string) (string, error) {
	if u, ok := validImageURL(raw); ok {
		return u, nil
	}
	return "", ErrNoResult
}

// rawgStrategy searches the RAWG games database.
type rawgStrategy struct {
	fetcher *Fetcher
	baseURL string
	apiKey  string
}

func (s *rawgStrategy) Name() string { return ProviderRAWG }

func (s *rawgStrategy) Lookup(ctx context.Context, title string, _ domain.Category) (string, error) {
	params := url.Values{}
	params.Set("key", s.apiKey)
	params.Set("search", title)
	params.Set("page_size", "1")

	body, err := s.fetcher.Get(ctx, ProviderRAWG, s.baseURL+"/games?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	return imageOrNoResult(firstString(body, "results.0.background_image"))
}

// tmdbStrategy searches TMDB movies or TV shows and prefixes the CDN base.
type tmdbStrategy struct {
	fetcher   *Fetcher
	baseURL   string
	imageBase string
	apiKey    string
	language  string
}

func (s *tmdbStrategy) Name() string { return ProviderTMDB }

func (s *tmdbStrategy) Lookup(ctx context.Context, title string, category domain.Category) (string, error) {
	kind := "movie"
	if category == domain.CategorySeries {
		kind = "tv"
	}

	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("query", title)
	params.Set("language", s.language)

	body, err := s.fetcher.Get(ctx, ProviderTMDB, fmt.Sprintf("%s/search/%s?%s", s.baseURL, kind, params.Encode()), nil)
	if err != nil {
		return "", err
	}

	poster := firstString(body, "results.0.poster_path", "results.0.backdrop_path")
	if poster == "" {
		return "", ErrNoResult
	}
	return imageOrNoResult(s.imageBase + "/" + strings.TrimPrefix(poster, "/"))
}

var artworkSizePattern = regexp.MustCompile(`/\d+x\d+(bb)?\.(jpg|png)$`)

// itunesStrategy searches Apple Books. Artwork URLs embed their size and
// serve larger renditions when the token is rewritten.
type itunesStrategy struct {
	fetcher *Fetcher
	baseURL string
	country string
}

func (s *itunesStrategy) Name() string { return ProviderITunes }

func (s *itunesStrategy) Lookup(ctx context.Context, title string, _ domain.Category) (string, error) {
	params := url.Values{}
	params.Set("term", title)
	params.Set("media", "ebook")
	params.Set("entity", "ebook")
	params.Set("limit", "1")
	params.Set("country", s.country)

	body, err := s.fetcher.Get(ctx, ProviderITunes, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	return imageOrNoResult(upsizeArtwork(firstString(body, "results.0.artworkUrl100", "results.0.artworkUrl60")))
}

func upsizeArtwork(raw string) string {
	if raw == "" {
		return ""
	}
	return artworkSizePattern.ReplaceAllString(raw, "/600x600bb.$2")
}

// googleBooksStrategy uses the Books API client and keeps the largest
// image variant.
type googleBooksStrategy struct {
	fetcher *Fetcher
	service *books.Service
	apiKey  string
	lang    string
}

func (s *googleBooksStrategy) Name() string { return ProviderGoogleBooks }

func (s *googleBooksStrategy) Lookup(ctx context.Context, title string, _ domain.Category) (string, error) {
	body, err := s.fetcher.Call(ctx, ProviderGoogleBooks, func(ctx context.Context) ([]byte, error) {
		call := s.service.Volumes.List(title).MaxResults(1).PrintType("books").Context(ctx)
		if s.lang != "" {
			call = call.LangRestrict(s.lang)
		}
		var opts []googleapi.CallOption
		if s.apiKey != "" {
			opts = append(opts, googleapi.QueryParameter("key", s.apiKey))
		}

		volumes, err := call.Do(opts...)
		if err != nil {
			return nil, err
		}
		return []byte(largestImageLink(volumes)), nil
	})
	if err != nil {
		return "", err
	}
	return imageOrNoResult(string(body))
}

func largestImageLink(volumes *books.Volumes) string {
	if volumes == nil || len(volumes.Items) == 0 {
		return ""
	}
	info := volumes.Items[0].VolumeInfo
	if info == nil || info.ImageLinks == nil {
		return ""
	}
	links := info.ImageLinks
	for _, candidate := range []string{links.ExtraLarge, links.Large, links.Medium, links.Small, links.Thumbnail, links.SmallThumbnail} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// openLibraryStrategy finds a cover id and builds the large cover URL.
type openLibraryStrategy struct {
	fetcher   *Fetcher
	baseURL   string
	coverBase string
}

func (s *openLibraryStrategy) Name() string { return ProviderOpenLibrary }

func (s *openLibraryStrategy) Lookup(ctx context.Context, title string, _ domain.Category) (string, error) {
	params := url.Values{}
	params.Set("title", title)
	params.Set("limit", "1")
	params.Set("fields", "cover_i")

	body, err := s.fetcher.Get(ctx, ProviderOpenLibrary, s.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	coverID := gjson.GetBytes(body, "docs.0.cover_i").Int()
	if coverID <= 0 {
		return "", ErrNoResult
	}
	return imageOrNoResult(fmt.Sprintf("%s/%d-L.jpg", s.coverBase, coverID))
}

// jikanStrategy searches MyAnimeList through Jikan.
type jikanStrategy struct {
	fetcher *Fetcher
	baseURL string
}

func (s *jikanStrategy) Name() string { return ProviderJikan }

func (s *jikanStrategy) Lookup(ctx context.Context, title string, category domain.Category) (string, error) {
	kind := "anime"
	if category == domain.CategoryManga {
		kind = "manga"
	}

	params := url.Values{}
	params.Set("q", title)
	params.Set("limit", "1")

	body, err := s.fetcher.Get(ctx, ProviderJikan, fmt.Sprintf("%s/%s?%s", s.baseURL, kind, params.Encode()), nil)
	if err != nil {
		return "", err
	}
	return imageOrNoResult(firstString(body,
		"data.0.images.jpg.large_image_url",
		"data.0.images.jpg.image_url",
		"data.0.images.webp.large_image_url",
	))
}

// wikipediaStrategy opens the article a search redirects to and reads its
// og:image. Used as the last tier for every category.
type wikipediaStrategy struct {
	fetcher *Fetcher
	baseURL string
}

func (s *wikipediaStrategy) Name() string { return ProviderWikipedia }

func (s *wikipediaStrategy) Lookup(ctx context.Context, title string, _ domain.Category) (string, error) {
	params := url.Values{}
	params.Set("search", title)
	params.Set("title", "Special:Search")
	params.Set("go", "Go")

	header := http.Header{"Accept": []string{"text/html"}}
	body, err := s.fetcher.Get(ctx, ProviderWikipedia, s.baseURL+"/w/index.php?"+params.Encode(), header)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse wikipedia page: %w", err)
	}

	content, _ := doc.Find(`meta[property="og:image"]`).First().Attr("content")
	return imageOrNoResult(content)
}
