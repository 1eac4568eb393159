package catalog

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/kapu/shortlist-go/internal/domain"
)

const (
	ProviderRAWG        = "rawg"
	ProviderTMDB        = "tmdb"
	ProviderITunes      = "itunes"
	ProviderGoogleBooks = "google_books"
	ProviderOpenLibrary = "openlibrary"
	ProviderJikan       = "jikan"
	ProviderWikipedia   = "wikipedia"
)

// ErrNoResult means the provider answered but had no usable image.
var ErrNoResult = errors.New("no image found")

// Strategy resolves a cover for one provider.
type Strategy interface {
	Name() string
	Lookup(ctx context.Context, title string, category domain.Category) (string, error)
}

// StrategyTable maps each category to its ordered fallback chain.
type StrategyTable map[domain.Category][]Strategy

// validImageURL keeps absolute http(s) URLs and upgrades http to https.
func validImageURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	switch u.Scheme {
	case "https":
	case "http":
		u.Scheme = "https"
	default:
		return "", false
	}
	return u.String(), true
}
