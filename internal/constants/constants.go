package constants

import "time"

// PlaceholderImageURL is served whenever no catalog yields a usable cover.
const PlaceholderImageURL = "https://placehold.co/400x600?text=Image+indisponible"

var BatchConfig = struct {
	Size    int
	Workers int
}{
	Size:    3, // une sélection = 3 titres
	Workers: 3,
}

var CacheTTL = struct {
	CoverImage time.Duration
	Session    time.Duration
}{
	CoverImage: 30 * 24 * time.Hour, // covers rarely change
	Session:    2 * time.Hour,
}

var CatalogConfig = struct {
	RequestTimeout time.Duration
	LookupTimeout  time.Duration
	CacheSize      int
	UserAgent      string
}{
	RequestTimeout: 2500 * time.Millisecond, // one slow provider must not stall the batch
	LookupTimeout:  6 * time.Second,         // whole fallback chain for one title
	CacheSize:      512,
	UserAgent:      "TheShortlist/1.0 (+https://theshortlist.app)",
}

var GenerationConfig = struct {
	Timeout         time.Duration
	MaxQueryLength  int
	PreviewLength   int
	FactInterval    time.Duration
	DislikeWindow   time.Duration
	FavoriteRating  int
	MaxRating       int
	FavoritesPinned int
	TopRatedLimit   int
}{
	Timeout:         45 * time.Second,
	MaxQueryLength:  500,
	PreviewLength:   200,
	FactInterval:    4 * time.Second,
	DislikeWindow:   14 * 24 * time.Hour,
	FavoriteRating:  4,
	MaxRating:       5,
	FavoritesPinned: 5,
	TopRatedLimit:   10,
}

var CircuitBreakerConfig = struct {
	FailureThreshold uint32
	ResetTimeout     time.Duration
	Interval         time.Duration
}{
	FailureThreshold: 3,                // 3 consecutive failures open the circuit
	ResetTimeout:     30 * time.Second, // half-open probe after this
	Interval:         time.Minute,
}

var APIConfig = struct {
	RAWGBaseURL        string
	TMDBBaseURL        string
	TMDBImageBaseURL   string
	ITunesBaseURL      string
	GoogleBooksBaseURL string
	OpenLibraryBaseURL string
	OpenLibraryCovers  string
	JikanBaseURL       string
	WikipediaBaseURL   string
}{
	RAWGBaseURL:        "https://api.rawg.io/api",
	TMDBBaseURL:        "https://api.themoviedb.org/3",
	TMDBImageBaseURL:   "https://image.tmdb.org/t/p/w500",
	ITunesBaseURL:      "https://itunes.apple.com",
	GoogleBooksBaseURL: "https://books.googleapis.com/",
	OpenLibraryBaseURL: "https://openlibrary.org",
	OpenLibraryCovers:  "https://covers.openlibrary.org/b/id",
	JikanBaseURL:       "https://api.jikan.moe/v4",
	WikipediaBaseURL:   "https://fr.wikipedia.org",
}

var RateLimits = struct {
	JikanRPS   float64
	JikanBurst int
	DefaultRPS float64
	Burst      int
}{
	JikanRPS:   3, // Jikan public limit
	JikanBurst: 3,
	DefaultRPS: 10,
	Burst:      10,
}
