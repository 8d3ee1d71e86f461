// Package builder drives the feed fetcher across the grid required by a collection mode.
package builder

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/appcatalog/internal/catalog"
	"github.com/JakeFAU/appcatalog/internal/logging"
)

// Mode selects a traversal policy.
type Mode string

// Collection modes.
const (
	ModeGiant      Mode = "giant"
	ModeSupplement Mode = "supplement"
	ModeBuiltin    Mode = "builtin"
)

var (
	// ErrInvalidMode is returned for an unknown mode.
	ErrInvalidMode = errors.New("invalid collection mode")
	// ErrInvalidCountry is returned when a mode needs a country code and none valid was given.
	ErrInvalidCountry = errors.New("invalid country code")

	countryPattern = regexp.MustCompile(`^[a-z]{2}$`)
)

// ParseMode validates a mode name.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeGiant, ModeSupplement, ModeBuiltin:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}

// Params carries the caller-supplied arguments of a build.
type Params struct {
	Country string
	// Limit, when positive, caps the page size and truncates the traversal grid.
	Limit int
}

// Builder collects a deduplicated record list for one mode.
type Builder struct {
	feed   catalog.FeedFetcher
	logger *zap.Logger
}

// New constructs a Builder.
func New(feed catalog.FeedFetcher, logger *zap.Logger) *Builder {
	return &Builder{
		feed:   feed,
		logger: logging.OrNop(logger),
	}
}

// Plan returns the ordered feed queries for mode. It performs no I/O and is
// where invalid invocations are rejected.
func Plan(mode Mode, params Params) ([]catalog.FeedQuery, error) {
	switch mode {
	case ModeGiant:
		country, err := normalizeCountry(params.Country)
		if err != nil {
			return nil, err
		}
		rankings := []catalog.Ranking{catalog.RankingTopFree, catalog.RankingTopPaid}
		return categoryMajor(country, truncate(AllGenres(), params.Limit), rankings, params.Limit), nil
	case ModeSupplement:
		country, err := normalizeCountry(params.Country)
		if err != nil {
			return nil, err
		}
		rankings := []catalog.Ranking{catalog.RankingTopFree}
		return categoryMajor(country, truncate(SupplementSet(), params.Limit), rankings, params.Limit), nil
	case ModeBuiltin:
		return countryMajor(truncate(BuiltinCountries, params.Limit), truncate(BuiltinFeeds, params.Limit), params.Limit), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

// Build walks the plan for mode with a single processed-id set. The first
// occurrence of an id in traversal order wins.
func (b *Builder) Build(ctx context.Context, mode Mode, params Params) ([]catalog.Record, error) {
	queries, err := Plan(mode, params)
	if err != nil {
		return nil, err
	}
	b.logger.Info("starting collection",
		zap.String("mode", string(mode)),
		zap.String("country", params.Country),
		zap.Int("requests", len(queries)),
	)

	seen := catalog.NewIDSet()
	var records []catalog.Record
	for i, query := range queries {
		if err := ctx.Err(); err != nil {
			return records, fmt.Errorf("collection interrupted after %d of %d requests: %w", i, len(queries), err)
		}
		page := b.feed.Fetch(ctx, query, seen)
		records = append(records, page...)
	}

	b.logger.Info("finished collection",
		zap.String("mode", string(mode)),
		zap.Int("unique_apps", len(records)),
	)
	return records, nil
}

func categoryMajor(country string, genres []int, rankings []catalog.Ranking, limit int) []catalog.FeedQuery {
	queries := make([]catalog.FeedQuery, 0, len(genres)*len(rankings))
	for _, genre := range genres {
		for _, ranking := range rankings {
			queries = append(queries, catalog.FeedQuery{
				Country: country,
				Genre:   genre,
				Ranking: ranking,
				Limit:   pageLimit(0, limit),
			})
		}
	}
	return queries
}

func countryMajor(countries []string, feeds []FeedTuple, limit int) []catalog.FeedQuery {
	queries := make([]catalog.FeedQuery, 0, len(countries)*len(feeds))
	for _, country := range countries {
		for _, tuple := range feeds {
			queries = append(queries, catalog.FeedQuery{
				Country: country,
				Genre:   tuple.Genre,
				Ranking: tuple.Ranking,
				Limit:   pageLimit(tuple.Limit, limit),
			})
		}
	}
	return queries
}

// pageLimit caps base with the caller limit. Zero means the fetcher default.
func pageLimit(base, limit int) int {
	if limit <= 0 {
		return base
	}
	if base <= 0 || limit < base {
		return limit
	}
	return base
}

func truncate[T any](items []T, limit int) []T {
	if limit <= 0 || limit >= len(items) {
		return items
	}
	return items[:limit]
}

func normalizeCountry(raw string) (string, error) {
	country := strings.ToLower(strings.TrimSpace(raw))
	if !countryPattern.MatchString(country) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCountry, raw)
	}
	return country, nil
}

// OutputName returns the catalog file name, relative to the output root,
// that a build in mode writes to.
func OutputName(mode Mode, country string) string {
	if mode == ModeBuiltin {
		return path.Join(string(mode), "app_rankings_builtin.json")
	}
	return path.Join(string(mode), fmt.Sprintf("app_rankings_%s.json", strings.ToLower(strings.TrimSpace(country))))
}
