package builder

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/appcatalog/internal/catalog"
	"github.com/JakeFAU/appcatalog/internal/feed"
	collyfetcher "github.com/JakeFAU/appcatalog/internal/fetcher/colly"
	"github.com/JakeFAU/appcatalog/internal/storage/local"
)

// scriptedFeed returns canned pages keyed by genre and honours the shared id set
// the way the real feed client does.
type scriptedFeed struct {
	pages   map[int][]catalog.Record
	queries []catalog.FeedQuery
}

func (f *scriptedFeed) Fetch(_ context.Context, query catalog.FeedQuery, seen *catalog.IDSet) []catalog.Record {
	f.queries = append(f.queries, query)
	var out []catalog.Record
	for _, rec := range f.pages[query.Genre] {
		if seen.MarkIfNew(rec.ID) {
			out = append(out, rec)
		}
	}
	return out
}

func rec(id string) catalog.Record {
	return catalog.Record{ID: id, BundleID: "com.app" + id, Name: "App " + id, IconURL: "https://i/" + id + ".png"}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"giant", "Supplement", " builtin "} {
		_, err := ParseMode(raw)
		assert.NoError(t, err, raw)
	}
	_, err := ParseMode("huge")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestTablesSize(t *testing.T) {
	t.Parallel()

	assert.Len(t, AllGenres(), 42)
	assert.Len(t, SupplementSet(), len(GameGenres)+5)
	assert.Len(t, BuiltinFeeds, 6)
	assert.Len(t, BuiltinCountries, 50)

	seen := map[string]bool{}
	for _, cc := range BuiltinCountries {
		assert.False(t, seen[cc], "duplicate country %s", cc)
		seen[cc] = true
	}
}

func TestPlanGiantIsCategoryMajor(t *testing.T) {
	t.Parallel()

	queries, err := Plan(ModeGiant, Params{Country: "US"})
	require.NoError(t, err)
	require.Len(t, queries, 84)

	assert.Equal(t, catalog.FeedQuery{Country: "us", Genre: 7001, Ranking: catalog.RankingTopFree}, queries[0])
	assert.Equal(t, catalog.FeedQuery{Country: "us", Genre: 7001, Ranking: catalog.RankingTopPaid}, queries[1])
	assert.Equal(t, 7002, queries[2].Genre)
	assert.Equal(t, 6001, queries[83].Genre)
}

func TestPlanSupplementFreeOnly(t *testing.T) {
	t.Parallel()

	queries, err := Plan(ModeSupplement, Params{Country: "jp"})
	require.NoError(t, err)
	require.Len(t, queries, len(GameGenres)+5)
	for _, q := range queries {
		assert.Equal(t, catalog.RankingTopFree, q.Ranking)
		assert.Equal(t, "jp", q.Country)
	}
	assert.Equal(t, 6002, queries[len(queries)-1].Genre)
}

func TestPlanBuiltinIsCountryMajor(t *testing.T) {
	t.Parallel()

	queries, err := Plan(ModeBuiltin, Params{})
	require.NoError(t, err)
	require.Len(t, queries, 300)

	for i, tuple := range BuiltinFeeds {
		assert.Equal(t, "us", queries[i].Country)
		assert.Equal(t, tuple.Genre, queries[i].Genre)
		assert.Equal(t, tuple.Limit, queries[i].Limit)
		assert.Equal(t, tuple.Ranking, queries[i].Ranking)
	}
	assert.Equal(t, "jp", queries[len(BuiltinFeeds)].Country)
}

func TestPlanLimitTruncates(t *testing.T) {
	t.Parallel()

	giant, err := Plan(ModeGiant, Params{Country: "us", Limit: 3})
	require.NoError(t, err)
	require.Len(t, giant, 6)
	for _, q := range giant {
		assert.Equal(t, 3, q.Limit)
	}

	builtin, err := Plan(ModeBuiltin, Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, builtin, 4)
	assert.Equal(t, "us", builtin[0].Country)
	assert.Equal(t, "jp", builtin[2].Country)
	for _, q := range builtin {
		assert.Equal(t, 2, q.Limit)
	}

	large, err := Plan(ModeBuiltin, Params{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, large, 300)
	assert.Equal(t, 200, large[0].Limit)
}

func TestPlanRejectsInvalidInvocation(t *testing.T) {
	t.Parallel()

	_, err := Plan(ModeGiant, Params{})
	require.ErrorIs(t, err, ErrInvalidCountry)
	_, err = Plan(ModeSupplement, Params{Country: "usa"})
	require.ErrorIs(t, err, ErrInvalidCountry)
	_, err = Plan(Mode("nope"), Params{Country: "us"})
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestBuildInvalidMakesNoRequests(t *testing.T) {
	t.Parallel()

	fake := &scriptedFeed{}
	_, err := New(fake, zap.NewNop()).Build(context.Background(), ModeGiant, Params{Country: "1x"})
	require.Error(t, err)
	assert.Empty(t, fake.queries)
}

func TestBuildFirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	first := rec("1")
	dup := rec("1")
	dup.Name = "Later copy"
	fake := &scriptedFeed{pages: map[int][]catalog.Record{
		7001: {first, rec("2")},
		7002: {dup, rec("3")},
	}}

	records, err := New(fake, zap.NewNop()).Build(context.Background(), ModeSupplement, Params{Country: "us", Limit: 2})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "App 1", records[0].Name)
	assert.Equal(t, []string{"1", "2", "3"}, []string{records[0].ID, records[1].ID, records[2].ID})
}

func TestBuildIDsPairwiseDistinct(t *testing.T) {
	t.Parallel()

	pages := map[int][]catalog.Record{}
	for i, genre := range AllGenres() {
		// Neighbouring categories share half their entries.
		pages[genre] = []catalog.Record{rec(fmt.Sprint(i)), rec(fmt.Sprint(i + 1))}
	}
	fake := &scriptedFeed{pages: pages}

	records, err := New(fake, nil).Build(context.Background(), ModeGiant, Params{Country: "de"})
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, r := range records {
		assert.False(t, ids[r.ID], "duplicate id %s", r.ID)
		ids[r.ID] = true
	}
	assert.Len(t, records, len(AllGenres())+1)
}

func TestBuildStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := &scriptedFeed{}
	_, err := New(fake, nil).Build(ctx, ModeBuiltin, Params{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.queries)
}

func TestOutputName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "giant/app_rankings_us.json", OutputName(ModeGiant, "US"))
	assert.Equal(t, "supplement/app_rankings_jp.json", OutputName(ModeSupplement, "jp"))
	assert.Equal(t, "builtin/app_rankings_builtin.json", OutputName(ModeBuiltin, ""))
}

type zeroWaiter struct{}

func (zeroWaiter) Wait(context.Context) time.Duration { return 0 }

func TestBuildSupplementEndToEnd(t *testing.T) {
	t.Parallel()

	const page = `{"feed":{"entry":{
		"im:name":{"label":"A"},
		"im:image":[{"label":"https://i/53.png","attributes":{"height":"53"}},{"label":"https://i/100.png","attributes":{"height":"100"}}],
		"id":{"attributes":{"im:id":"1","im:bundleId":"com.a"}}
	}}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/genre=7001/json") {
			_, _ = w.Write([]byte(page))
			return
		}
		_, _ = w.Write([]byte(`{"feed":{}}`))
	}))
	t.Cleanup(srv.Close)

	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second})
	client := feed.New(fetcher, zeroWaiter{}, feed.Config{BaseURL: srv.URL}, nil)
	records, err := New(client, nil).Build(context.Background(), ModeSupplement, Params{Country: "us", Limit: 2})
	require.NoError(t, err)

	store, err := local.New(local.Config{BaseDir: t.TempDir()}, nil)
	require.NoError(t, err)
	written, err := store.Save(context.Background(), OutputName(ModeSupplement, "us"), records)
	require.NoError(t, err)
	assert.Equal(t, 1, written.Records)

	loaded, err := store.Load(context.Background(), OutputName(ModeSupplement, "us"))
	require.NoError(t, err)
	assert.Equal(t, []catalog.Record{{ID: "1", BundleID: "com.a", Name: "A", IconURL: "https://i/100.png"}}, loaded)
}
