package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDSetMarkIfNew(t *testing.T) {
	t.Parallel()

	set := NewIDSet()
	assert.True(t, set.MarkIfNew("1"))
	assert.False(t, set.MarkIfNew("1"))
	assert.False(t, set.MarkIfNew(""))
	assert.True(t, set.Has("1"))
	assert.False(t, set.Has("2"))
	assert.Equal(t, 1, set.Len())
}

func TestRecordComplete(t *testing.T) {
	t.Parallel()

	full := Record{ID: "1", BundleID: "com.a", Name: "A", IconURL: "https://i/100.png"}
	assert.True(t, full.Complete())

	missing := full
	missing.BundleID = ""
	assert.False(t, missing.Complete())
}

func TestEnrichedNegativeMarker(t *testing.T) {
	t.Parallel()

	rec := Record{ID: "1", BundleID: "com.a", Name: "A", IconURL: "icon"}
	payload, err := json.Marshal(rec.Enriched(nil))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"id":"1","bundle_id":"com.a","name":"A","icon_url":"icon","seller_url":null,"universal_links":[]}`,
		string(payload))
}

func TestEnrichedCopiesResult(t *testing.T) {
	t.Parallel()

	seller := "https://seller.example"
	res := &EnrichmentResult{SellerURL: &seller, UniversalLinks: []string{"/a/*"}}
	out := Record{ID: "1"}.Enriched(res)

	require.NotNil(t, out.SellerURL)
	assert.Equal(t, seller, *out.SellerURL)
	assert.Equal(t, []string{"/a/*"}, out.UniversalLinks)

	res.UniversalLinks[0] = "/mutated"
	assert.Equal(t, "/a/*", out.UniversalLinks[0])
}
