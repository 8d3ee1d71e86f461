package feed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/appcatalog/internal/catalog"
)

const iconHeight = "100"

type document struct {
	Feed struct {
		Entry entryList `json:"entry"`
	} `json:"feed"`
}

// entryList accepts both an array of entries and the bare object the feed
// API returns for single-entry pages. Entries stay raw so one malformed
// entry cannot poison its siblings.
type entryList []json.RawMessage

func (l *entryList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*l = nil
		return nil
	case trimmed[0] == '{':
		*l = entryList{json.RawMessage(trimmed)}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("decode entry list: %w", err)
	}
	*l = raw
	return nil
}

type label struct {
	Label string `json:"label"`
}

type image struct {
	Label      string `json:"label"`
	Attributes struct {
		Height string `json:"height"`
	} `json:"attributes"`
}

type entry struct {
	Name   label   `json:"im:name"`
	Images []image `json:"im:image"`
	ID     struct {
		Label      string `json:"label"`
		Attributes struct {
			ID       string `json:"im:id"`
			BundleID string `json:"im:bundleId"`
		} `json:"attributes"`
	} `json:"id"`
}

func (e entry) record() catalog.Record {
	rec := catalog.Record{
		ID:       e.ID.Attributes.ID,
		BundleID: e.ID.Attributes.BundleID,
		Name:     e.Name.Label,
	}
	for _, img := range e.Images {
		if img.Attributes.Height == iconHeight {
			rec.IconURL = img.Label
			break
		}
	}
	return rec
}

// Parse extracts complete, previously unseen records from a feed document and
// marks them in seen. Incomplete or undecodable entries are skipped. An error
// is returned only when the document itself is malformed.
func Parse(body []byte, seen *catalog.IDSet) ([]catalog.Record, int, error) {
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, 0, fmt.Errorf("decode feed: %w", err)
	}
	if seen == nil {
		seen = catalog.NewIDSet()
	}
	entries := doc.Feed.Entry
	records := make([]catalog.Record, 0, len(entries))
	for _, raw := range entries {
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		rec := e.record()
		if !rec.Complete() || seen.Has(rec.ID) {
			continue
		}
		seen.MarkIfNew(rec.ID)
		records = append(records, rec)
	}
	return records, len(entries), nil
}
