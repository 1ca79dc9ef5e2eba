package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/model"
)

func newRecord(id string) *model.OfflineContentRecord {
	return model.NewOfflineContentRecord(&model.ContentDescriptor{ID: id}, nil, time.Unix(0, 0).UTC())
}

func TestCacheIndex_InsertionOrder(t *testing.T) {
	idx := model.NewCacheIndex()
	idx.Put(newRecord("zebra"))
	idx.Put(newRecord("apple"))
	idx.Put(newRecord("mango"))

	gt.Value(t, idx.IDs()).Equal([]string{"zebra", "apple", "mango"})

	// Replacing keeps the original slot.
	replacement := newRecord("zebra")
	replacement.Metadata = map[string]any{"title": "v2"}
	idx.Put(replacement)

	gt.Number(t, idx.Len()).Equal(3)
	gt.Value(t, idx.IDs()).Equal([]string{"zebra", "apple", "mango"})
	rec, ok := idx.Get("zebra")
	gt.True(t, ok)
	gt.Value(t, rec.Metadata["title"]).Equal(any("v2"))
}

func TestCacheIndex_Delete(t *testing.T) {
	idx := model.NewCacheIndex()
	idx.Put(newRecord("a"))
	idx.Put(newRecord("b"))
	idx.Put(newRecord("c"))

	gt.True(t, idx.Delete("b"))
	gt.False(t, idx.Delete("b"))
	gt.False(t, idx.Has("b"))
	gt.Value(t, idx.IDs()).Equal([]string{"a", "c"})

	records := idx.Records()
	gt.A(t, records).Length(2)
	gt.Value(t, records[1].ID).Equal("c")
}

func TestCacheIndex_JSONPreservesOrder(t *testing.T) {
	idx := model.NewCacheIndex()
	for _, id := range []string{"m", "b", "x", "a"} {
		idx.Put(newRecord(id))
	}

	blob, err := json.Marshal(idx)
	gt.NoError(t, err)

	restored := model.NewCacheIndex()
	gt.NoError(t, json.Unmarshal(blob, restored))
	gt.Value(t, restored.IDs()).Equal([]string{"m", "b", "x", "a"})

	again, err := json.Marshal(restored)
	gt.NoError(t, err)
	gt.Value(t, string(again)).Equal(string(blob))
}

func TestCacheIndex_UnmarshalEmptyAndNull(t *testing.T) {
	for _, raw := range []string{`{}`, `null`} {
		idx := model.NewCacheIndex()
		gt.NoError(t, json.Unmarshal([]byte(raw), idx))
		gt.Number(t, idx.Len()).Equal(0)
	}
}

func TestCacheIndex_UnmarshalKeyWinsOverEmbeddedID(t *testing.T) {
	raw := `{"lesson-1":{"id":"other","mediaUrls":[],"downloadedAt":"2026-01-01T00:00:00Z"}}`
	idx := model.NewCacheIndex()
	gt.NoError(t, json.Unmarshal([]byte(raw), idx))

	rec, ok := idx.Get("lesson-1")
	gt.True(t, ok)
	gt.Value(t, rec.ID).Equal("lesson-1")
}

func TestCacheIndex_UnmarshalRejectsCorruptBlob(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "array", raw: `[1,2]`},
		{name: "truncated", raw: `{"a":{"id":"a","mediaUrls":[]`},
		{name: "record not object", raw: `{"a":42}`},
		{name: "garbage", raw: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := model.NewCacheIndex()
			gt.Error(t, json.Unmarshal([]byte(tt.raw), idx))
		})
	}
}
