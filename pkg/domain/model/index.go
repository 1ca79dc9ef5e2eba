package model

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/m-mizutani/goerr/v2"
)

// CacheIndex maps content id to its offline record. Iteration and serialization follow
// insertion order; replacing an existing id keeps its original position.
type CacheIndex struct {
	order   []string
	records map[string]*OfflineContentRecord
}

// NewCacheIndex returns an empty index.
func NewCacheIndex() *CacheIndex {
	return &CacheIndex{
		records: make(map[string]*OfflineContentRecord),
	}
}

func (x *CacheIndex) Len() int {
	return len(x.order)
}

func (x *CacheIndex) Has(id string) bool {
	_, ok := x.records[id]
	return ok
}

func (x *CacheIndex) Get(id string) (*OfflineContentRecord, bool) {
	rec, ok := x.records[id]
	return rec, ok
}

// Put inserts or replaces the record keyed by rec.ID.
func (x *CacheIndex) Put(rec *OfflineContentRecord) {
	if x.records == nil {
		x.records = make(map[string]*OfflineContentRecord)
	}
	if _, ok := x.records[rec.ID]; !ok {
		x.order = append(x.order, rec.ID)
	}
	x.records[rec.ID] = rec
}

// Delete removes id and reports whether it was present.
func (x *CacheIndex) Delete(id string) bool {
	if _, ok := x.records[id]; !ok {
		return false
	}
	delete(x.records, id)
	if i := slices.Index(x.order, id); i >= 0 {
		x.order = slices.Delete(x.order, i, i+1)
	}
	return true
}

// IDs returns the ids in insertion order.
func (x *CacheIndex) IDs() []string {
	return slices.Clone(x.order)
}

// Records returns the records in insertion order.
func (x *CacheIndex) Records() []*OfflineContentRecord {
	out := make([]*OfflineContentRecord, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.records[id])
	}
	return out
}

func (x *CacheIndex) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range x.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode index key", goerr.V("id", id))
		}
		val, err := json.Marshal(x.records[id])
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode index record", goerr.V("id", id))
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object token by token so the key order of the blob becomes
// the insertion order of the index.
func (x *CacheIndex) UnmarshalJSON(data []byte) error {
	*x = CacheIndex{records: make(map[string]*OfflineContentRecord)}
	if isNull(data) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return goerr.Wrap(err, "failed to read cache index")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return goerr.New("cache index is not a JSON object", goerr.V("token", tok))
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return goerr.Wrap(err, "failed to read cache index key")
		}
		id, ok := tok.(string)
		if !ok {
			return goerr.New("cache index key is not a string", goerr.V("token", tok))
		}

		var rec OfflineContentRecord
		if err := dec.Decode(&rec); err != nil {
			return goerr.Wrap(err, "failed to decode cache index record", goerr.V("id", id))
		}
		rec.ID = id
		x.Put(&rec)
	}

	if _, err := dec.Token(); err != nil {
		return goerr.Wrap(err, "cache index is truncated")
	}
	return nil
}
