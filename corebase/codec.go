package corebase

import (
	goccyjson "github.com/goccy/go-json"

	"github.com/latticedb/lattice/storeapi"
)

// encodeRecord/decodeRecord serialize a Record for storage. goccy/go-json
// is a drop-in encoding/json replacement; grounded on the broader corpus's
// use of it as a faster stdlib-compatible codec (see DESIGN.md).
func encodeRecord(rec storeapi.Record) ([]byte, error) {
	return goccyjson.Marshal(rec)
}

func decodeRecord(data []byte) (storeapi.Record, error) {
	var rec storeapi.Record
	if err := goccyjson.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}
