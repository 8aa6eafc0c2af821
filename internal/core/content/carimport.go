package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bluesky-social/indigo/repo"
	"github.com/ipfs/go-cid"
	carv2 "github.com/ipld/go-car/v2"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/codec/dagjson"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"Skymarshal/internal/atproto/client"
	"Skymarshal/pkg/errors"
)

// recordsFromCAR decodes a repo CAR snapshot into raw records, filtered to
// the wanted collections. Two passes: the block scan collects every block's
// bytes by CID; the MST walk maps collection/rkey paths onto those CIDs.
// The output matches what listRecords produces, so the converter has a
// single code path for both sources.
func recordsFromCAR(ctx context.Context, did string, data []byte, collections map[string]bool) ([]client.Record, error) {
	blockReader, err := carv2.NewBlockReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.Storage, "parse CAR backup")
	}
	blocks := make(map[string][]byte)
	for {
		blk, err := blockReader.Next()
		if err != nil {
			break
		}
		blocks[blk.Cid().String()] = blk.RawData()
	}

	r, err := repo.ReadRepoFromCar(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.Storage, "read repo structure from CAR")
	}

	var records []client.Record
	err = r.ForEach(ctx, "", func(path string, rcid cid.Cid) error {
		collection, _, ok := strings.Cut(path, "/")
		if !ok || !collections[collection] {
			return nil
		}
		raw, ok := blocks[rcid.String()]
		if !ok {
			return nil
		}
		value, err := decodeCBORRecord(raw)
		if err != nil {
			// A single undecodable block never aborts the import.
			return nil
		}
		records = append(records, client.Record{
			URI:   fmt.Sprintf("at://%s/%s", did, path),
			CID:   rcid.String(),
			Value: value,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.Storage, "walk repo records")
	}
	return records, nil
}

// decodeCBORRecord converts one dag-cbor block into the plain map shape
// the converter expects, going through dag-json as the bridge.
func decodeCBORRecord(raw []byte) (map[string]any, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	if err := dagcbor.Decode(nb, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("decode dag-cbor: %w", err)
	}
	var buf bytes.Buffer
	if err := dagjson.Encode(nb.Build(), &buf); err != nil {
		return nil, fmt.Errorf("encode dag-json: %w", err)
	}
	var value map[string]any
	if err := json.Unmarshal(buf.Bytes(), &value); err != nil {
		return nil, fmt.Errorf("parse record json: %w", err)
	}
	return value, nil
}
