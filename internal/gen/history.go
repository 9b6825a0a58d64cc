//
// Copyright © 2017 Solus Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package gen is purely a reporting aid bolted onto the core pipelines:
// HistoryStore records which generation a Switch activated, and
// BuildCache memoizes revision builds across concurrent Load builds.
// Neither is consulted by build or execute for correctness.
package gen

import (
	"encoding/binary"
	"time"

	"github.com/boltdb/bolt"

	"github.com/revship/revship/internal/storepath"
)

var generationsBucket = []byte("generations")

// Record is one entry in the generation history: a Switch that
// succeeded, and what it activated.
type Record struct {
	Number    uint64
	Item      storepath.StoreRoot
	Mode      string
	Hostname  string
	Timestamp time.Time
}

// HistoryStore is a boltdb-backed append-only log of activated
// generations, consulted only by "list-generations" reporting.
type HistoryStore struct {
	db *bolt.DB
}

// OpenHistoryStore opens (creating if absent) the history database at path.
func OpenHistoryStore(path string) (*HistoryStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(generationsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &HistoryStore{db: db}, nil
}

// Close releases the underlying database handle.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}

// Append records a new generation, assigning it the next monotonic
// number (bolt's NextSequence for the bucket).
func (h *HistoryStore) Append(item storepath.StoreRoot, mode, hostname string, when time.Time) (Record, error) {
	var rec Record
	err := h.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(generationsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec = Record{Number: seq, Item: item, Mode: mode, Hostname: hostname, Timestamp: when}

		buf, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		return b.Put(keyFor(seq), buf)
	})
	return rec, err
}

// List returns every recorded generation, oldest first.
func (h *HistoryStore) List() ([]Record, error) {
	var out []Record
	err := h.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(generationsBucket)
		return b.ForEach(func(k, v []byte) error {
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

func keyFor(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}

func encodeRecord(rec Record) ([]byte, error) {
	enc := newGobEncoder()
	return enc.EncodeType(rec)
}

func decodeRecord(data []byte) (Record, error) {
	var rec Record
	dec := newGobDecoder()
	if err := dec.DecodeType(data, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
