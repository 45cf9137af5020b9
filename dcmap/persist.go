// Copyright 2025 The quicd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This file implements the optional persisted credential store
// spec.md section 6 allows: "an implementation MAY persist long-lived
// credentials in an opaque key-value store whose record format is a
// versioned tagged union containing (id, secret_bytes, peer_addr,
// creation_time, application_params)." The tagged union is a
// gogo/protobuf message, compressed with snappy before being written
// to a MongoDB collection as an opaque binary blob, so the store's
// schema never has to track the credential record's own versioning.
package dcmap

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/gogo/protobuf/proto"
	"github.com/golang/snappy"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// persistedEntryVersion is the tagged union's current format version;
// Store.Load rejects records from a newer version than it understands.
const persistedEntryVersion = 1

// persistedEntry is the gogo/protobuf wire message stored for each
// credential. It is marshaled via reflection over its protobuf struct
// tags, same as any non-generated gogo/protobuf message.
type persistedEntry struct {
	Id                []byte `protobuf:"bytes,1,opt,name=id"`
	Secret            []byte `protobuf:"bytes,2,opt,name=secret"`
	PeerAddr          string `protobuf:"bytes,3,opt,name=peer_addr"`
	CreationTime      int64  `protobuf:"varint,4,opt,name=creation_time"`
	ApplicationParams []byte `protobuf:"bytes,5,opt,name=application_params"`
	Version           uint32 `protobuf:"varint,6,opt,name=version"`
}

func (m *persistedEntry) Reset()         { *m = persistedEntry{} }
func (m *persistedEntry) String() string { return proto.CompactTextString(m) }
func (m *persistedEntry) ProtoMessage()  {}

// storedDocument is the MongoDB document shape: an indexable hex id
// plus the opaque compressed protobuf blob.
type storedDocument struct {
	ID   string `bson:"_id"`
	Blob []byte `bson:"blob"`
}

// Store persists Entry records to a MongoDB collection.
type Store struct {
	collection *mongo.Collection
}

// NewStore wraps an already-connected collection handle.
func NewStore(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

// Save upserts e's record.
func (s *Store) Save(ctx context.Context, e *Entry) error {
	msg := &persistedEntry{
		Id:                append([]byte{}, e.ID[:]...),
		Secret:            e.Secret,
		PeerAddr:          e.PeerAddr,
		CreationTime:      e.CreationTime,
		ApplicationParams: e.ApplicationParams,
		Version:           persistedEntryVersion,
	}
	raw, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	doc := storedDocument{ID: hex.EncodeToString(e.ID[:]), Blob: snappy.Encode(nil, raw)}

	opts := options.Replace().SetUpsert(true)
	_, err = s.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

// Load fetches and decodes the record for id, reporting mongo.ErrNoDocuments
// if it does not exist.
func (s *Store) Load(ctx context.Context, id Id) (*Entry, error) {
	var doc storedDocument
	if err := s.collection.FindOne(ctx, bson.M{"_id": hex.EncodeToString(id[:])}).Decode(&doc); err != nil {
		return nil, err
	}

	raw, err := snappy.Decode(nil, doc.Blob)
	if err != nil {
		return nil, err
	}
	var msg persistedEntry
	if err := proto.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	if msg.Version > persistedEntryVersion {
		return nil, fmt.Errorf("dcmap: persisted entry version %d is newer than supported version %d", msg.Version, persistedEntryVersion)
	}

	var entryID Id
	copy(entryID[:], msg.Id)
	return newEntry(entryID, msg.Secret, msg.PeerAddr, msg.CreationTime, msg.ApplicationParams), nil
}
