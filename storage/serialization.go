// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/poiesic/adala/core"
)

// EncodeVector serializes a vector as packed little-endian float32 values.
// This is also the blob format sqlite-vec expects.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector deserializes a vector produced by EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: vector of %d bytes", ErrTruncatedData, len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

type indexedDocumentHeader struct {
	Key      string        `json:"key"`
	Document core.Document `json:"document"`
	Text     string        `json:"text,omitempty"`
}

// MarshalIndexedDocument serializes an IndexedDocument to bytes.
// Layout: uvarint header length, JSON header, packed vector.
func MarshalIndexedDocument(doc *core.IndexedDocument) ([]byte, error) {
	header, err := json.Marshal(indexedDocumentHeader{Key: doc.Key, Document: doc.Document, Text: doc.Text})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	buf := make([]byte, binary.MaxVarintLen64, binary.MaxVarintLen64+len(header)+len(doc.Vector)*4)
	n := binary.PutUvarint(buf, uint64(len(header)))
	buf = buf[:n]
	buf = append(buf, header...)
	buf = append(buf, EncodeVector(doc.Vector)...)
	return buf, nil
}

// UnmarshalIndexedDocument deserializes an IndexedDocument from bytes.
func UnmarshalIndexedDocument(data []byte) (*core.IndexedDocument, error) {
	size, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("%w: missing header length", ErrTruncatedData)
	}
	if uint64(len(data)-n) < size {
		return nil, fmt.Errorf("%w: header of %d bytes", ErrTruncatedData, size)
	}
	end := n + int(size)

	var header indexedDocumentHeader
	if err := json.Unmarshal(data[n:end], &header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	vec, err := DecodeVector(data[end:])
	if err != nil {
		return nil, err
	}
	return &core.IndexedDocument{
		Key:      header.Key,
		Document: header.Document,
		Text:     header.Text,
		Vector:   vec,
	}, nil
}

// MarshalIndexMeta serializes index metadata to bytes.
func MarshalIndexMeta(meta *IndexMeta) ([]byte, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalIndexMeta deserializes index metadata from bytes.
func UnmarshalIndexMeta(data []byte) (*IndexMeta, error) {
	var meta IndexMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &meta, nil
}

// MarshalHistory serializes the conversation log as an indented JSON array.
// Non-ASCII text is kept as is.
func MarshalHistory(entries []core.HistoryEntry) ([]byte, error) {
	if entries == nil {
		entries = []core.HistoryEntry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return buf.Bytes(), nil
}

// UnmarshalHistory deserializes a conversation log.
func UnmarshalHistory(data []byte) ([]core.HistoryEntry, error) {
	var entries []core.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if entries == nil {
		entries = []core.HistoryEntry{}
	}
	return entries, nil
}
