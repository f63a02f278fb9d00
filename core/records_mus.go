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


package core

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for stored records. Field order is the wire order; new
// fields must only ever be appended.
var (
	IDMUS        = idMUS{}
	BotMUS       = botMUS{}
	SourceMUS    = sourceMUS{}
	ChunkMUS     = chunkMUS{}
	EmbeddingMUS = embeddingMUS{}
)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) { return varint.Uint64.Marshal(uint64(v), bs) }

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) int { return varint.Uint64.Size(uint64(v)) }

func (idMUS) Skip(bs []byte) (n int, err error) { return varint.Uint64.Skip(bs) }

type botMUS struct{}

func (botMUS) Marshal(v Bot, bs []byte) (n int) {
	e := encoder{bs: bs}
	e.string(v.Id)
	e.string(v.Name)
	e.string(v.Tone)
	e.string(v.FallbackMessage)
	e.float64(v.LeadThreshold)
	e.int(v.MaxPages)
	e.strings(v.QuickPrompts)
	e.time(v.CreatedAt)
	e.time(v.UpdatedAt)
	return e.n
}

func (botMUS) Unmarshal(bs []byte) (v Bot, n int, err error) {
	d := decoder{bs: bs}
	v.Id = d.string()
	v.Name = d.string()
	v.Tone = d.string()
	v.FallbackMessage = d.string()
	v.LeadThreshold = d.float64()
	v.MaxPages = d.int()
	v.QuickPrompts = d.strings()
	v.CreatedAt = d.time()
	v.UpdatedAt = d.time()
	return v, d.n, d.wrap("bot")
}

func (botMUS) Size(v Bot) int {
	return sizeString(v.Id) + sizeString(v.Name) + sizeString(v.Tone) +
		sizeString(v.FallbackMessage) + sizeFloat64(v.LeadThreshold) +
		varint.Int.Size(v.MaxPages) + sizeStrings(v.QuickPrompts) +
		sizeTime(v.CreatedAt) + sizeTime(v.UpdatedAt)
}

func (m botMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return n, err
}

type sourceMUS struct{}

func (sourceMUS) Marshal(v Source, bs []byte) (n int) {
	e := encoder{bs: bs}
	e.string(v.Id)
	e.string(v.BotId)
	e.string(string(v.Kind))
	e.string(v.Locator)
	e.string(v.DocumentName)
	e.string(v.MimeType)
	e.string(string(v.Status))
	e.string(v.Error)
	e.int(v.PageCount)
	e.time(v.LastRefreshedAt)
	e.time(v.CreatedAt)
	e.time(v.UpdatedAt)
	return e.n
}

func (sourceMUS) Unmarshal(bs []byte) (v Source, n int, err error) {
	d := decoder{bs: bs}
	v.Id = d.string()
	v.BotId = d.string()
	v.Kind = SourceKind(d.string())
	v.Locator = d.string()
	v.DocumentName = d.string()
	v.MimeType = d.string()
	v.Status = SourceStatus(d.string())
	v.Error = d.string()
	v.PageCount = d.int()
	v.LastRefreshedAt = d.time()
	v.CreatedAt = d.time()
	v.UpdatedAt = d.time()
	return v, d.n, d.wrap("source")
}

func (sourceMUS) Size(v Source) int {
	return sizeString(v.Id) + sizeString(v.BotId) + sizeString(string(v.Kind)) +
		sizeString(v.Locator) + sizeString(v.DocumentName) + sizeString(v.MimeType) +
		sizeString(string(v.Status)) + sizeString(v.Error) + varint.Int.Size(v.PageCount) +
		sizeTime(v.LastRefreshedAt) + sizeTime(v.CreatedAt) + sizeTime(v.UpdatedAt)
}

func (m sourceMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return n, err
}

type chunkMUS struct{}

func (chunkMUS) Marshal(v Chunk, bs []byte) (n int) {
	e := encoder{bs: bs}
	e.id(v.Id)
	e.string(v.BotId)
	e.string(v.SourceId)
	e.string(v.Content)
	e.metadata(v.Metadata)
	e.int(v.TokenCount)
	e.id(v.ContentHash)
	e.time(v.CreatedAt)
	return e.n
}

func (chunkMUS) Unmarshal(bs []byte) (v Chunk, n int, err error) {
	d := decoder{bs: bs}
	v.Id = d.id()
	v.BotId = d.string()
	v.SourceId = d.string()
	v.Content = d.string()
	v.Metadata = d.metadata()
	v.TokenCount = d.int()
	v.ContentHash = d.id()
	v.CreatedAt = d.time()
	return v, d.n, d.wrap("chunk")
}

func (chunkMUS) Size(v Chunk) int {
	return IDMUS.Size(v.Id) + sizeString(v.BotId) + sizeString(v.SourceId) +
		sizeString(v.Content) + sizeMetadata(v.Metadata) + varint.Int.Size(v.TokenCount) +
		IDMUS.Size(v.ContentHash) + sizeTime(v.CreatedAt)
}

func (m chunkMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return n, err
}

type embeddingMUS struct{}

func (embeddingMUS) Marshal(v Embedding, bs []byte) (n int) {
	e := encoder{bs: bs}
	e.id(v.ChunkId)
	e.string(v.BotId)
	e.string(v.Model)
	e.vector(v.Vector)
	return e.n
}

func (embeddingMUS) Unmarshal(bs []byte) (v Embedding, n int, err error) {
	d := decoder{bs: bs}
	v.ChunkId = d.id()
	v.BotId = d.string()
	v.Model = d.string()
	v.Vector = d.vector()
	return v, d.n, d.wrap("embedding")
}

func (embeddingMUS) Size(v Embedding) int {
	return IDMUS.Size(v.ChunkId) + sizeString(v.BotId) + sizeString(v.Model) + sizeVector(v.Vector)
}

func (m embeddingMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return n, err
}

// encoder appends fields to a buffer pre-sized by the matching Size method.
type encoder struct {
	bs []byte
	n  int
}

func (e *encoder) id(v ID) { e.n += IDMUS.Marshal(v, e.bs[e.n:]) }
func (e *encoder) string(v string) { e.n += ord.String.Marshal(v, e.bs[e.n:]) }
func (e *encoder) int(v int) { e.n += varint.Int.Marshal(v, e.bs[e.n:]) }
func (e *encoder) time(v time.Time) {
	e.n += varint.Int64.Marshal(timeToMicros(v), e.bs[e.n:])
}

func (e *encoder) float64(v float64) {
	e.n += varint.Uint64.Marshal(math.Float64bits(v), e.bs[e.n:])
}

func (e *encoder) strings(v []string) {
	e.int(len(v))
	for _, s := range v {
		e.string(s)
	}
}

// metadata is written in key order so equal maps encode identically.
func (e *encoder) metadata(v map[string]string) {
	e.int(len(v))
	for _, k := range sortedKeys(v) {
		e.string(k)
		e.string(v[k])
	}
}

func (e *encoder) vector(v []float32) {
	e.int(len(v))
	for _, f := range v {
		e.n += varint.Uint32.Marshal(math.Float32bits(f), e.bs[e.n:])
	}
}

// decoder reads fields in order and keeps the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func (d *decoder) wrap(what string) error {
	if d.err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrCorruptRecord, what, d.err)
}

func (d *decoder) id() ID {
	if d.err != nil {
		return 0
	}
	v, n, err := IDMUS.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) int() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) time() time.Time {
	if d.err != nil {
		return time.Time{}
	}
	v, n, err := varint.Int64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return microsToTime(v)
}

func (d *decoder) float64() float64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return math.Float64frombits(v)
}

// length reads a collection length and rejects values the remaining input can't hold.
func (d *decoder) length() int {
	l := d.int()
	if d.err == nil && (l < 0 || l > len(d.bs)-d.n) {
		d.err = fmt.Errorf("length %d out of range", l)
		return 0
	}
	return l
}

func (d *decoder) strings() []string {
	l := d.length()
	if d.err != nil || l == 0 {
		return nil
	}
	out := make([]string, 0, l)
	for i := 0; i < l && d.err == nil; i++ {
		out = append(out, d.string())
	}
	return out
}

func (d *decoder) metadata() map[string]string {
	l := d.length()
	if d.err != nil || l == 0 {
		return nil
	}
	out := make(map[string]string, l)
	for i := 0; i < l && d.err == nil; i++ {
		k := d.string()
		out[k] = d.string()
	}
	return out
}

func (d *decoder) vector() []float32 {
	l := d.length()
	if d.err != nil || l == 0 {
		return nil
	}
	out := make([]float32, 0, l)
	for i := 0; i < l && d.err == nil; i++ {
		v, n, err := varint.Uint32.Unmarshal(d.bs[d.n:])
		d.n += n
		d.err = err
		out = append(out, math.Float32frombits(v))
	}
	return out
}

func sizeString(v string) int { return ord.String.Size(v) }
func sizeTime(v time.Time) int { return varint.Int64.Size(timeToMicros(v)) }
func sizeFloat64(v float64) int { return varint.Uint64.Size(math.Float64bits(v)) }

func sizeStrings(v []string) int {
	size := varint.Int.Size(len(v))
	for _, s := range v {
		size += sizeString(s)
	}
	return size
}

func sizeMetadata(v map[string]string) int {
	size := varint.Int.Size(len(v))
	for k, val := range v {
		size += sizeString(k) + sizeString(val)
	}
	return size
}

func sizeVector(v []float32) int {
	size := varint.Int.Size(len(v))
	for _, f := range v {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	return size
}

// Timestamps are stored as Unix microseconds; the zero time encodes as 0.
func timeToMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func microsToTime(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
