package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/knowbot/core"
)

// Key prefixes for different data types. Every variable-length segment is
// followed by ':' so a prefix scan for one id never matches a longer id.
const (
	botPrefix         = "bot"
	sourcePrefix      = "src"
	botSourcePrefix   = "botsrc"
	chunkPrefix       = "chk"
	embeddingPrefix   = "emb"
	sourceChunkPrefix = "srcchk"
	chunkIDSeq        = "chkseq"
)

// makeBotKey generates a key for a bot by id.
func makeBotKey(id string) []byte {
	return []byte(botPrefix + ":" + id)
}

// makeSourceKey generates a key for a source by id.
func makeSourceKey(id string) []byte {
	return []byte(sourcePrefix + ":" + id)
}

// makeBotSourceKey generates a composite key for the per-bot source index.
// Format: prefix:botID:createdAt:sourceID, so a prefix scan yields creation order.
func makeBotSourceKey(botID string, createdAt time.Time, sourceID string) []byte {
	prefix := makeBotSourcePrefix(botID)
	buf := make([]byte, len(prefix)+8+len(sourceID))
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], sourceID)
	return buf
}

// makeBotSourcePrefix generates the scan prefix for a bot's sources.
func makeBotSourcePrefix(botID string) []byte {
	return []byte(botSourcePrefix + ":" + botID + ":")
}

// makeChunkKey generates a composite key for a chunk.
// Format: prefix:botID:chunkID
func makeChunkKey(botID string, id core.ID) []byte {
	return appendID(makeChunkPrefix(botID), id)
}

// makeChunkPrefix generates the scan prefix for a bot's chunks.
func makeChunkPrefix(botID string) []byte {
	return []byte(chunkPrefix + ":" + botID + ":")
}

// makeEmbeddingKey generates a composite key for a chunk's embedding.
// Format: prefix:botID:chunkID
func makeEmbeddingKey(botID string, id core.ID) []byte {
	return appendID([]byte(embeddingPrefix+":"+botID+":"), id)
}

// makeSourceChunkKey generates a composite key for the source→chunk index.
// Format: prefix:sourceID:chunkID
func makeSourceChunkKey(sourceID string, id core.ID) []byte {
	return appendID(makeSourceChunkPrefix(sourceID), id)
}

// makeSourceChunkPrefix generates the scan prefix for a source's chunks.
func makeSourceChunkPrefix(sourceID string) []byte {
	return []byte(sourceChunkPrefix + ":" + sourceID + ":")
}

// appendID appends id in BigEndian order so keys sort by id.
func appendID(prefix []byte, id core.ID) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// trailingID decodes the id written by appendID.
func trailingID(key []byte) core.ID {
	if len(key) < 8 {
		return 0
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}
