package badger

import (
	"encoding/binary"
	"strings"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

// Key prefixes for different data types
const (
	entityPrefix       = "ent:"
	entityAliasPrefix  = "ali:"
	entityTypePrefix   = "ety:"
	relationshipPrefix = "rel:"
	adjacencyPrefix    = "adj:"
	chunkPrefix        = "vec:"
	chunkDocPrefix     = "vdoc:"
	dimensionKey       = "vdim"
	documentPrefix     = "doc:"
	outcomePrefix      = "out:"
	docEntityPrefix    = "gde:"
	docRelationPrefix  = "gdr:"
)

// keySep terminates variable-length key segments so "acme" never prefixes "acme corp".
const keySep = 0x00

// appendID appends an ID in BigEndian order so lexicographic sort matches numeric order.
func appendID(buf []byte, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// idFromKeySuffix reads the trailing 8-byte ID of a composite key.
func idFromKeySuffix(key []byte) core.ID {
	if len(key) < 8 {
		return 0
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// makeEntityKey generates a key for an entity by ID.
func makeEntityKey(id core.ID) []byte {
	return appendID([]byte(entityPrefix), id)
}

// normalizeAlias lowercases and trims an alias for the case-insensitive index.
func normalizeAlias(alias string) string {
	return strings.ToLower(strings.TrimSpace(alias))
}

// makePartialAliasKey generates the prefix shared by all entities with an alias.
// Format: prefix:alias\x00
func makePartialAliasKey(alias string) []byte {
	buf := append([]byte(entityAliasPrefix), normalizeAlias(alias)...)
	return append(buf, keySep)
}

// makeAliasKey generates a composite key for the alias index.
// Format: prefix:alias\x00id
func makeAliasKey(alias string, id core.ID) []byte {
	return appendID(makePartialAliasKey(alias), id)
}

// makePartialTypeKey generates the prefix shared by all entities of a type.
// Format: prefix:type\x00
func makePartialTypeKey(entityType core.EntityType) []byte {
	buf := append([]byte(entityTypePrefix), string(entityType)...)
	return append(buf, keySep)
}

// makeTypeKey generates a composite key for the entity type index.
func makeTypeKey(entityType core.EntityType, id core.ID) []byte {
	return appendID(makePartialTypeKey(entityType), id)
}

// makeRelationshipKey generates a key for a relationship by ID.
func makeRelationshipKey(id core.ID) []byte {
	return appendID([]byte(relationshipPrefix), id)
}

// makePartialAdjacencyKey generates the prefix of all relationships touching an entity.
// Format: prefix:entityID
func makePartialAdjacencyKey(entityID core.ID) []byte {
	return appendID([]byte(adjacencyPrefix), entityID)
}

// makeAdjacencyKey generates a composite key for the adjacency index.
// Format: prefix:entityID:relationshipID
func makeAdjacencyKey(entityID, relID core.ID) []byte {
	return appendID(makePartialAdjacencyKey(entityID), relID)
}

// makeChunkKey generates a key for a stored chunk by ID.
func makeChunkKey(id core.ID) []byte {
	return appendID([]byte(chunkPrefix), id)
}

// makePartialChunkDocKey generates the prefix of all chunks of a document.
// Format: prefix:documentID\x00
func makePartialChunkDocKey(documentID string) []byte {
	buf := append([]byte(chunkDocPrefix), documentID...)
	return append(buf, keySep)
}

// makeChunkDocKey generates a composite key for the document index.
func makeChunkDocKey(documentID string, chunkID core.ID) []byte {
	return appendID(makePartialChunkDocKey(documentID), chunkID)
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id string) []byte {
	return append([]byte(documentPrefix), id...)
}

// makeOutcomeKey generates a key for the latest ingest outcome of a document.
func makeOutcomeKey(documentID string) []byte {
	return append([]byte(outcomePrefix), documentID...)
}

// makePartialDocEntityKey generates the prefix of all entities mentioned in a document.
// Format: prefix:documentID\x00
func makePartialDocEntityKey(documentID string) []byte {
	buf := append([]byte(docEntityPrefix), documentID...)
	return append(buf, keySep)
}

func makeDocEntityKey(documentID string, entityID core.ID) []byte {
	return appendID(makePartialDocEntityKey(documentID), entityID)
}

// makePartialDocRelationKey generates the prefix of all relationships a document supports.
// Format: prefix:documentID\x00
func makePartialDocRelationKey(documentID string) []byte {
	buf := append([]byte(docRelationPrefix), documentID...)
	return append(buf, keySep)
}

func makeDocRelationKey(documentID string, relID core.ID) []byte {
	return appendID(makePartialDocRelationKey(documentID), relID)
}
