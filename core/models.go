package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored medications.
// It is generated from database sequences or content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Medication pairs a medication name with its precomputed embedding vector.
// Names are not guaranteed to be unique; duplicates are kept as separate records.
// A Medication is never mutated once it has been handed to a catalog.
type Medication struct {
	Id     ID
	Name   string
	Vector []float32 // Embedding of Name, dimension fixed by the embedding model
}

// Match is a single ranked medication with its cosine similarity to a query.
type Match struct {
	Name  string
	Score float64
}

// Names returns the names of the matches in order.
func Names(matches []Match) []string {
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.Name
	}
	return names
}

// CatalogInfo describes the embedding model that produced the stored vectors.
// Vectors from different models are not comparable, so the store is stamped
// whenever vectors are written in bulk.
type CatalogInfo struct {
	Model     string
	Dimension int
	UpdatedAt time.Time
}
