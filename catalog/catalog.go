package catalog

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/medimatch/core"
)

// Entry is one catalog medication with its precomputed vector norm.
type Entry struct {
	Name   string
	Vector []float32
	Norm   float64
}

// Catalog is an immutable snapshot of the medication catalog.
// Entries keep the order they were returned by the source.
type Catalog struct {
	entries   []Entry
	dimension int
	skipped   int
	loadedAt  time.Time

	fingerprintOnce sync.Once
	fingerprint     string
}

// New builds a Catalog from medications whose dimension is the one shared by
// the most valid records. On a tie the dimension that reached the count first wins.
func New(meds []core.Medication, loadedAt time.Time) *Catalog {
	return NewWithDimension(meds, loadedAt, core.MajorityDimension(meds))
}

// NewWithDimension builds a Catalog holding only records of the given
// dimension. Records with a blank name, an empty vector or another length are
// skipped. A dimension of 0 behaves like New. Vectors are copied.
func NewWithDimension(meds []core.Medication, loadedAt time.Time, dimension int) *Catalog {
	if dimension <= 0 {
		dimension = core.MajorityDimension(meds)
	}
	c := &Catalog{
		entries:  make([]Entry, 0, len(meds)),
		loadedAt: loadedAt,
	}
	for _, med := range meds {
		if core.ValidateMedication(&med) != nil || len(med.Vector) != dimension {
			c.skipped++
			continue
		}
		vector := make([]float32, len(med.Vector))
		copy(vector, med.Vector)
		c.entries = append(c.entries, Entry{
			Name:   med.Name,
			Vector: vector,
			Norm:   Norm(vector),
		})
	}
	if len(c.entries) > 0 {
		c.dimension = dimension
	}
	return c
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns the catalog entries in catalog order.
// The returned slice and its vectors must not be modified.
func (c *Catalog) Entries() []Entry {
	return c.entries
}

// Names returns the entry names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}

// Dimension returns the vector length shared by all entries, or 0 when empty.
func (c *Catalog) Dimension() int {
	return c.dimension
}

// Skipped returns how many source records were dropped while building the catalog.
func (c *Catalog) Skipped() int {
	return c.skipped
}

// LoadedAt returns when the snapshot was built.
func (c *Catalog) LoadedAt() time.Time {
	return c.loadedAt
}

// Fingerprint returns a hex blake2b-256 digest of the entries in order.
// Two catalogs with the same names and vectors in the same order share a fingerprint.
func (c *Catalog) Fingerprint() string {
	c.fingerprintOnce.Do(func() {
		h, _ := blake2b.New(32, nil)
		var buf [8]byte
		for _, e := range c.entries {
			binary.LittleEndian.PutUint64(buf[:], uint64(len(e.Name)))
			h.Write(buf[:])
			h.Write([]byte(e.Name))
			for _, v := range e.Vector {
				binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(v))
				h.Write(buf[:4])
			}
		}
		c.fingerprint = hex.EncodeToString(h.Sum(nil))
	})
	return c.fingerprint
}

// Norm returns the Euclidean norm of v, accumulated in float64.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		f := float64(x)
		sum += f * f
	}
	return math.Sqrt(sum)
}
