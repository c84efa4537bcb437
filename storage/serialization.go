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
	"fmt"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/medimatch/core"
)

// MUS serializers for stored types. Field order is the wire order; append new
// fields at the end only.
var (
	IDMUS          mus.Serializer[core.ID]          = idMUS{}
	VectorMUS      mus.Serializer[[]float32]        = vectorMUS{}
	TimeMUS        mus.Serializer[time.Time]        = timeMUS{}
	MedicationMUS  mus.Serializer[core.Medication]  = medicationMUS{}
	CatalogInfoMUS mus.Serializer[core.CatalogInfo] = catalogInfoMUS{}
)

type idMUS struct{}

func (idMUS) Marshal(id core.ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (id core.ID, n int, err error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return core.ID(v), n, err
}

func (idMUS) Size(id core.ID) int {
	return varint.Uint64.Size(uint64(id))
}

func (idMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

// vectorMUS writes a varint length followed by fixed 4-byte floats.
type vectorMUS struct{}

const float32Size = 4

func (vectorMUS) Marshal(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (vectorMUS) Unmarshal(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length < 0 || length > (len(bs)-n)/float32Size {
		return nil, n, ErrTruncatedData
	}
	v = make([]float32, length)
	for i := range v {
		var read int
		v[i], read, err = raw.Float32.Unmarshal(bs[n:])
		n += read
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func (vectorMUS) Size(v []float32) int {
	return varint.Int.Size(len(v)) + len(v)*float32Size
}

func (vectorMUS) Skip(bs []byte) (n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return n, err
	}
	if length < 0 || length > (len(bs)-n)/float32Size {
		return n, ErrTruncatedData
	}
	return n + length*float32Size, nil
}

// timeMUS stores Unix microseconds; the zero time is stored as 0.
type timeMUS struct{}

func (timeMUS) Marshal(t time.Time, bs []byte) (n int) {
	return varint.Int64.Marshal(unixMicro(t), bs)
}

func (timeMUS) Unmarshal(bs []byte) (t time.Time, n int, err error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || micros == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func (timeMUS) Size(t time.Time) int {
	return varint.Int64.Size(unixMicro(t))
}

func (timeMUS) Skip(bs []byte) (n int, err error) {
	return varint.Int64.Skip(bs)
}

func unixMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

type medicationMUS struct{}

func (medicationMUS) Marshal(m core.Medication, bs []byte) (n int) {
	n = IDMUS.Marshal(m.Id, bs)
	n += ord.String.Marshal(m.Name, bs[n:])
	n += VectorMUS.Marshal(m.Vector, bs[n:])
	return n
}

func (medicationMUS) Unmarshal(bs []byte) (m core.Medication, n int, err error) {
	var read int
	m.Id, read, err = IDMUS.Unmarshal(bs)
	n += read
	if err != nil {
		return
	}
	m.Name, read, err = ord.String.Unmarshal(bs[n:])
	n += read
	if err != nil {
		return
	}
	m.Vector, read, err = VectorMUS.Unmarshal(bs[n:])
	n += read
	return
}

func (medicationMUS) Size(m core.Medication) int {
	return IDMUS.Size(m.Id) + ord.String.Size(m.Name) + VectorMUS.Size(m.Vector)
}

func (medicationMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = MedicationMUS.Unmarshal(bs)
	return
}

type catalogInfoMUS struct{}

func (catalogInfoMUS) Marshal(info core.CatalogInfo, bs []byte) (n int) {
	n = ord.String.Marshal(info.Model, bs)
	n += varint.Int.Marshal(info.Dimension, bs[n:])
	n += TimeMUS.Marshal(info.UpdatedAt, bs[n:])
	return n
}

func (catalogInfoMUS) Unmarshal(bs []byte) (info core.CatalogInfo, n int, err error) {
	var read int
	info.Model, read, err = ord.String.Unmarshal(bs)
	n += read
	if err != nil {
		return
	}
	info.Dimension, read, err = varint.Int.Unmarshal(bs[n:])
	n += read
	if err != nil {
		return
	}
	info.UpdatedAt, read, err = TimeMUS.Unmarshal(bs[n:])
	n += read
	return
}

func (catalogInfoMUS) Size(info core.CatalogInfo) int {
	return ord.String.Size(info.Model) + varint.Int.Size(info.Dimension) + TimeMUS.Size(info.UpdatedAt)
}

func (catalogInfoMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = CatalogInfoMUS.Unmarshal(bs)
	return
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, IDMUS.Size(id))
	IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := IDMUS.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: id: %w", ErrSerializationFailed, err)
	}
	return id, nil
}

// MarshalMedication serializes a Medication to bytes.
func MarshalMedication(med *core.Medication) []byte {
	buf := make([]byte, MedicationMUS.Size(*med))
	MedicationMUS.Marshal(*med, buf)
	return buf
}

// UnmarshalMedication deserializes a Medication from bytes.
func UnmarshalMedication(data []byte) (*core.Medication, error) {
	med, _, err := MedicationMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: medication: %w", ErrSerializationFailed, err)
	}
	return &med, nil
}

// MarshalCatalogInfo serializes a CatalogInfo to bytes.
func MarshalCatalogInfo(info *core.CatalogInfo) []byte {
	buf := make([]byte, CatalogInfoMUS.Size(*info))
	CatalogInfoMUS.Marshal(*info, buf)
	return buf
}

// UnmarshalCatalogInfo deserializes a CatalogInfo from bytes.
func UnmarshalCatalogInfo(data []byte) (*core.CatalogInfo, error) {
	info, _, err := CatalogInfoMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog info: %w", ErrSerializationFailed, err)
	}
	return &info, nil
}
