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

// Package catalog holds the in-memory medication catalog used for similarity search.
//
// A Catalog is an immutable snapshot of every valid (name, vector) pair in the
// backing store, with vector norms precomputed. Any number of goroutines may
// read a Catalog without locking.
//
// A Cache owns the current snapshot. The first Get loads it from a
// storage.MedicationSource; concurrent first-time callers share a single load.
// Invalidate drops the snapshot so the next Get reloads it.
package catalog
