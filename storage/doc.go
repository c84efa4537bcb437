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

// Package storage provides the storage abstraction layer for medimatch.
//
// This package defines repository interfaces that decouple the medication
// document store from the search path. The catalog cache only depends on
// MedicationSource, a read interface returning every (name, vector) pair;
// ingestion and re-embedding use the wider MedicationRepository.
//
// # Backends
//
//   - storage/badger: embedded BadgerDB store, the default for the CLI
//   - storage/mongo: read-only source over a MongoDB "medications" collection
//
// # Constructor Return Type Pattern
//
// Backend packages return concrete types from their constructors so callers
// can reach backend-specific helpers (Backend.Close, in-memory test setup).
// Consumers should accept the interfaces declared here.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
