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

import "errors"

// Error taxonomy shared by the search path.
var (
	// ErrInvalidArgument indicates a caller error such as an empty query or non-positive k.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUpstreamUnavailable indicates the document store or the embedding
	// provider failed while loading the catalog or embedding a query.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrEmptyQuery indicates the query is empty or whitespace only.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidK indicates a non-positive result count.
	ErrInvalidK = errors.New("k must be a positive integer")

	// ErrDimensionMismatch indicates two vectors that should be comparable have different lengths.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Domain validation errors
var (
	// ErrInvalidMedication indicates a Medication failed validation.
	ErrInvalidMedication = errors.New("invalid medication")

	// ErrEmptyName indicates the medication Name field is empty.
	ErrEmptyName = errors.New("medication name cannot be empty")

	// ErrEmptyVector indicates the medication Vector field is empty.
	ErrEmptyVector = errors.New("medication vector cannot be empty")
)
