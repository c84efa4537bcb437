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

// Package search ranks medication names against a query by embedding similarity.
//
// Rank scores every catalog entry by cosine similarity to a query vector and
// returns the top k in descending order, breaking ties by catalog order.
//
// The Searcher type fuses three lookups for one query. The query is split on
// whitespace and its first one, two and three tokens each form a sub-query.
// The sub-queries are embedded and ranked concurrently against a single
// catalog snapshot, asking for k+2, k+1 and k names respectively. The three
// ranked lists are concatenated and deduplicated, keeping the first
// occurrence of each name.
package search
