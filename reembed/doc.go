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

// Package reembed re-encodes every stored medication name with the
// configured embedding model.
//
// Vectors from different models are not comparable, so switching models
// means replacing every vector in the catalog. A Reembedder walks the stored
// medications in batches, embeds their names with retry and exponential
// backoff, writes the new vectors back and restamps the catalog with the new
// model. Progress is written to an io.Writer as it goes.
package reembed
