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

package openai

import (
	"log/slog"

	"github.com/poiesic/medimatch/ai"
)

// Provider serves embeddings from one OpenAI-compatible endpoint and model.
type Provider struct {
	config   *ai.Config
	embedder *Embedder
	logger   *slog.Logger
}

// NewProvider validates config (normalizing the host to end in /v1) and
// builds the embedder. No request is sent until the first embedding.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-provider")
	logger.Debug("embedding provider ready",
		"host", config.EmbeddingHost,
		"model", config.EmbeddingModel,
		"dimension", config.Dimension)

	return &Provider{
		config:   config,
		embedder: embedder,
		logger:   logger,
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Model is the identifier stored vectors are stamped with.
func (p *Provider) Model() string {
	return p.config.EmbeddingModel
}

// Close is a no-op; langchaingo's HTTP client holds no resources of its own.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
