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

package medimatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/medimatch/ai"
	"github.com/poiesic/medimatch/ai/openai"
	"github.com/poiesic/medimatch/catalog"
	"github.com/poiesic/medimatch/ingestion"
	"github.com/poiesic/medimatch/reembed"
	"github.com/poiesic/medimatch/search"
	"github.com/poiesic/medimatch/storage"
	"github.com/poiesic/medimatch/storage/badger"
)

// Engine wires the medication store, the embedding provider and the shared
// catalog cache together.
type Engine struct {
	backend  *badger.Backend
	medRepo  *badger.MedicationRepository
	infoRepo *badger.CatalogInfoRepository
	provider ai.AIProvider
	cache    *catalog.Cache
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	source   storage.MedicationSource
	inMemory bool
	logger   *slog.Logger
}

// WithAIConfig sets the configuration used to build the OpenAI-compatible provider.
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithProvider uses provider instead of building one from the AI config.
// The engine closes it on Close. The AI config's dimension is then not applied
// to the catalog.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithCatalogSource reads the search catalog from source instead of the
// embedded store, e.g. a MongoDB collection.
func WithCatalogSource(source storage.MedicationSource) EngineOption {
	return func(o *engineOptions) {
		o.source = source
	}
}

// WithInMemory keeps the store in memory. The path is ignored.
func WithInMemory() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// Stats describes the stored catalog.
type Stats struct {
	Count       int
	Skipped     int
	Dimension   int
	Model       string
	Fingerprint string
	UpdatedAt   time.Time
}

func NewEngine(filePath string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger.With("component", "engine")

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	medRepo, err := badger.NewMedicationRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	infoRepo := badger.NewCatalogInfoRepository(backend)

	// Catalog records must match the query embedding length. A caller-supplied
	// provider has no known length, so the catalog keeps its majority length.
	dimension := 0
	provider := options.provider
	if provider == nil {
		dimension = options.aiConfig.Dimension
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			medRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	var source storage.MedicationSource = medRepo
	if options.source != nil {
		source = options.source
	}
	cache, err := catalog.NewCache(source, catalog.WithLogger(options.logger), catalog.WithDimension(dimension))
	if err != nil {
		provider.Close()
		medRepo.Close()
		backend.Close()
		return nil, err
	}

	return &Engine{
		backend:  backend,
		medRepo:  medRepo,
		infoRepo: infoRepo,
		provider: provider,
		cache:    cache,
		logger:   logger,
	}, nil
}

func (e *Engine) Close() error {
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}

	if err := e.medRepo.Close(); err != nil {
		e.logger.Error("error closing medication repository", "err", err)
		return err
	}

	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (e *Engine) Repository() storage.MedicationRepository {
	return e.medRepo
}

func (e *Engine) CatalogInfo() storage.CatalogInfoRepository {
	return e.infoRepo
}

func (e *Engine) CatalogCache() *catalog.Cache {
	return e.cache
}

// NewSearcher returns a searcher over the shared catalog cache. It fails with
// storage.ErrModelMismatch when the stored catalog was stamped by a different
// embedding model than the provider's. Unstamped catalogs are accepted.
func (e *Engine) NewSearcher(ctx context.Context, opts ...search.Option) (*search.Searcher, error) {
	info, err := e.infoRepo.LoadCatalogInfo(ctx)
	if err != nil {
		return nil, err
	}
	if info != nil && info.Model != "" && info.Model != e.provider.Model() {
		return nil, fmt.Errorf("%w: catalog embedded with %q, provider uses %q",
			storage.ErrModelMismatch, info.Model, e.provider.Model())
	}
	return search.NewSearcher(e.cache, e.provider.Embedder(), opts...)
}

// NewIngestionPipeline returns a pipeline that invalidates the catalog cache
// whenever an import changes the store.
func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	p, err := ingestion.NewPipeline(e.medRepo, e.infoRepo, e.provider, opts...)
	if err != nil {
		return nil, err
	}
	return p.InvalidateOnComplete(e.cache), nil
}

// NewReembedder returns a reembedder that invalidates the catalog cache when it completes.
func (e *Engine) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	r, err := reembed.NewReembedder(e.medRepo, e.infoRepo, e.provider, config, progress)
	if err != nil {
		return nil, err
	}
	return r.InvalidateOnComplete(e.cache), nil
}

// Stats loads a fresh catalog snapshot and reports its size, dimension and
// fingerprint along with the stored model stamp.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	cat, err := e.cache.Load(ctx)
	if err != nil {
		return nil, err
	}
	info, err := e.infoRepo.LoadCatalogInfo(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Count:       cat.Len(),
		Skipped:     cat.Skipped(),
		Dimension:   cat.Dimension(),
		Fingerprint: cat.Fingerprint(),
	}
	if info != nil {
		stats.Model = info.Model
		stats.UpdatedAt = info.UpdatedAt
	}
	return stats, nil
}
