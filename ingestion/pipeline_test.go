package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/medimatch/ai/mock"
	"github.com/poiesic/medimatch/core"
	"github.com/poiesic/medimatch/storage"
	"github.com/poiesic/medimatch/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 8

func setupTestRepositories(t *testing.T) (*badger.MedicationRepository, *badger.CatalogInfoRepository) {
	medRepo, infoRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		medRepo.Close()
		backend.Close()
	})
	return medRepo, infoRepo
}

func newTestPipeline(t *testing.T, embedder *mock.MockEmbedder, opts ...Option) (*Pipeline, *badger.MedicationRepository, *badger.CatalogInfoRepository) {
	t.Helper()
	medRepo, infoRepo := setupTestRepositories(t)
	if embedder == nil {
		embedder = mock.NewMockEmbedder()
		embedder.Dimension = testDimension
	}
	provider := mock.NewMockProviderWithEmbedder(embedder, "test-model")

	opts = append([]Option{WithRetryDelay(time.Millisecond)}, opts...)
	p, err := NewPipeline(medRepo, infoRepo, provider, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p, medRepo, infoRepo
}

func testNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("Medication %03d", i)
	}
	return names
}

func TestNewPipeline_Validation(t *testing.T) {
	medRepo, infoRepo := setupTestRepositories(t)
	provider := mock.NewMockProvider()

	_, err := NewPipeline(nil, infoRepo, provider)
	assert.Equal(t, ErrRepositoryRequired, err)

	_, err = NewPipeline(medRepo, nil, provider)
	assert.Equal(t, ErrCatalogInfoRepositoryRequired, err)

	_, err = NewPipeline(medRepo, infoRepo, nil)
	assert.Equal(t, ErrAIProviderRequired, err)

	_, err = NewPipeline(medRepo, infoRepo, provider, WithBatchSize(0))
	assert.Error(t, err)

	_, err = NewPipeline(medRepo, infoRepo, provider, WithMaxRetries(0))
	assert.Error(t, err)

	_, err = NewPipeline(medRepo, infoRepo, provider, WithRetryDelay(-time.Second))
	assert.Error(t, err)
}

func TestVectorize_PreservesOrder(t *testing.T) {
	for _, batchSize := range []int{1, 3, 64} {
		t.Run(fmt.Sprintf("batch %d", batchSize), func(t *testing.T) {
			p, _, _ := newTestPipeline(t, nil, WithBatchSize(batchSize), WithPoolSize(4))
			names := testNames(25)

			meds, err := p.Vectorize(context.Background(), names)
			require.NoError(t, err)
			require.Len(t, meds, len(names))
			for i, med := range meds {
				assert.Equal(t, names[i], med.Name)
				assert.Equal(t, mock.GenerateDeterministicVector(names[i], testDimension), med.Vector)
				assert.Equal(t, core.IDFromContent(names[i]), med.Id)
			}
		})
	}
}

func TestVectorize_Empty(t *testing.T) {
	p, _, _ := newTestPipeline(t, nil)

	meds, err := p.Vectorize(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, meds)
}

func TestVectorize_RejectsBlankNames(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	p, _, _ := newTestPipeline(t, embedder)

	_, err := p.Vectorize(context.Background(), []string{"Advil", "  "})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	assert.Zero(t, embedder.CallCount())
}

func TestVectorize_RetriesTransientFailures(t *testing.T) {
	var failures atomic.Int32
	embedder := mock.NewMockEmbedder().WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		if failures.Add(1) <= 2 {
			return nil, errors.New("service warming up")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.GenerateDeterministicVector(text, testDimension)
		}
		return out, nil
	})
	p, _, _ := newTestPipeline(t, embedder, WithPoolSize(1), WithBatchSize(10))

	meds, err := p.Vectorize(context.Background(), testNames(5))
	require.NoError(t, err)
	assert.Len(t, meds, 5)
	assert.Equal(t, int32(3), failures.Load())
}

func TestVectorize_PersistentFailure(t *testing.T) {
	embedErr := errors.New("service down")
	embedder := mock.NewMockEmbedder().WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, embedErr
	})
	p, _, _ := newTestPipeline(t, embedder, WithMaxRetries(2), WithBatchSize(2))

	meds, err := p.Vectorize(context.Background(), testNames(6))
	assert.Nil(t, meds)
	assert.ErrorIs(t, err, embedErr)
}

func TestVectorize_MismatchedResultCount(t *testing.T) {
	embedder := mock.NewMockEmbedder().WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	})
	p, _, _ := newTestPipeline(t, embedder, WithMaxRetries(1))

	_, err := p.Vectorize(context.Background(), testNames(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestVectorize_Cancelled(t *testing.T) {
	p, _, _ := newTestPipeline(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Vectorize(ctx, testNames(3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImport_StoresAndStamps(t *testing.T) {
	p, medRepo, infoRepo := newTestPipeline(t, nil, WithBatchSize(2))
	ctx := context.Background()

	meds := []core.Medication{
		{Name: "Advil", Vector: []float32{1, 0}},
		{Name: "", Vector: []float32{1, 0}},
		{Name: "Tylenol", Vector: []float32{0, 1}},
		{Name: "NoVector"},
		{Name: "Wrong", Vector: []float32{1, 2, 3}},
		{Name: "Aleve", Vector: []float32{1, 1}},
	}

	result, err := p.Import(ctx, meds, false)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Stored: 3, Skipped: 3}, result)

	stored, err := medRepo.LoadMedications(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, []string{"Advil", "Tylenol", "Aleve"}, []string{stored[0].Name, stored[1].Name, stored[2].Name})

	info, err := infoRepo.LoadCatalogInfo(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "test-model", info.Model)
	assert.Equal(t, 2, info.Dimension)
}

func TestImport_Replace(t *testing.T) {
	p, medRepo, _ := newTestPipeline(t, nil)
	ctx := context.Background()

	_, err := p.Import(ctx, []core.Medication{{Name: "Old", Vector: []float32{1, 0}}}, false)
	require.NoError(t, err)

	_, err = p.Import(ctx, []core.Medication{{Name: "New", Vector: []float32{0, 1}}}, true)
	require.NoError(t, err)

	stored, err := medRepo.LoadMedications(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "New", stored[0].Name)
}

func TestImport_AppendRejectsOtherModel(t *testing.T) {
	p, _, infoRepo := newTestPipeline(t, nil)
	ctx := context.Background()

	require.NoError(t, infoRepo.SaveCatalogInfo(ctx, &core.CatalogInfo{Model: "other-model", Dimension: 2}))

	_, err := p.Import(ctx, []core.Medication{{Name: "Advil", Vector: []float32{1, 0}}}, false)
	assert.ErrorIs(t, err, storage.ErrModelMismatch)

	// Replacing is always allowed.
	_, err = p.Import(ctx, []core.Medication{{Name: "Advil", Vector: []float32{1, 0}}}, true)
	assert.NoError(t, err)
}

func TestIngest(t *testing.T) {
	p, medRepo, infoRepo := newTestPipeline(t, nil, WithBatchSize(4))
	ctx := context.Background()

	result, err := p.Ingest(ctx, testNames(10), true)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Stored)

	count, err := medRepo.CountMedications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	info, err := infoRepo.LoadCatalogInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, testDimension, info.Dimension)
}

func TestImport_LeadingRecordDoesNotSetDimension(t *testing.T) {
	p, medRepo, infoRepo := newTestPipeline(t, nil)
	ctx := context.Background()

	result, err := p.Import(ctx, []core.Medication{
		{Name: "Corrupt", Vector: []float32{1, 2}},
		{Name: "Aspirin", Vector: []float32{1, 0, 0}},
		{Name: "Ibuprofen", Vector: []float32{0, 1, 0}},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Stored: 2, Skipped: 1}, result)

	stored, err := medRepo.LoadMedications(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, []string{"Aspirin", "Ibuprofen"}, []string{stored[0].Name, stored[1].Name})

	info, err := infoRepo.LoadCatalogInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, info.Dimension)
}

type countingInvalidator struct {
	calls atomic.Int32
}

func (c *countingInvalidator) Invalidate() {
	c.calls.Add(1)
}

func TestImport_InvalidatesOnChange(t *testing.T) {
	p, _, infoRepo := newTestPipeline(t, nil)
	invalidator := &countingInvalidator{}
	p.InvalidateOnComplete(invalidator)
	ctx := context.Background()

	_, err := p.Import(ctx, []core.Medication{{Name: "Advil", Vector: []float32{1, 0}}}, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), invalidator.calls.Load())

	// Nothing valid to store and no replace leaves the catalog alone.
	_, err = p.Import(ctx, []core.Medication{{Name: ""}}, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), invalidator.calls.Load())

	// A rejected append does not touch the store.
	require.NoError(t, infoRepo.SaveCatalogInfo(ctx, &core.CatalogInfo{Model: "other-model", Dimension: 2}))
	_, err = p.Import(ctx, []core.Medication{{Name: "Tylenol", Vector: []float32{0, 1}}}, false)
	require.ErrorIs(t, err, storage.ErrModelMismatch)
	assert.Equal(t, int32(1), invalidator.calls.Load())

	// Replacing clears the catalog even when nothing is stored afterwards.
	_, err = p.Import(ctx, nil, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), invalidator.calls.Load())
}

func TestIngest_Invalidates(t *testing.T) {
	p, _, _ := newTestPipeline(t, nil)
	invalidator := &countingInvalidator{}
	p.InvalidateOnComplete(invalidator)

	_, err := p.Ingest(context.Background(), testNames(3), true)
	require.NoError(t, err)
	assert.Equal(t, int32(1), invalidator.calls.Load())
}
