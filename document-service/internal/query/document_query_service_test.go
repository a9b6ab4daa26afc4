package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

type fakeReader struct {
	lastList   cqrs.ListDocumentsQuery
	statsCalls int
	contentFor string
}

func (f *fakeReader) Get(_ context.Context, orgID, id string) (*models.Document, error) {
	if orgID != "org-001" || id != "doc-1" {
		return nil, apperr.NotFound("document")
	}
	return &models.Document{ID: id, OrganizationID: orgID, Name: "lease.pdf", LatestVersion: 2}, nil
}
func (f *fakeReader) List(_ context.Context, q cqrs.ListDocumentsQuery) ([]models.Document, int, error) {
	f.lastList = q
	return []models.Document{}, 0, nil
}
func (f *fakeReader) Versions(_ context.Context, documentID string) ([]models.DocumentVersion, error) {
	return []models.DocumentVersion{{Version: 2}, {Version: 1}}, nil
}
func (f *fakeReader) Latest(_ context.Context, documentID string) (*models.DocumentVersion, error) {
	return &models.DocumentVersion{Version: 2, IsLatest: true}, nil
}
func (f *fakeReader) Content(_ context.Context, documentID string, version int) (*models.DocumentVersion, []byte, error) {
	f.contentFor = documentID
	return &models.DocumentVersion{Version: version}, []byte("bytes"), nil
}
func (f *fakeReader) Annotations(_ context.Context, documentID string) ([]models.DocumentAnnotation, error) {
	return []models.DocumentAnnotation{{ID: "ann-1"}}, nil
}
func (f *fakeReader) Stats(_ context.Context, orgID string) (*models.DocumentStats, error) {
	f.statsCalls++
	return &models.DocumentStats{TotalDocuments: 4}, nil
}

type mapCache struct {
	entries map[string]*models.DocumentStats
}

func (m *mapCache) GetOrLoad(ctx context.Context, key string, load func(context.Context) (*models.DocumentStats, error)) (*models.DocumentStats, error) {
	if v, ok := m.entries[key]; ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	m.entries[key] = v
	return v, nil
}

func TestListDocumentsClampsPaging(t *testing.T) {
	reader := &fakeReader{}
	svc := NewDocumentQueryService(reader, &mapCache{entries: map[string]*models.DocumentStats{}})

	_, err := svc.ListDocuments(context.Background(), cqrs.ListDocumentsQuery{OrganizationID: "org-001", Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, reader.lastList.Page)
	assert.Equal(t, MaxPageLimit, reader.lastList.Limit)

	_, err = svc.ListDocuments(context.Background(), cqrs.ListDocumentsQuery{OrganizationID: "org-001", Page: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, reader.lastList.Page)
	assert.Equal(t, DefaultPageLimit, reader.lastList.Limit)
}

func TestReadsCheckTenancyFirst(t *testing.T) {
	reader := &fakeReader{}
	svc := NewDocumentQueryService(reader, &mapCache{entries: map[string]*models.DocumentStats{}})
	ctx := context.Background()

	_, err := svc.Content(ctx, "org-002", "doc-1", 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, reader.contentFor, "bytes of another tenant's document are never read")
	_, err = svc.Versions(ctx, "org-002", "doc-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.Annotations(ctx, "org-002", "doc-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	content, err := svc.Content(ctx, "org-001", "doc-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "lease.pdf", content.Name)
	assert.Equal(t, 1, content.Version.Version)

	detail, err := svc.GetDocument(ctx, "org-001", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, detail.Latest.Version)
	assert.Len(t, detail.Annotations, 1)
}

func TestStatsAreCachedPerOrganization(t *testing.T) {
	reader := &fakeReader{}
	cache := &mapCache{entries: map[string]*models.DocumentStats{}}
	svc := NewDocumentQueryService(reader, cache)

	for i := 0; i < 3; i++ {
		stats, err := svc.Stats(context.Background(), "org-001")
		require.NoError(t, err)
		assert.Equal(t, 4, stats.TotalDocuments)
	}
	assert.Equal(t, 1, reader.statsCalls)
	assert.Contains(t, cache.entries, "documents:stats:org-001")
}
