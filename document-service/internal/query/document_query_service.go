package query

import (
	"context"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

type documentReader interface {
	Get(ctx context.Context, orgID, id string) (*models.Document, error)
	List(ctx context.Context, q cqrs.ListDocumentsQuery) ([]models.Document, int, error)
	Versions(ctx context.Context, documentID string) ([]models.DocumentVersion, error)
	Latest(ctx context.Context, documentID string) (*models.DocumentVersion, error)
	Content(ctx context.Context, documentID string, version int) (*models.DocumentVersion, []byte, error)
	Annotations(ctx context.Context, documentID string) ([]models.DocumentAnnotation, error)
	Stats(ctx context.Context, orgID string) (*models.DocumentStats, error)
}

type statsCache interface {
	GetOrLoad(ctx context.Context, key string, load func(context.Context) (*models.DocumentStats, error)) (*models.DocumentStats, error)
}

type DocumentQueryService struct {
	repo  documentReader
	stats statsCache
}

func NewDocumentQueryService(repo documentReader, stats statsCache) *DocumentQueryService {
	return &DocumentQueryService{repo: repo, stats: stats}
}

// DocumentPage is one page of a filtered document list.
type DocumentPage struct {
	Documents  []models.Document `json:"documents"`
	Pagination models.Pagination `json:"pagination"`
}

func (s *DocumentQueryService) ListDocuments(ctx context.Context, q cqrs.ListDocumentsQuery) (*DocumentPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	docs, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &DocumentPage{Documents: docs, Pagination: models.NewPagination(q.Page, q.Limit, total)}, nil
}

func (s *DocumentQueryService) GetDocument(ctx context.Context, orgID, id string) (*models.DocumentDetail, error) {
	doc, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.Latest(ctx, id)
	if err != nil {
		return nil, err
	}
	annotations, err := s.repo.Annotations(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.DocumentDetail{Document: *doc, Latest: latest, Annotations: annotations}, nil
}

func (s *DocumentQueryService) Versions(ctx context.Context, orgID, id string) ([]models.DocumentVersion, error) {
	if _, err := s.repo.Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	return s.repo.Versions(ctx, id)
}

// Content loads a version's bytes; version 0 is the latest.
func (s *DocumentQueryService) Content(ctx context.Context, orgID, id string, version int) (*models.DocumentContent, error) {
	doc, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	v, data, err := s.repo.Content(ctx, id, version)
	if err != nil {
		return nil, err
	}
	return &models.DocumentContent{Name: doc.Name, Version: *v, Data: data}, nil
}

func (s *DocumentQueryService) Annotations(ctx context.Context, orgID, id string) ([]models.DocumentAnnotation, error) {
	if _, err := s.repo.Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	return s.repo.Annotations(ctx, id)
}

func (s *DocumentQueryService) Stats(ctx context.Context, orgID string) (*models.DocumentStats, error) {
	return s.stats.GetOrLoad(ctx, "documents:stats:"+orgID, func(ctx context.Context) (*models.DocumentStats, error) {
		return s.repo.Stats(ctx, orgID)
	})
}
