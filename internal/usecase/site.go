package usecase

import (
	"context"
	"errors"

	"pagesmith/internal/domain"
)

type SiteReader interface {
	GetFile(ctx context.Context, path, name string) (domain.File, error)
	GetManifest(ctx context.Context, path string) (domain.Manifest, error)
}

// SiteService reads back generated sites.
type SiteService struct {
	sites SiteReader
}

func NewSiteService(sites SiteReader) (*SiteService, error) {
	if sites == nil {
		return nil, errors.New("usecase: site store must not be nil")
	}
	return &SiteService{sites: sites}, nil
}

func (s *SiteService) File(ctx context.Context, path, name string) (domain.File, error) {
	f, err := s.sites.GetFile(ctx, path, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.File{}, newError(ErrorNotFound, "file_not_found", err)
		}
		return domain.File{}, newError(ErrorInternal, "site_read_error", err)
	}
	return f, nil
}

func (s *SiteService) Manifest(ctx context.Context, path string) (domain.Manifest, error) {
	m, err := s.sites.GetManifest(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Manifest{}, newError(ErrorNotFound, "site_not_found", err)
		}
		return domain.Manifest{}, newError(ErrorInternal, "site_read_error", err)
	}
	return m, nil
}
