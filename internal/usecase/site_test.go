package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"pagesmith/internal/domain"
)

type mockReader struct {
	file     domain.File
	manifest domain.Manifest
	err      error
}

func (m *mockReader) GetFile(_ context.Context, _, _ string) (domain.File, error) {
	return m.file, m.err
}

func (m *mockReader) GetManifest(_ context.Context, _ string) (domain.Manifest, error) {
	return m.manifest, m.err
}

func TestNewSiteService_NilReader(t *testing.T) {
	_, err := NewSiteService(nil)
	require.Error(t, err)
}

func TestSiteService_File(t *testing.T) {
	svc, err := NewSiteService(&mockReader{file: domain.File{Name: "index.html", Content: "<p>x</p>"}})
	require.NoError(t, err)
	f, err := svc.File(context.Background(), "abc", "index.html")
	require.NoError(t, err)
	require.Equal(t, "<p>x</p>", f.Content)
}

func TestSiteService_NotFound(t *testing.T) {
	svc, err := NewSiteService(&mockReader{err: domain.ErrNotFound})
	require.NoError(t, err)

	_, err = svc.File(context.Background(), "abc", "index.html")
	expectError(t, err, ErrorNotFound, "file_not_found")

	_, err = svc.Manifest(context.Background(), "abc")
	expectError(t, err, ErrorNotFound, "site_not_found")
}

func TestSiteService_ReadError(t *testing.T) {
	svc, err := NewSiteService(&mockReader{err: errors.New("dynamodb down")})
	require.NoError(t, err)

	_, err = svc.File(context.Background(), "abc", "index.html")
	expectError(t, err, ErrorInternal, "site_read_error")

	_, err = svc.Manifest(context.Background(), "abc")
	expectError(t, err, ErrorInternal, "site_read_error")
}
