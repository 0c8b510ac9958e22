package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"pagesmith/internal/domain"
)

// FileStore keeps sites on a filesystem as <root>/<path>/<name>, with the
// manifest next to the files.
type FileStore struct {
	fs   afero.Fs
	root string
}

func NewFileStore(fsys afero.Fs, root string) (*FileStore, error) {
	if fsys == nil {
		return nil, errors.New("repository: filesystem must not be nil")
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("repository: root directory must not be empty")
	}
	return &FileStore{fs: fsys, root: root}, nil
}

func (s *FileStore) SaveSite(_ context.Context, site domain.Site) error {
	if err := validateSite(site); err != nil {
		return fmt.Errorf("repository: SaveSite: %w", err)
	}
	if site.CreatedAt.IsZero() {
		site.CreatedAt = time.Now().UTC()
	}

	dir := filepath.Join(s.root, site.Path)
	exists, err := afero.DirExists(s.fs, dir)
	if err != nil {
		return fmt.Errorf("repository: SaveSite: %w", err)
	}
	if exists {
		return fmt.Errorf("repository: SaveSite: site %q already exists", site.Path)
	}

	names := make([]string, 0, len(site.Files))
	for _, f := range site.Files {
		full := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := s.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("repository: SaveSite: create dir for %q: %w", f.Name, err)
		}
		if err := afero.WriteFile(s.fs, full, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("repository: SaveSite: write %q: %w", f.Name, err)
		}
		names = append(names, f.Name)
	}
	sort.Strings(names)

	manifest, err := json.MarshalIndent(domain.Manifest{
		Path:         site.Path,
		Files:        names,
		Model:        site.Model,
		Turns:        site.Turns,
		PromptTokens: site.PromptTokens,
		CreatedAt:    site.CreatedAt.UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("repository: SaveSite: marshal manifest: %w", err)
	}
	if err := afero.WriteFile(s.fs, filepath.Join(dir, manifestName), manifest, 0o644); err != nil {
		return fmt.Errorf("repository: SaveSite: write manifest: %w", err)
	}
	return nil
}

func (s *FileStore) GetFile(_ context.Context, path, name string) (domain.File, error) {
	if !validPath(path) || !validName(name) {
		return domain.File{}, ErrNotFound
	}
	buf, err := afero.ReadFile(s.fs, filepath.Join(s.root, path, filepath.FromSlash(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.File{}, ErrNotFound
		}
		return domain.File{}, fmt.Errorf("repository: GetFile: %w", err)
	}
	return domain.File{Name: name, Content: string(buf)}, nil
}

func (s *FileStore) GetManifest(_ context.Context, path string) (domain.Manifest, error) {
	if !validPath(path) {
		return domain.Manifest{}, ErrNotFound
	}
	buf, err := afero.ReadFile(s.fs, filepath.Join(s.root, path, manifestName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Manifest{}, ErrNotFound
		}
		return domain.Manifest{}, fmt.Errorf("repository: GetManifest: %w", err)
	}
	var m domain.Manifest
	if err := json.Unmarshal(buf, &m); err != nil {
		return domain.Manifest{}, fmt.Errorf("repository: GetManifest decode: %w", err)
	}
	return m, nil
}
