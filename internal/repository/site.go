package repository

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"pagesmith/internal/domain"
)

// ErrNotFound is returned when a site or file does not exist.
var ErrNotFound = domain.ErrNotFound

// manifestName is reserved by FileStore for the site manifest.
const manifestName = ".manifest.json"

// validPath accepts a single path segment such as a UUID.
func validPath(p string) bool {
	if p == "" || p == "." || p == ".." {
		return false
	}
	return !strings.ContainsAny(p, `/\`)
}

// validName accepts relative slash-separated names that stay inside the site.
func validName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return false
	}
	if path.Clean(name) != name {
		return false
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." || seg == "." {
			return false
		}
	}
	return name != manifestName
}

func validateSite(site domain.Site) error {
	if !validPath(site.Path) {
		return fmt.Errorf("invalid site path %q", site.Path)
	}
	if len(site.Files) == 0 {
		return errors.New("site has no files")
	}
	for _, f := range site.Files {
		if !validName(f.Name) {
			return fmt.Errorf("invalid file name %q", f.Name)
		}
	}
	return nil
}
