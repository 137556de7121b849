package intake

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Content lives in the site repository as .mdx files with a frontmatter
// block; publication binaries live under public/ at slug-derived names.
var (
	blogContentDir         = filepath.Join("content", "blog")
	publicationsContentDir = filepath.Join("content", "publications")
	staticContentDir       = filepath.Join("content", "static")
	publicationsAssetDir   = filepath.Join("public", "publications")
)

func blogRelPath(slug string) string {
	return filepath.Join(blogContentDir, slug+".mdx")
}

func publicationRelPath(slug string) string {
	return filepath.Join(publicationsContentDir, slug+".mdx")
}

func aboutRelPath() string {
	return filepath.Join(staticContentDir, "about.mdx")
}

func projectsRelPath() string {
	return filepath.Join(staticContentDir, "projects.mdx")
}

func publicationPDFRelPath(slug string) string {
	return filepath.Join(publicationsAssetDir, slug+".pdf")
}

func publicationDocxRelPath(slug string) string {
	return filepath.Join(publicationsAssetDir, slug+".docx")
}

// findMDXBySlug scans a content directory for the file whose frontmatter slug
// or filename matches. Returns "" when nothing matches. A directory scan is
// fine at this content volume; no index is kept.
func findMDXBySlug(repoRoot, dir, slug string) (string, error) {
	entries, err := os.ReadDir(filepath.Join(repoRoot, dir))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read content directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mdx") {
			continue
		}
		relPath := filepath.Join(dir, entry.Name())
		source, err := os.ReadFile(filepath.Join(repoRoot, relPath))
		if err != nil {
			return "", fmt.Errorf("read content file %s: %w", relPath, err)
		}
		fileSlug := strings.TrimSuffix(entry.Name(), ".mdx")
		if frontmatterSlug(source) == slug || fileSlug == slug {
			return relPath, nil
		}
	}
	return "", nil
}

func pathExists(repoRoot, relPath string) (bool, error) {
	_, err := os.Stat(filepath.Join(repoRoot, relPath))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", relPath, err)
	}
	return true, nil
}
