package intake

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Option is one entry in an edit picker.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Item is a full content record returned for edit pre-fill. Data is one of
// the *Data payload structs.
type Item struct {
	ID   string `json:"id"`
	Data any    `json:"data"`
}

// Reader answers list and fetch queries against the content tree on disk.
type Reader struct {
	RepoRoot string
}

// ListOptions returns the editable items of a content type, labeled for a
// picker. Singleton types return a single fixed option.
func (r *Reader) ListOptions(contentType ContentType) ([]Option, error) {
	switch contentType {
	case TypeBlog:
		return r.listDir(blogContentDir)
	case TypePublication:
		return r.listDir(publicationsContentDir)
	case TypeAbout:
		return []Option{{ID: "about", Label: "About narrative"}}, nil
	case TypeProjects:
		return []Option{{ID: "projects", Label: "Projects cards"}}, nil
	}
	return nil, validationErrf("unknown content type %q", contentType)
}

func (r *Reader) listDir(dir string) ([]Option, error) {
	entries, err := os.ReadDir(filepath.Join(r.RepoRoot, dir))
	if os.IsNotExist(err) {
		return []Option{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read content directory %s: %w", dir, err)
	}

	options := make([]Option, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mdx") {
			continue
		}
		source, err := os.ReadFile(filepath.Join(r.RepoRoot, dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read content file %s: %w", entry.Name(), err)
		}
		fm, _ := splitFrontmatter(source)
		var head struct {
			Title string `yaml:"title"`
			Slug  string `yaml:"slug"`
		}
		if fm != nil {
			if err := yaml.Unmarshal(fm, &head); err != nil {
				return nil, fmt.Errorf("parse frontmatter of %s: %w", entry.Name(), err)
			}
		}
		id := head.Slug
		if id == "" {
			id = strings.TrimSuffix(entry.Name(), ".mdx")
		}
		title := head.Title
		if title == "" {
			title = id
		}
		options = append(options, Option{ID: id, Label: fmt.Sprintf("%s (%s)", title, id)})
	}
	sort.Slice(options, func(i, j int) bool { return options[i].ID < options[j].ID })
	return options, nil
}

// GetItem loads one content item for editing.
func (r *Reader) GetItem(contentType ContentType, id string) (*Item, error) {
	switch contentType {
	case TypeBlog:
		return r.getBlog(id)
	case TypePublication:
		return r.getPublication(id)
	case TypeAbout:
		if id != "about" {
			return nil, notFoundErrf("no about item with id %q", id)
		}
		return r.getAbout()
	case TypeProjects:
		if id != "projects" {
			return nil, notFoundErrf("no projects item with id %q", id)
		}
		return r.getProjects()
	}
	return nil, validationErrf("unknown content type %q", contentType)
}

func (r *Reader) getBlog(id string) (*Item, error) {
	relPath, err := findMDXBySlug(r.RepoRoot, blogContentDir, id)
	if err != nil {
		return nil, err
	}
	if relPath == "" {
		return nil, notFoundErrf("no blog post found with slug %q", id)
	}
	source, err := os.ReadFile(filepath.Join(r.RepoRoot, relPath))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}
	fm, body := splitFrontmatter(source)
	var head blogFrontmatter
	if fm != nil {
		if err := yaml.Unmarshal(fm, &head); err != nil {
			return nil, fmt.Errorf("parse frontmatter of %s: %w", relPath, err)
		}
	}
	slug := head.Slug
	if slug == "" {
		slug = id
	}
	return &Item{ID: slug, Data: &BlogData{
		Title:   head.Title,
		Slug:    slug,
		Date:    head.Date,
		Summary: head.Summary,
		Tags:    head.Tags,
		Draft:   head.Draft,
		Body:    strings.TrimSpace(string(body)),
	}}, nil
}

func (r *Reader) getPublication(id string) (*Item, error) {
	relPath, err := findMDXBySlug(r.RepoRoot, publicationsContentDir, id)
	if err != nil {
		return nil, err
	}
	if relPath == "" {
		return nil, notFoundErrf("no publication found with slug %q", id)
	}
	source, err := os.ReadFile(filepath.Join(r.RepoRoot, relPath))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}
	fm, body := splitFrontmatter(source)
	var head publicationFrontmatter
	if fm != nil {
		if err := yaml.Unmarshal(fm, &head); err != nil {
			return nil, fmt.Errorf("parse frontmatter of %s: %w", relPath, err)
		}
	}
	slug := head.Slug
	if slug == "" {
		slug = id
	}
	return &Item{ID: slug, Data: &PublicationData{
		Title:   head.Title,
		Slug:    slug,
		Authors: head.Authors,
		Venue:   head.Venue,
		Year:    head.Year,
		Type:    head.Type,
		Links: PublicationLinks{
			DOI:   head.Links.DOI,
			Arxiv: head.Links.Arxiv,
			PDF:   head.Links.PDF,
			Docx:  head.Links.Docx,
			Code:  head.Links.Code,
		},
		Highlight: head.Highlight,
		Draft:     head.Draft,
		Body:      strings.TrimSpace(string(body)),
	}}, nil
}

func (r *Reader) getAbout() (*Item, error) {
	source, err := os.ReadFile(filepath.Join(r.RepoRoot, aboutRelPath()))
	if os.IsNotExist(err) {
		return &Item{ID: "about", Data: &AboutData{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read about page: %w", err)
	}
	_, body := splitFrontmatter(source)
	return &Item{ID: "about", Data: &AboutData{Body: strings.TrimSpace(string(body))}}, nil
}

func (r *Reader) getProjects() (*Item, error) {
	source, err := os.ReadFile(filepath.Join(r.RepoRoot, projectsRelPath()))
	if os.IsNotExist(err) {
		return &Item{ID: "projects", Data: &ProjectsData{Cards: []ProjectCard{}}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read projects page: %w", err)
	}
	fm, _ := splitFrontmatter(source)
	var head projectsFrontmatter
	if fm != nil {
		if err := yaml.Unmarshal(fm, &head); err != nil {
			return nil, fmt.Errorf("parse projects frontmatter: %w", err)
		}
	}
	cards := make([]ProjectCard, 0, len(head.Cards))
	for _, c := range head.Cards {
		cards = append(cards, ProjectCard{Title: c.Title, Description: c.Description})
	}
	return &Item{ID: "projects", Data: &ProjectsData{Cards: cards}}, nil
}
