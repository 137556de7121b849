// Package intake turns locally-authored content submissions into pull
// requests against the site repository: validation, serialization, a
// disposable git worktree, and the GitHub API, orchestrated end to end.
package intake

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"
)

type ContentType string

const (
	TypeBlog        ContentType = "blog"
	TypePublication ContentType = "publication"
	TypeAbout       ContentType = "about"
	TypeProjects    ContentType = "projects"
)

// ParseContentType validates a content type received as a query parameter.
func ParseContentType(value string) (ContentType, error) {
	switch t := ContentType(value); t {
	case TypeBlog, TypePublication, TypeAbout, TypeProjects:
		return t, nil
	}
	return "", validationErrf("type must be one of blog, publication, about, projects")
}

type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// MaxAssetSizeBytes caps uploaded pdf/docx assets.
const MaxAssetSizeBytes = 10 * 1024 * 1024

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// BlogData is a blog post's content fields.
type BlogData struct {
	Title   string   `json:"title"`
	Slug    string   `json:"slug"`
	Date    string   `json:"date"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Draft   bool     `json:"draft"`
	Body    string   `json:"body"`
}

// PublicationLinks holds a publication's outbound links. Empty strings mean
// unset; each set value is either an absolute URL or a root-relative path.
type PublicationLinks struct {
	DOI   string `json:"doi,omitempty"`
	Arxiv string `json:"arxiv,omitempty"`
	PDF   string `json:"pdf,omitempty"`
	Docx  string `json:"docx,omitempty"`
	Code  string `json:"code,omitempty"`
}

// PublicationData is a publication entry's content fields.
type PublicationData struct {
	Title     string           `json:"title"`
	Slug      string           `json:"slug"`
	Authors   []string         `json:"authors"`
	Venue     string           `json:"venue"`
	Year      int              `json:"year"`
	Type      string           `json:"type"`
	Highlight bool             `json:"highlight"`
	Draft     bool             `json:"draft"`
	Links     PublicationLinks `json:"links"`
	Body      string           `json:"body"`
}

type AboutData struct {
	Body string `json:"body"`
}

type ProjectCard struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type ProjectsData struct {
	Cards []ProjectCard `json:"cards"`
}

var publicationTypes = []string{"journal", "conference", "preprint", "thesis", "workshop"}

// Submission is a validated content change request. Exactly one of the data
// pointers is set, matching Type.
type Submission struct {
	Type      ContentType
	Mode      Mode
	ID        string
	AutoMerge bool

	Blog        *BlogData
	Publication *PublicationData
	About       *AboutData
	Projects    *ProjectsData
}

// Slug returns the identifier the submission targets; about and projects are
// singleton resources with fixed identifiers.
func (s *Submission) Slug() string {
	switch s.Type {
	case TypeBlog:
		return s.Blog.Slug
	case TypePublication:
		return s.Publication.Slug
	case TypeAbout:
		return "about"
	case TypeProjects:
		return "projects"
	}
	return ""
}

// ParseSubmission decodes and validates a raw JSON submission payload.
func ParseSubmission(payload []byte) (*Submission, error) {
	var raw struct {
		Type      string          `json:"type"`
		Mode      string          `json:"mode"`
		ID        string          `json:"id"`
		AutoMerge *bool           `json:"autoMerge"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, validationErrf("invalid JSON payload")
	}

	sub := &Submission{
		Type:      ContentType(raw.Type),
		Mode:      Mode(raw.Mode),
		ID:        strings.TrimSpace(raw.ID),
		AutoMerge: true,
	}
	if raw.AutoMerge != nil {
		sub.AutoMerge = *raw.AutoMerge
	}

	if sub.Mode != ModeCreate && sub.Mode != ModeEdit {
		return nil, validationErrf("mode must be create or edit")
	}
	if len(raw.Data) == 0 {
		return nil, validationErrf("data is required")
	}

	switch sub.Type {
	case TypeBlog:
		var data BlogData
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return nil, validationErrf("invalid blog data")
		}
		if err := validateBlogData(&data); err != nil {
			return nil, err
		}
		sub.Blog = &data
	case TypePublication:
		var data PublicationData
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return nil, validationErrf("invalid publication data")
		}
		if err := validatePublicationData(&data); err != nil {
			return nil, err
		}
		sub.Publication = &data
	case TypeAbout:
		var data AboutData
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return nil, validationErrf("invalid about data")
		}
		data.Body = strings.TrimSpace(data.Body)
		if data.Body == "" {
			return nil, validationErrf("about body is required")
		}
		sub.About = &data
	case TypeProjects:
		var data ProjectsData
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return nil, validationErrf("invalid projects data")
		}
		if len(data.Cards) == 0 {
			return nil, validationErrf("at least one project card is required")
		}
		for i := range data.Cards {
			data.Cards[i].Title = strings.TrimSpace(data.Cards[i].Title)
			data.Cards[i].Description = strings.TrimSpace(data.Cards[i].Description)
			if data.Cards[i].Title == "" || data.Cards[i].Description == "" {
				return nil, validationErrf("project cards need a title and a description")
			}
		}
		sub.Projects = &data
	default:
		return nil, validationErrf("unsupported content type %q", raw.Type)
	}

	if err := validateSubmissionID(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func validateSubmissionID(sub *Submission) error {
	switch sub.Type {
	case TypeAbout, TypeProjects:
		fixed := string(sub.Type)
		if sub.Mode == ModeEdit && sub.ID != fixed {
			return validationErrf("id must be %q", fixed)
		}
		if sub.Mode == ModeCreate && sub.ID != "" && sub.ID != fixed {
			return validationErrf("id must be %q", fixed)
		}
	default:
		if sub.Mode == ModeEdit && !slugPattern.MatchString(sub.ID) {
			return validationErrf("id must be a slug in edit mode")
		}
	}
	return nil
}

func validateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return validationErrf("slug must contain only lowercase letters, numbers, and hyphens")
	}
	return nil
}

func validateBlogData(data *BlogData) error {
	data.Title = strings.TrimSpace(data.Title)
	data.Slug = strings.TrimSpace(data.Slug)
	data.Summary = strings.TrimSpace(data.Summary)
	data.Body = strings.TrimSpace(data.Body)

	if data.Title == "" {
		return validationErrf("blog title is required")
	}
	if err := validateSlug(data.Slug); err != nil {
		return err
	}
	if _, err := time.Parse("2006-01-02", data.Date); err != nil {
		return validationErrf("date must be an ISO date (YYYY-MM-DD)")
	}
	if data.Summary == "" {
		return validationErrf("blog summary is required")
	}
	if data.Tags == nil {
		data.Tags = []string{}
	}
	for i, tag := range data.Tags {
		data.Tags[i] = strings.TrimSpace(tag)
		if data.Tags[i] == "" {
			return validationErrf("blog tags must not be empty")
		}
	}
	if data.Body == "" {
		return validationErrf("blog body is required")
	}
	return nil
}

func validatePublicationData(data *PublicationData) error {
	data.Title = strings.TrimSpace(data.Title)
	data.Slug = strings.TrimSpace(data.Slug)
	data.Venue = strings.TrimSpace(data.Venue)
	data.Body = strings.TrimSpace(data.Body)

	if data.Title == "" {
		return validationErrf("publication title is required")
	}
	if err := validateSlug(data.Slug); err != nil {
		return err
	}
	if len(data.Authors) == 0 {
		return validationErrf("at least one author is required")
	}
	for i, author := range data.Authors {
		data.Authors[i] = strings.TrimSpace(author)
		if data.Authors[i] == "" {
			return validationErrf("authors must not be empty")
		}
	}
	if data.Venue == "" {
		return validationErrf("publication venue is required")
	}
	if data.Year < 1900 {
		return validationErrf("year must be 1900 or later")
	}
	if !isPublicationType(data.Type) {
		return validationErrf("type must be one of %s", strings.Join(publicationTypes, ", "))
	}
	if err := normalizeLinks(&data.Links); err != nil {
		return err
	}
	if data.Body == "" {
		return validationErrf("publication body is required")
	}
	return nil
}

func isPublicationType(value string) bool {
	for _, t := range publicationTypes {
		if value == t {
			return true
		}
	}
	return false
}

func normalizeLinks(links *PublicationLinks) error {
	for _, field := range []*string{&links.DOI, &links.Arxiv, &links.PDF, &links.Docx, &links.Code} {
		*field = strings.TrimSpace(*field)
		if *field == "" {
			continue
		}
		if !isValidLink(*field) {
			return validationErrf("expected an absolute URL or a root-relative path")
		}
	}
	return nil
}

// isValidLink accepts root-relative paths and syntactically complete absolute
// URLs; anything else is rejected with a dedicated message so callers can tell
// a bad link from a generic format error.
func isValidLink(value string) bool {
	if strings.HasPrefix(value, "/") {
		return true
	}
	u, err := url.Parse(value)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Upload is a binary asset received alongside a publication submission.
type Upload struct {
	Name string
	Data []byte
}

// ValidateUpload enforces the size cap and the extension matching kind
// ("pdf" or "docx"), independently of the JSON schema.
func ValidateUpload(upload *Upload, kind string) error {
	if len(upload.Data) > MaxAssetSizeBytes {
		return validationErrf("uploaded %s file exceeds 10 MB limit", strings.ToUpper(kind))
	}
	name := strings.ToLower(strings.TrimSpace(upload.Name))
	if !strings.HasSuffix(name, "."+kind) {
		return validationErrf("uploaded file must end with .%s", kind)
	}
	return nil
}

// AssertEditSlugUnchanged rejects edit submissions that try to move a
// slug-bearing item to a new slug. Checked as a discrete step because it
// cross-references the submission id against the payload slug.
func AssertEditSlugUnchanged(sub *Submission) error {
	if sub.Mode != ModeEdit {
		return nil
	}
	if sub.Type == TypeBlog || sub.Type == TypePublication {
		if sub.ID != sub.Slug() {
			return validationErrf("slug changes are not supported in edit mode")
		}
	}
	return nil
}
