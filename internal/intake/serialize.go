package intake

// Frontmatter structs mirror the shape the site's content loader reads.
// Field order here is the order written to disk.

type blogFrontmatter struct {
	Title   string   `yaml:"title"`
	Date    string   `yaml:"date"`
	Summary string   `yaml:"summary"`
	Tags    []string `yaml:"tags"`
	Draft   bool     `yaml:"draft"`
	Slug    string   `yaml:"slug"`
}

type publicationLinksFrontmatter struct {
	DOI   string `yaml:"doi,omitempty"`
	Arxiv string `yaml:"arxiv,omitempty"`
	PDF   string `yaml:"pdf,omitempty"`
	Docx  string `yaml:"docx,omitempty"`
	Code  string `yaml:"code,omitempty"`
}

type publicationFrontmatter struct {
	Title     string                      `yaml:"title"`
	Authors   []string                    `yaml:"authors"`
	Venue     string                      `yaml:"venue"`
	Year      int                         `yaml:"year"`
	Type      string                      `yaml:"type"`
	Links     publicationLinksFrontmatter `yaml:"links"`
	Highlight bool                        `yaml:"highlight"`
	Draft     bool                        `yaml:"draft"`
	Slug      string                      `yaml:"slug"`
}

type aboutFrontmatter struct {
	Title string `yaml:"title"`
}

type projectCardFrontmatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type projectsFrontmatter struct {
	Cards []projectCardFrontmatter `yaml:"cards"`
}

func serializeBlog(data *BlogData) ([]byte, error) {
	tags := data.Tags
	if tags == nil {
		tags = []string{}
	}
	return marshalDocument(blogFrontmatter{
		Title:   data.Title,
		Date:    data.Date,
		Summary: data.Summary,
		Tags:    tags,
		Draft:   data.Draft,
		Slug:    data.Slug,
	}, data.Body)
}

func serializePublication(data *PublicationData) ([]byte, error) {
	return marshalDocument(publicationFrontmatter{
		Title:   data.Title,
		Authors: data.Authors,
		Venue:   data.Venue,
		Year:    data.Year,
		Type:    data.Type,
		Links: publicationLinksFrontmatter{
			DOI:   data.Links.DOI,
			Arxiv: data.Links.Arxiv,
			PDF:   data.Links.PDF,
			Docx:  data.Links.Docx,
			Code:  data.Links.Code,
		},
		Highlight: data.Highlight,
		Draft:     data.Draft,
		Slug:      data.Slug,
	}, data.Body)
}

func serializeAbout(data *AboutData) ([]byte, error) {
	return marshalDocument(aboutFrontmatter{Title: "About Narrative"}, data.Body)
}

func serializeProjects(data *ProjectsData) ([]byte, error) {
	cards := make([]projectCardFrontmatter, 0, len(data.Cards))
	for _, c := range data.Cards {
		cards = append(cards, projectCardFrontmatter{
			Title:       c.Title,
			Description: c.Description,
		})
	}
	return marshalDocument(projectsFrontmatter{Cards: cards}, "")
}
