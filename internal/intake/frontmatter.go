package intake

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var frontmatterDelim = []byte("---")

// splitFrontmatter separates an .mdx document into its YAML frontmatter block
// and the body that follows. Documents without a leading "---" line are
// treated as all body.
func splitFrontmatter(source []byte) (frontmatter, body []byte) {
	trimmed := bytes.TrimLeft(source, "\uFEFF\n\r")
	if !bytes.HasPrefix(trimmed, frontmatterDelim) {
		return nil, source
	}
	rest := trimmed[len(frontmatterDelim):]
	rest = bytes.TrimPrefix(rest, []byte("\r"))
	if len(rest) == 0 || rest[0] != '\n' {
		return nil, source
	}
	rest = rest[1:]

	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, source
	}
	frontmatter = rest[:end+1]
	body = rest[end+1:]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}
	return frontmatter, body
}

// frontmatterSlug pulls the slug field out of a document's frontmatter.
// Returns "" for documents without one.
func frontmatterSlug(source []byte) string {
	fm, _ := splitFrontmatter(source)
	if fm == nil {
		return ""
	}
	var head struct {
		Slug string `yaml:"slug"`
	}
	if err := yaml.Unmarshal(fm, &head); err != nil {
		return ""
	}
	return head.Slug
}

// marshalDocument renders a frontmatter struct and markdown body into a
// complete .mdx document ending in a newline.
func marshalDocument(fm any, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}

	buf.WriteString("---\n")
	body = strings.TrimRight(body, "\n")
	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}
