package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Template names.
const (
	TemplateWelcome     = "welcome"
	TemplateCloudAccess = "cloud_access"
)

const subjectBlock = "subject"

//go:embed templates/*.md.tmpl
var templateFS embed.FS

// Rendered is a message ready to be packed into MIME parts.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// Renderer executes the embedded Markdown templates and converts the result
// to HTML.
type Renderer struct {
	templates map[string]*template.Template
	markdown  goldmark.Markdown
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	files, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	templates := make(map[string]*template.Template, len(files))
	for _, file := range files {
		name := strings.TrimSuffix(file.Name(), ".md.tmpl")
		tmpl, err := template.New(name).ParseFS(templateFS, path.Join("templates", file.Name()))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		if tmpl.Lookup(subjectBlock) == nil {
			return nil, fmt.Errorf("template %s has no %q block", name, subjectBlock)
		}
		templates[name] = tmpl.Lookup(file.Name())
	}
	return &Renderer{
		templates: templates,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}, nil
}

// Render executes the named template with data.
func (r *Renderer) Render(name string, data any) (*Rendered, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", name)
	}

	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, subjectBlock, data); err != nil {
		return nil, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := tmpl.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("render %s body: %w", name, err)
	}

	var htmlBody bytes.Buffer
	if err := r.markdown.Convert(body.Bytes(), &htmlBody); err != nil {
		return nil, fmt.Errorf("convert %s to html: %w", name, err)
	}
	return &Rendered{
		Subject: strings.TrimSpace(subject.String()),
		Text:    strings.TrimSpace(body.String()) + "\n",
		HTML:    htmlBody.String(),
	}, nil
}
