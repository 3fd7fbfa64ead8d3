// Package email renders and delivers notification emails.
package email

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/example/intake/internal/core/instruction"
	"github.com/example/intake/internal/core/outbox"
	"github.com/example/intake/internal/ports/secondary"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateNames = []string{
	outbox.TemplateClientSuccess,
	outbox.TemplateClientFailure,
	outbox.TemplateFeeEarner,
	outbox.TemplateAccounts,
}

// Renderer renders the embedded templates.
type Renderer struct {
	firmName  string
	templates map[string]*template.Template
}

// NewRenderer parses every template. firmName signs each message.
func NewRenderer(firmName string) (*Renderer, error) {
	r := &Renderer{firmName: firmName, templates: make(map[string]*template.Template, len(templateNames))}
	for _, name := range templateNames {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// view is the data every template sees.
type view struct {
	*instruction.Instruction
	ClientName string
	FirmName   string
}

// Render returns the subject and HTML body of a template for an instruction.
func (r *Renderer) Render(name string, inst *instruction.Instruction) (string, string, error) {
	t, ok := r.templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}

	data := view{Instruction: inst, ClientName: clientName(inst), FirmName: r.firmName}

	var subject, body bytes.Buffer
	if err := t.ExecuteTemplate(&subject, "subject", data); err != nil {
		return "", "", fmt.Errorf("failed to render %s subject: %w", name, err)
	}
	if err := t.ExecuteTemplate(&body, "layout", data); err != nil {
		return "", "", fmt.Errorf("failed to render %s body: %w", name, err)
	}

	// subjects are plain text headers
	return html.UnescapeString(subject.String()), body.String(), nil
}

func clientName(inst *instruction.Instruction) string {
	name := strings.TrimSpace(inst.FirstName + " " + inst.LastName)
	if name != "" {
		return name
	}
	if inst.CompanyName != "" {
		return inst.CompanyName
	}
	return "client"
}

var _ secondary.EmailRenderer = (*Renderer)(nil)
