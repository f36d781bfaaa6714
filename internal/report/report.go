// Package report renders experiment results as text, JSON, Markdown or HTML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gocp/internal/errors"
	"gocp/internal/measures"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Format selects a renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts the format names case-insensitively, with "md" for Markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", errors.InvalidInput(fmt.Sprintf("unknown report format %q (want text, json, markdown or html)", s))
}

// Setting is one labelled run parameter.
type Setting struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Report is the outcome of one experiment.
type Report struct {
	Title    string            `json:"title"`
	Settings []Setting         `json:"settings,omitempty"`
	Results  []measures.Result `json:"results"`
	Notes    []string          `json:"notes,omitempty"`
}

// New starts a report with the given title.
func New(title string) *Report {
	return &Report{Title: title}
}

// Set appends a run parameter; value is formatted with %v.
func (r *Report) Set(name string, value any) *Report {
	r.Settings = append(r.Settings, Setting{Name: name, Value: fmt.Sprint(value)})
	return r
}

// Add appends results.
func (r *Report) Add(results ...measures.Result) *Report {
	r.Results = append(r.Results, results...)
	return r
}

// Note appends a free-form line.
func (r *Report) Note(format string, args ...any) *Report {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
	return r
}

// Write renders the report to w.
func (r *Report) Write(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatMarkdown:
		_, err := io.WriteString(w, r.Markdown())
		return err
	case FormatHTML:
		_, err := w.Write(r.HTML())
		return err
	default:
		_, err := io.WriteString(w, r.Text())
		return err
	}
}

// Text is the plain console rendering.
func (r *Report) Text() string {
	var b strings.Builder
	b.WriteString(r.Title + "\n")
	for _, s := range r.Settings {
		fmt.Fprintf(&b, "  %s: %s\n", s.Name, s.Value)
	}
	for _, n := range r.Notes {
		fmt.Fprintf(&b, "  %s\n", n)
	}
	for _, res := range r.Results {
		fmt.Fprintf(&b, "  %-26s mean %.4f  sd %.4f  (n=%d)\n", res.Name, res.Mean, res.StdDev, res.Count)
	}
	return b.String()
}

// Markdown renders a heading, the settings as a list and the results as a table.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	for _, s := range r.Settings {
		fmt.Fprintf(&b, "- **%s**: %s\n", s.Name, s.Value)
	}
	if len(r.Settings) > 0 {
		b.WriteString("\n")
	}
	for _, n := range r.Notes {
		fmt.Fprintf(&b, "%s\n\n", n)
	}
	b.WriteString("| Measure | Mean | Std. dev. | n |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	for _, res := range r.Results {
		fmt.Fprintf(&b, "| %s | %.4f | %.4f | %d |\n", res.Name, res.Mean, res.StdDev, res.Count)
	}
	return b.String()
}

// HTML renders the Markdown form as a complete page.
func (r *Report) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: r.Title,
	})
	return markdown.ToHTML([]byte(r.Markdown()), p, renderer)
}
