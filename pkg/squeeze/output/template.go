package output

import (
	"bytes"
	"sync"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

// TemplateFormatter formats output using a custom Go text/template. The
// template sees the same structure as the JSON output: .Run for run
// summaries and .Ledger for ledger reports.
type TemplateFormatter struct {
	templateStr string
	template    *template.Template
	mu          sync.Mutex
}

// NewTemplateFormatter creates a new template formatter with the given template string.
func NewTemplateFormatter(templateStr string) *TemplateFormatter {
	return &TemplateFormatter{
		templateStr: templateStr,
	}
}

// SetTemplate sets or updates the template string.
func (f *TemplateFormatter) SetTemplate(templateStr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templateStr = templateStr
	f.template = nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// Usage: {{date .Run.StartedAt "2006-01-02"}}
		"date": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},

		// Usage: {{bytes .Result.BytesSaved}}
		"bytes": func(size any) string {
			switch n := size.(type) {
			case uint64:
				return humanize.IBytes(n)
			case int64:
				if n < 0 {
					return "-" + humanize.IBytes(uint64(-n))
				}
				return humanize.IBytes(uint64(n))
			case int:
				return humanize.IBytes(uint64(max(n, 0)))
			default:
				return "?"
			}
		},

		// Usage: {{comma .Result.Units}}
		"comma": func(n int) string {
			return humanize.Comma(int64(n))
		},
	}
}

// Format writes the formatted output to the buffer.
func (f *TemplateFormatter) Format(w *bytes.Buffer, r *Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.template == nil {
		tmpl, err := template.New("output").Funcs(templateFuncs()).Parse(f.templateStr)
		if err != nil {
			return err
		}
		f.template = tmpl
	}

	return f.template.Execute(w, buildDocument(r))
}

// defaultTemplate prints one tab-separated line per class.
const defaultTemplate = `{{with .Run}}{{range .Classes}}{{.Class}}	{{.Result.Units}}	{{bytes .Result.BytesSaved}}
{{end}}{{end}}{{with .Ledger}}{{range .Classes}}{{.Class}}	{{.Files}}	{{bytes .BytesSaved}}
{{end}}{{end}}`

func init() {
	Register("template", func() Formatter {
		return NewTemplateFormatter(defaultTemplate)
	})
}

var _ Formatter = (*TemplateFormatter)(nil)
