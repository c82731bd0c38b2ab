package utils

import (
	"embed"
	"html/template"
	"io"
	"net"
	"strings"

	"domaincheck/internal/model"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

type TemplateRegistry struct {
	Templates *template.Template
}

func (t *TemplateRegistry) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.Templates.ExecuteTemplate(w, name, data)
}

// NewTemplateRegistry parses the embedded page templates.
func NewTemplateRegistry() (*TemplateRegistry, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"severityClass": SeverityClass,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &TemplateRegistry{Templates: tmpl}, nil
}

// SeverityClass maps an alert severity to its toast CSS class.
func SeverityClass(s model.Severity) string {
	if s == model.SeverityDestructive {
		return "toast toast-destructive"
	}
	return "toast toast-info"
}

// IsValidTarget reports whether target is a plausible registrable domain name.
// IP addresses are rejected. A single trailing dot is allowed.
func IsValidTarget(target string) bool {
	if net.ParseIP(target) != nil {
		return false
	}
	target = strings.TrimSuffix(target, ".")
	if len(target) == 0 || len(target) > 253 || !strings.Contains(target, ".") {
		return false
	}
	for _, label := range strings.Split(target, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, ch := range label {
			if (ch < 'a' || ch > 'z') && (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') && ch != '-' {
				return false
			}
		}
	}
	return true
}

type ProxyConfig struct {
	TrustProxy bool
}

// ExtractIP returns the client address, honouring X-Forwarded-For when the
// server sits behind a trusted proxy.
func ExtractIP(c echo.Context, cfg ProxyConfig) string {
	if cfg.TrustProxy {
		if xff := c.Request().Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
	}
	return c.RealIP()
}
