package email

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrTemplateNotFound is returned when no template exists for a name.
var ErrTemplateNotFound = errors.New("email template not found")

const currentYearKey = "currentYear"

const (
	TemplateResetPassword = "reset_password"
	TemplateVerifyEmail   = "verify_email"
)

// Renderer fills {{key}} placeholders in HTML templates stored as <name>.html.
// Templates are read on every call.
type Renderer struct {
	templates fs.FS
	now       func() time.Time
}

func NewRenderer(templates fs.FS) *Renderer {
	return &Renderer{templates: templates, now: time.Now}
}

// Render loads the named template and substitutes every occurrence of each
// variable. currentYear is always set and cannot be overridden. Placeholders
// without a value are left as they are.
func (r *Renderer) Render(name string, vars map[string]string) (string, error) {
	path := name + ".html"
	if !fs.ValidPath(path) {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}

	raw, err := fs.ReadFile(r.templates, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
		}
		return "", fmt.Errorf("reading email template %q: %w", name, err)
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		if k != currentYearKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := string(raw)
	for _, k := range keys {
		out = strings.ReplaceAll(out, "{{"+k+"}}", vars[k])
	}
	// Last, so placeholders carried in by caller values are filled too.
	out = strings.ReplaceAll(out, "{{"+currentYearKey+"}}", strconv.Itoa(r.now().Year()))
	return out, nil
}
