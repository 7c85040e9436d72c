package gallery

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// MediaURLPrefix is the document-relative directory media is served from.
const MediaURLPrefix = "media"

const maxMediaNameLen = 255

// fragmentPolicy admits exactly what a fragment may contain: an img with a
// relative src and a loading hint.
var fragmentPolicy = newFragmentPolicy()

func newFragmentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowAttrs("src").OnElements("img")
	p.AllowAttrs("loading").Matching(regexp.MustCompile(`^(lazy|eager)$`)).OnElements("img")
	return p
}

// MediaName derives the storage name for a client-supplied filename. Any
// directory part is dropped and characters outside [A-Za-z0-9._-] become '_'.
// Names that are empty, start with a dot, or exceed 255 bytes are rejected.
func MediaName(filename string) (string, error) {
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}

	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		if isMediaNameChar(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	name := b.String()
	if err := validMediaName(name); err != nil {
		return "", err
	}
	return name, nil
}

func validMediaName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidMediaName)
	case len(name) > maxMediaNameLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidMediaName, maxMediaNameLen)
	case name[0] == '.':
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidMediaName, name)
	}
	for _, r := range name {
		if !isMediaNameChar(r) {
			return fmt.Errorf("%w: invalid character %q", ErrInvalidMediaName, r)
		}
	}
	return nil
}

func isMediaNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '.' || r == '_' || r == '-'
}

// NewFragment builds the lazy-loading img markup referencing a stored media
// name.
func NewFragment(name string) (Fragment, error) {
	if err := validMediaName(name); err != nil {
		return Fragment{}, err
	}

	raw := fmt.Sprintf(`<img src="%s" loading="lazy">`, path.Join(MediaURLPrefix, name))
	markup := fragmentPolicy.SanitizeBytes([]byte(raw))
	if len(markup) == 0 {
		return Fragment{}, fmt.Errorf("%w: %q rejected by markup policy", ErrInvalidMediaName, name)
	}

	return Fragment{
		ID:     FragmentID(uuid.Must(uuid.NewV7()).String()),
		Markup: markup,
	}, nil
}
