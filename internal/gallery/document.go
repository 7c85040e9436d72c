package gallery

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DocumentHeader opens the document. Fragments follow it directly.
const DocumentHeader = `<!DOCTYPE html>
<html lang="en">
	<head>
		<title></title>
		<meta charset="UTF-8">
		<meta name="viewport" content="width=device-width, initial-scale=1">
		<link href="css/style.css" rel="stylesheet">
	</head>
	<body>
		<div style="display: flex; flex-direction: column; max-width: 30vw;">
`

// DocumentFooter closes the document. Every document at rest ends with it.
const DocumentFooter = `
		</div>
	</body>
</html>
`

// Document is the single shared HTML file that fragments are spliced into.
// Only the rebuild worker writes it; readers get either the old or the new
// file because every write is a rename over the target.
type Document struct {
	path   string
	header []byte
	footer []byte
}

// NewDocument returns a Document stored at path using the default header and
// footer.
func NewDocument(path string) *Document {
	return &Document{
		path:   path,
		header: []byte(DocumentHeader),
		footer: []byte(DocumentFooter),
	}
}

// Path returns the file path of the document.
func (d *Document) Path() string {
	return d.path
}

// Ensure writes header+footer if the document does not exist yet.
func (d *Document) Ensure() error {
	_, err := os.Stat(d.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("document: stat %s: %w", d.path, err)
	}
	return d.replace(d.empty())
}

// Splice inserts f between the existing content and the footer.
//
// The new content is prepared in memory and written to a temp file that is
// renamed over the document, so a failure at any step (including a footer
// mismatch) leaves the previous document in place.
func (d *Document) Splice(f Fragment) error {
	content, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		content = d.empty()
	} else if err != nil {
		return fmt.Errorf("document: read %s: %w", d.path, err)
	}

	next, err := SpliceBytes(content, f.Markup, d.footer)
	if err != nil {
		return err
	}
	return d.replace(next)
}

// Fragments returns the number of img elements in the document body.
func (d *Document) Fragments() (int, error) {
	fh, err := os.Open(d.path)
	if err != nil {
		return 0, fmt.Errorf("document: open %s: %w", d.path, err)
	}
	defer fh.Close()
	return CountFragments(fh)
}

func (d *Document) empty() []byte {
	b := make([]byte, 0, len(d.header)+len(d.footer))
	b = append(b, d.header...)
	return append(b, d.footer...)
}

// replace atomically swaps the document for content.
func (d *Document) replace(content []byte) error {
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("document: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".document-*.tmp")
	if err != nil {
		return fmt.Errorf("document: create temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("document: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("document: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("document: close temp: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("document: chmod temp: %w", err)
	}
	if err := os.Rename(tmpPath, d.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("document: rename: %w", err)
	}
	return nil
}

// SpliceBytes returns content with fragment inserted before the trailing
// footer. content must end with footer, otherwise ErrFooterMismatch is
// returned. The result always has length len(content)+len(fragment) and never
// aliases content.
func SpliceBytes(content, fragment, footer []byte) ([]byte, error) {
	if !bytes.HasSuffix(content, footer) {
		return nil, fmt.Errorf("%w (%d bytes, want suffix of %d bytes)", ErrFooterMismatch, len(content), len(footer))
	}
	body := content[:len(content)-len(footer)]

	out := make([]byte, 0, len(content)+len(fragment))
	out = append(out, body...)
	out = append(out, fragment...)
	return append(out, footer...), nil
}

// CountFragments tokenizes an HTML document and counts img elements.
func CountFragments(r io.Reader) (int, error) {
	z := html.NewTokenizer(r)
	n := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return n, nil
			}
			return n, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Img {
				n++
			}
		}
	}
}
