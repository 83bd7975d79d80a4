package distmerge

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

// Field is one "Name: value" entry of a control paragraph. Continuation
// lines are kept verbatim, including their leading whitespace.
type Field struct {
	Name         string
	Value        string
	Continuation []string
}

// Paragraph is an ordered set of fields, as found in Packages, Sources
// and Release files.
type Paragraph struct {
	Fields []Field
}

// Get returns the first-line value of name.
func (p *Paragraph) Get(name string) string {
	for _, f := range p.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Set replaces the value of name, appending the field if absent.
func (p *Paragraph) Set(name, value string, continuation ...string) {
	for i, f := range p.Fields {
		if strings.EqualFold(f.Name, name) {
			p.Fields[i] = Field{Name: f.Name, Value: value, Continuation: continuation}
			return
		}
	}
	p.Fields = append(p.Fields, Field{Name: name, Value: value, Continuation: continuation})
}

// Delete removes name.
func (p *Paragraph) Delete(name string) {
	kept := p.Fields[:0]
	for _, f := range p.Fields {
		if !strings.EqualFold(f.Name, name) {
			kept = append(kept, f)
		}
	}
	p.Fields = kept
}

// WriteTo renders the paragraph without the trailing blank line.
func (p *Paragraph) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, f := range p.Fields {
		buf.WriteString(f.Name)
		buf.WriteString(":")
		if f.Value != "" {
			buf.WriteString(" ")
			buf.WriteString(f.Value)
		}
		buf.WriteString("\n")
		for _, line := range f.Continuation {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}
	return buf.WriteTo(w)
}

// Bytes returns the rendered paragraph.
func (p *Paragraph) Bytes() []byte {
	var buf bytes.Buffer
	p.WriteTo(&buf)
	return buf.Bytes()
}

// ParseParagraphs splits r into blank-line separated paragraphs.
func ParseParagraphs(r io.Reader) ([]Paragraph, error) {
	var paragraphs []Paragraph
	var current *Paragraph

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		// Empty line = end of paragraph
		if strings.TrimSpace(line) == "" {
			if current != nil {
				paragraphs = append(paragraphs, *current)
				current = nil
			}
			continue
		}

		// Continuation line
		if line[0] == ' ' || line[0] == '\t' {
			if current == nil || len(current.Fields) == 0 {
				return nil, errors.Newf("continuation line without field: %q", line)
			}
			last := &current.Fields[len(current.Fields)-1]
			last.Continuation = append(last.Continuation, line)
			continue
		}

		// OpenPGP armor lines can appear in signed files; they are not fields
		if strings.HasPrefix(line, "-----") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, errors.Newf("malformed line: %q", line)
		}

		if current == nil {
			current = &Paragraph{}
		}
		current.Fields = append(current.Fields, Field{
			Name:  parts[0],
			Value: strings.TrimSpace(parts[1]),
		})
	}

	// Don't forget last paragraph
	if current != nil {
		paragraphs = append(paragraphs, *current)
	}

	return paragraphs, scanner.Err()
}

// RenderParagraphs joins paragraphs with blank lines.
func RenderParagraphs(paragraphs []Paragraph) []byte {
	var buf bytes.Buffer
	for i := range paragraphs {
		paragraphs[i].WriteTo(&buf)
		buf.WriteString("\n")
	}
	return buf.Bytes()
}
