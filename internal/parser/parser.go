// Package parser turns raw corpus files into typed metadata and
// heading-delimited sections. It never panics across the per-file boundary:
// malformed input is reported as a *ParseError so callers can skip and
// continue with the remaining files.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/halvard/munin/internal/models"
)

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*$`)
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	yamlLineRe = regexp.MustCompile(`line (\d+)`)
)

// ParseError describes a malformed metadata header. Line is 1-based within
// the source file.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse: line %d: %s", e.Line, e.Msg)
}

// Metadata is the typed header of a corpus document. Unknown header keys are
// ignored; known keys are validated.
type Metadata struct {
	ID     string
	Kind   models.Kind
	Date   string
	Status models.PlanStatus
	Author string
	Topics []string
	Raw    map[string]any
}

// Result holds the output of parsing one corpus file. Body is always a byte
// suffix of the input, so section offsets line up with the file on disk.
type Result struct {
	Meta     Metadata
	Body     string
	Sections []models.Section
}

// Parse splits a leading YAML metadata header from the body and walks the
// body line by line, starting a new section at every heading marker.
func Parse(data []byte) (*Result, error) {
	meta, body, err := splitHeader(data)
	if err != nil {
		return nil, err
	}
	return &Result{
		Meta:     meta,
		Body:     body,
		Sections: splitSections(body),
	}, nil
}

const headerDelim = "---"

// splitHeader separates the metadata block (between leading --- delimiters)
// from the body. A file without a header is all body. The returned body is
// always a suffix of data so that offsets remain file-accurate.
func splitHeader(data []byte) (Metadata, string, error) {
	text := string(data)
	if !strings.HasPrefix(text, headerDelim+"\n") {
		return Metadata{}, text, nil
	}

	blockStart := len(headerDelim) + 1
	for offset := blockStart; offset <= len(text); {
		line, next := nextLine(text, offset)
		if strings.TrimRight(line, " \r") != headerDelim {
			if next > len(text) {
				break
			}
			offset = next
			continue
		}

		body := ""
		if next <= len(text) {
			body = text[next:]
		}

		var raw map[string]any
		if err := yaml.Unmarshal([]byte(text[blockStart:offset]), &raw); err != nil {
			return Metadata{}, "", &ParseError{
				Line: headerLine(err),
				Msg:  "invalid metadata: " + err.Error(),
			}
		}
		meta, err := typedMetadata(raw)
		if err != nil {
			return Metadata{}, "", err
		}
		return meta, body, nil
	}
	return Metadata{}, "", &ParseError{Line: 1, Msg: "metadata header is not closed"}
}

// headerLine recovers a 1-based file line from a yaml error, accounting for
// the opening delimiter line.
func headerLine(err error) int {
	if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			return n + 1
		}
	}
	return 2
}

// typedMetadata validates and extracts the known header keys.
func typedMetadata(raw map[string]any) (Metadata, error) {
	meta := Metadata{Raw: raw}
	if raw == nil {
		return meta, nil
	}

	meta.ID = models.NormalizeIdentity(stringKey(raw, "id"))
	meta.Author = models.NormalizeIdentity(stringKey(raw, "author"))

	if k := stringKey(raw, "kind"); k != "" {
		kind := models.Kind(strings.ToLower(k))
		if !kind.Valid() {
			return Metadata{}, &ParseError{Line: 2, Msg: fmt.Sprintf("unknown kind %q", k)}
		}
		meta.Kind = kind
	}

	if d := stringKey(raw, "date"); d != "" {
		if !dateRe.MatchString(d) {
			return Metadata{}, &ParseError{Line: 2, Msg: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", d)}
		}
		meta.Date = d
	}

	if s := stringKey(raw, "status"); s != "" {
		status := models.PlanStatus(strings.ToLower(s))
		if !status.Valid() {
			return Metadata{}, &ParseError{Line: 2, Msg: fmt.Sprintf("unknown status %q", s)}
		}
		meta.Status = status
	}

	meta.Topics = stringList(raw, "topics")
	return meta, nil
}

func stringKey(raw map[string]any, key string) string {
	if v, ok := raw[key]; ok {
		switch t := v.(type) {
		case string:
			return strings.TrimSpace(t)
		case int:
			return strconv.Itoa(t)
		case time.Time:
			// yaml.v3 decodes unquoted ISO dates as timestamps.
			return t.Format("2006-01-02")
		}
	}
	return ""
}

func stringList(raw map[string]any, key string) []string {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// splitSections walks body line by line. A heading line at level L closes
// the previous section at the preceding line. Text before the first heading
// (or a heading-less body) forms one implicit level-0 section. An empty body
// yields no sections.
func splitSections(body string) []models.Section {
	if body == "" {
		return nil
	}

	var out []models.Section
	offset := 0
	sawHeading := false
	for offset <= len(body) {
		line, next := nextLine(body, offset)
		if m := headingRe.FindStringSubmatch(line); m != nil {
			sawHeading = true
			out = append(out, models.Section{
				Heading:   m[2],
				Level:     len(m[1]),
				HeadStart: offset,
				BodyStart: next,
			})
		} else if !sawHeading && len(out) == 0 && strings.TrimSpace(line) != "" {
			// Implicit section: content before any heading.
			out = append(out, models.Section{Level: 0, HeadStart: 0, BodyStart: 0})
		}
		if next > len(body) {
			break
		}
		offset = next
	}
	return out
}

// nextLine returns the line starting at offset and the offset of the
// following line. The final line may lack a trailing newline, in which case
// next is len(body)+1 to signal exhaustion.
func nextLine(body string, offset int) (string, int) {
	if i := strings.IndexByte(body[offset:], '\n'); i >= 0 {
		return body[offset : offset+i], offset + i + 1
	}
	return body[offset:], len(body) + 1
}
