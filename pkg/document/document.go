// Package document splits content files into front matter and body and
// decodes the front matter into a typed header.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/xhad/sitecheck/internal/models"
)

// Delimiter opens and closes a front matter block.
const Delimiter = "---"

var yamlFormat = frontmatter.NewFormat(Delimiter, Delimiter, yaml.Unmarshal)

var validate = validator.New()

// ParseError reports a content file whose front matter cannot be decoded.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: invalid front matter: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// HeaderError reports a front matter option that decoded but is out of range.
type HeaderError struct {
	Path    string
	Field   string
	Message string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%s: header %s: %s", e.Path, e.Field, e.Message)
}

// Parsed is the result of splitting one content file.
type Parsed struct {
	Header         models.Header
	Meta           map[string]interface{}
	Body           string
	HasFrontMatter bool
	BodyLine       int
}

// Parse reads a content file. file is only used in error messages.
func Parse(r io.Reader, file string) (*Parsed, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}

	var node yaml.Node
	body, err := frontmatter.MustParse(bytes.NewReader(raw), &node, yamlFormat)
	if errors.Is(err, frontmatter.ErrNotFound) {
		return &Parsed{Body: string(raw), BodyLine: 1}, nil
	}
	if err != nil {
		return nil, &ParseError{File: file, Err: err}
	}

	parsed := &Parsed{
		Body:           strings.TrimPrefix(string(body), "\n"),
		HasFrontMatter: true,
		Meta:           map[string]interface{}{},
	}
	parsed.BodyLine = bodyLine(string(raw), parsed.Body)
	if node.Kind == 0 {
		return parsed, nil
	}
	if err := node.Decode(&parsed.Header); err != nil {
		return nil, &ParseError{File: file, Err: err}
	}
	if err := node.Decode(&parsed.Meta); err != nil {
		return nil, &ParseError{File: file, Err: err}
	}
	return parsed, nil
}

// bodyLine returns the line of raw that body, a suffix of raw, starts on.
func bodyLine(raw, body string) int {
	if !strings.HasSuffix(raw, body) {
		return 1
	}
	return 1 + strings.Count(raw[:len(raw)-len(body)], "\n")
}

// ValidateHeader checks the decoded header against its field constraints.
func ValidateHeader(path string, h models.Header) []error {
	var errs []error
	if h.Date != nil && !h.Date.Valid() {
		errs = append(errs, &HeaderError{
			Path:    path,
			Field:   "date",
			Message: fmt.Sprintf("unrecognized date %q", h.Date.Raw),
		})
	}

	err := validate.Struct(h)
	if err == nil {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return append(errs, &HeaderError{Path: path, Field: "header", Message: err.Error()})
	}

	for _, fe := range fieldErrs {
		errs = append(errs, &HeaderError{
			Path:    path,
			Field:   headerField(fe.Namespace()),
			Message: describe(fe),
		})
	}
	return errs
}

func headerField(namespace string) string {
	switch namespace {
	case "Header.Hero.OverlayFilter":
		return "header.overlay_filter"
	}
	return strings.ToLower(strings.TrimPrefix(namespace, "Header."))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("must be >= %s, got %v", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be <= %s, got %v", fe.Param(), fe.Value())
	}
	return fmt.Sprintf("failed %s check", fe.Tag())
}
