// Package input decodes the JSON documents the CLI reads: ensembles,
// gridded fields and Eady input bundles. A path of "-" reads stdin.
package input

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/panbanda/climdiag/pkg/eady"
	"github.com/panbanda/climdiag/pkg/ensemble"
	"github.com/panbanda/climdiag/pkg/grid"
)

// Document is a decoded input and the raw bytes it came from, kept so
// callers can hash the content for caching.
type Document[T any] struct {
	Path  string
	Raw   []byte
	Value T
}

// Read loads path (or stdin for "-") and decodes it into T, rejecting
// unknown fields.
func Read[T any](path string, stdin io.Reader) (*Document[T], error) {
	raw, err := readAll(path, stdin)
	if err != nil {
		return nil, err
	}
	doc := &Document[T]{Path: path, Raw: raw}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc.Value); err != nil {
		return nil, fmt.Errorf("decode %s: %w", displayName(path), err)
	}
	return doc, nil
}

func readAll(path string, stdin io.Reader) ([]byte, error) {
	if path == "" {
		return nil, errors.New("no input file given")
	}
	if path == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func displayName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return path
}

// Ensemble reads and validates an ensemble document.
func Ensemble(path string, stdin io.Reader) (*Document[ensemble.Ensemble], error) {
	doc, err := Read[ensemble.Ensemble](path, stdin)
	if err != nil {
		return nil, err
	}
	if err := doc.Value.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", displayName(path), err)
	}
	return doc, nil
}

// Field reads a gridded field. Shape validation happens while decoding.
func Field(path string, stdin io.Reader) (*Document[grid.Field], error) {
	return Read[grid.Field](path, stdin)
}

// Eady reads an Eady input bundle of ta, zg, ua, plev and lat.
func Eady(path string, stdin io.Reader) (*Document[eady.Input], error) {
	doc, err := Read[eady.Input](path, stdin)
	if err != nil {
		return nil, err
	}
	if doc.Value.Alias == "" && path != "-" {
		doc.Value.Alias = path
	}
	return doc, nil
}

// Floats parses a comma separated list of numbers such as "10,20,30".
func Floats(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
