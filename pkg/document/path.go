package document

import (
	"strconv"
	"strings"
)

// Segment is one addressing step of a field path.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

func (s Segment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Key
}

// ParsePath splits a field path into segments. Brackets are treated as dot
// delimiters, so "a.b[2].c" and "a.b.2.c" are equivalent. A segment made only
// of ASCII digits is an array index.
func ParsePath(path string) ([]Segment, error) {
	if strings.TrimSpace(path) == "" {
		return nil, mutationErr(path, "", "path is empty")
	}
	normalized := strings.ReplaceAll(path, "[", ".")
	normalized = strings.ReplaceAll(normalized, "]", "")

	parts := strings.Split(normalized, ".")
	segments := make([]Segment, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, mutationErr(path, part, "path contains an empty segment")
		}
		if isDigits(part) {
			idx, err := strconv.Atoi(part)
			if err != nil {
				return nil, mutationErr(path, part, "index is not addressable")
			}
			segments = append(segments, Segment{Index: idx, IsIndex: true})
			continue
		}
		segments = append(segments, Segment{Key: part})
	}
	return segments, nil
}

// BaseName returns the portion of the path before the first bracket, the
// name the schema validator checks a mutation against.
func BaseName(path string) string {
	if idx := strings.IndexByte(path, '['); idx >= 0 {
		return path[:idx]
	}
	return path
}

// RootField returns the top-level document key a path writes under.
func RootField(path string) string {
	base := BaseName(path)
	if idx := strings.IndexByte(base, '.'); idx >= 0 {
		return base[:idx]
	}
	return base
}

func isDigits(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return value != ""
}
