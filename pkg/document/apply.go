package document

import (
	"fmt"

	"github.com/goliatone/go-formchat/pkg/schema"
	"github.com/goliatone/go-formchat/pkg/validation"
)

// Apply writes value at path and returns the new document. The input snapshot
// is left untouched. Missing object keys along the path are created (an array
// when the following segment is an index, otherwise an object); missing array
// positions are an error at any depth. When validate is set the value is
// checked against the base field definition first and an invalid value aborts
// the mutation.
func Apply(doc map[string]any, path string, value any, form schema.Schema, validate bool) (map[string]any, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	if segments[0].IsIndex {
		return nil, mutationErr(path, segments[0].String(), "document root is not an array")
	}

	if validate {
		base := BaseName(path)
		if outcome := validation.ValidateField(base, value, form); !outcome.OK {
			return nil, &MutationError{Path: path, Segment: base, Reason: outcome.Reason, Err: ErrInvalidValue}
		}
	}

	root := shallowMap(doc)
	var current any = root
	for i, seg := range segments[:len(segments)-1] {
		next, err := descend(current, seg, segments[i+1], path)
		if err != nil {
			return nil, err
		}
		current = next
	}

	last := segments[len(segments)-1]
	written := CloneValue(value)
	switch container := current.(type) {
	case map[string]any:
		if last.IsIndex {
			return nil, mutationErr(path, last.String(), "expected array, got object")
		}
		container[last.Key] = written
	case []any:
		if !last.IsIndex {
			return nil, mutationErr(path, last.Key, "expected object, got array")
		}
		if last.Index >= len(container) {
			return nil, mutationErr(path, last.String(), "array index %d out of range (length: %d)", last.Index, len(container))
		}
		container[last.Index] = written
	default:
		return nil, mutationErr(path, last.String(), "cannot write into %s", kindOf(current))
	}
	return root, nil
}

// descend steps into seg of the already copied container current, copying
// the child (or creating it) so the caller may write into it.
func descend(current any, seg, next Segment, path string) (any, error) {
	switch container := current.(type) {
	case map[string]any:
		if seg.IsIndex {
			return nil, mutationErr(path, seg.String(), "expected array, got object")
		}
		child, ok := container[seg.Key]
		if !ok || child == nil {
			var created any = map[string]any{}
			if next.IsIndex {
				created = []any{}
			}
			container[seg.Key] = created
			return created, nil
		}
		copied, err := shallowContainer(child, seg, path)
		if err != nil {
			return nil, err
		}
		container[seg.Key] = copied
		return copied, nil
	case []any:
		if !seg.IsIndex {
			return nil, mutationErr(path, seg.Key, "expected object, got array")
		}
		if seg.Index >= len(container) {
			return nil, mutationErr(path, seg.String(), "array index %d out of range (length: %d)", seg.Index, len(container))
		}
		copied, err := shallowContainer(container[seg.Index], seg, path)
		if err != nil {
			return nil, err
		}
		container[seg.Index] = copied
		return copied, nil
	default:
		return nil, mutationErr(path, seg.String(), "cannot descend into %s", kindOf(current))
	}
}

func shallowContainer(value any, seg Segment, path string) (any, error) {
	switch typed := value.(type) {
	case map[string]any:
		return shallowMap(typed), nil
	case []any:
		return append([]any(nil), typed...), nil
	default:
		return nil, mutationErr(path, seg.String(), "cannot descend into %s", kindOf(value))
	}
}

func shallowMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for key, value := range in {
		out[key] = value
	}
	return out
}

// Get reads the value stored at path.
func Get(doc map[string]any, path string) (any, bool) {
	segments, err := ParsePath(path)
	if err != nil {
		return nil, false
	}
	var current any = doc
	for _, seg := range segments {
		switch container := current.(type) {
		case map[string]any:
			if seg.IsIndex {
				return nil, false
			}
			value, ok := container[seg.Key]
			if !ok {
				return nil, false
			}
			current = value
		case []any:
			if !seg.IsIndex || seg.Index >= len(container) {
				return nil, false
			}
			current = container[seg.Index]
		default:
			return nil, false
		}
	}
	return current, true
}

// Clone deep copies a document. A nil document clones to an empty one.
func Clone(doc map[string]any) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	return CloneValue(doc).(map[string]any)
}

// CloneValue deep copies maps and slices inside a JSON-shaped value.
func CloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			out[key] = CloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for idx, val := range typed {
			out[idx] = CloneValue(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(typed))
		for idx, val := range typed {
			out[idx] = CloneValue(val)
		}
		return out
	case []string:
		out := make([]any, len(typed))
		for idx, val := range typed {
			out[idx] = val
		}
		return out
	default:
		return typed
	}
}

func kindOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", value)
	}
}
