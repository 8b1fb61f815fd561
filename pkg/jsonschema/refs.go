package jsonschema

import (
	"fmt"
	"strconv"
	"strings"
)

const maxRefDepth = 64

// resolveLocalRefs inlines document-local "#/..." refs. Remote refs are not
// supported; form schemas are expected to be self-contained.
func resolveLocalRefs(payload map[string]any) (map[string]any, error) {
	state := &refState{inStack: make(map[string]struct{})}
	resolved, err := state.resolve(payload, payload)
	if err != nil {
		return nil, err
	}
	out, ok := resolved.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("jsonschema: resolved root is not an object")
	}
	return out, nil
}

type refState struct {
	depth   int
	inStack map[string]struct{}
}

func (s *refState) resolve(root map[string]any, node any) (any, error) {
	switch typed := node.(type) {
	case map[string]any:
		if ref := strings.TrimSpace(readString(typed, "$ref")); ref != "" {
			if !strings.HasPrefix(ref, "#") {
				return nil, fmt.Errorf("jsonschema: remote $ref %q is not supported", ref)
			}
			if s.depth >= maxRefDepth {
				return nil, fmt.Errorf("jsonschema: ref depth exceeds %d", maxRefDepth)
			}
			if _, cyclic := s.inStack[ref]; cyclic {
				return nil, fmt.Errorf("jsonschema: ref cycle detected at %s", ref)
			}
			target, err := resolvePointer(root, strings.TrimPrefix(ref, "#"))
			if err != nil {
				return nil, err
			}
			merged, err := mergeRefTarget(target, typed)
			if err != nil {
				return nil, err
			}
			s.inStack[ref] = struct{}{}
			s.depth++
			resolved, err := s.resolve(root, merged)
			s.depth--
			delete(s.inStack, ref)
			return resolved, err
		}

		out := make(map[string]any, len(typed))
		for key, value := range typed {
			// Definitions are only reachable through refs.
			if key == "$defs" || key == "definitions" {
				continue
			}
			resolved, err := s.resolve(root, value)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(typed))
		for idx, value := range typed {
			resolved, err := s.resolve(root, value)
			if err != nil {
				return nil, err
			}
			out[idx] = resolved
		}
		return out, nil
	default:
		return typed, nil
	}
}

func resolvePointer(root any, pointer string) (any, error) {
	if pointer == "" {
		return cloneAny(root), nil
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, fmt.Errorf("jsonschema: invalid json pointer %q", pointer)
	}

	current := root
	for _, part := range strings.Split(pointer, "/")[1:] {
		decoded := strings.ReplaceAll(part, "~1", "/")
		decoded = strings.ReplaceAll(decoded, "~0", "~")

		switch typed := current.(type) {
		case map[string]any:
			value, ok := typed[decoded]
			if !ok {
				return nil, fmt.Errorf("jsonschema: pointer %q not found", pointer)
			}
			current = value
		case []any:
			idx, err := strconv.Atoi(decoded)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, fmt.Errorf("jsonschema: pointer %q out of range", pointer)
			}
			current = typed[idx]
		default:
			return nil, fmt.Errorf("jsonschema: pointer %q invalid", pointer)
		}
	}
	return cloneAny(current), nil
}

// mergeRefTarget copies annotation siblings of a $ref onto its target so a
// field can reuse a definition under its own title.
func mergeRefTarget(target any, refObj map[string]any) (any, error) {
	mergedMap, ok := target.(map[string]any)
	if !ok {
		for key := range refObj {
			if key != "$ref" {
				return nil, fmt.Errorf("jsonschema: $ref target is not an object")
			}
		}
		return target, nil
	}
	for key, value := range refObj {
		if key == "$ref" {
			continue
		}
		switch {
		case key == "title", key == "description", key == "default", isVendorExtension(key):
			mergedMap[key] = value
		default:
			return nil, fmt.Errorf("jsonschema: unsupported $ref sibling %q", key)
		}
	}
	return mergedMap, nil
}

func cloneAny(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			out[key] = cloneAny(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for idx, val := range typed {
			out[idx] = cloneAny(val)
		}
		return out
	default:
		return typed
	}
}
