package shelf

import (
	"fmt"
	"strings"
)

// registration pairs a handler with its origin. Built-in handlers sit at
// the front of the table, so a plain ordered scan gives them precedence
// over external ones, and earlier external registrations precedence over
// later ones claiming the same extension.
type registration struct {
	handler FileHandler
	builtin bool
}

var handlerTable = builtinHandlers()

func builtinHandlers() []registration {
	return []registration{
		{handler: jsonHandler{}, builtin: true},
		{handler: yamlHandler{}, builtin: true},
		{handler: markdownHandler{}, builtin: true},
	}
}

// Register makes h available for format selection and extension
// inference in collections opened afterwards. Handlers must present a
// non-empty name and at least one extension. Register is meant to be
// called during program initialization, before collections are opened;
// it is not safe for concurrent use.
func Register(h FileHandler) error {
	if h == nil {
		return fmt.Errorf("%w: nil handler", ErrInvalidArgument)
	}
	if strings.TrimSpace(h.Name()) == "" {
		return fmt.Errorf("%w: handler has no name", ErrInvalidArgument)
	}
	if len(h.Extensions()) == 0 {
		return fmt.Errorf("%w: handler %q claims no extensions", ErrInvalidArgument, h.Name())
	}
	for _, ext := range h.Extensions() {
		if normalizeExt(ext) == "." {
			return fmt.Errorf("%w: handler %q claims an empty extension", ErrInvalidArgument, h.Name())
		}
	}
	handlerTable = append(handlerTable, registration{handler: h})
	return nil
}

// normalizeExt lower-cases ext and guarantees a leading dot, so ".MD",
// "md" and ".md" all address the same handler.
func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// handlerByFormat resolves a format selector: a handler name ("yaml") or
// an extension ("yml", ".yml"). The scan order encodes precedence.
func handlerByFormat(selector string) (FileHandler, bool) {
	name := strings.ToLower(strings.TrimSpace(selector))
	if name == "" {
		return nil, false
	}
	for _, reg := range handlerTable {
		if reg.handler.Name() == name {
			return reg.handler, true
		}
	}
	return handlerByExtension(name)
}

// handlerByExtension resolves a filename extension to the handler that
// owns it, honoring built-in-first precedence.
func handlerByExtension(ext string) (FileHandler, bool) {
	ext = normalizeExt(ext)
	for _, reg := range handlerTable {
		for _, owned := range reg.handler.Extensions() {
			if normalizeExt(owned) == ext {
				return reg.handler, true
			}
		}
	}
	return nil, false
}

// ownsExtension reports whether ext belongs to h.
func ownsExtension(h FileHandler, ext string) bool {
	ext = normalizeExt(ext)
	for _, owned := range h.Extensions() {
		if normalizeExt(owned) == ext {
			return true
		}
	}
	return false
}

// primaryExtension is the extension used when deriving filenames.
func primaryExtension(h FileHandler) string {
	return normalizeExt(h.Extensions()[0])
}
