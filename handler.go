package shelf

// HandlerOptions carries per-collection settings into a FileHandler.
// Handlers that do not split a body ignore it.
type HandlerOptions struct {
	// BodyField names the record field that holds free-form content for
	// formats that store it outside the structured section.
	BodyField string
}

// FileHandler converts between raw file bytes and records. Implementations
// must be stateless: the same handler instance is shared by every
// collection that selects it.
type FileHandler interface {
	// Name is the canonical format name, lower case ("json", "yaml", ...).
	Name() string

	// Extensions lists the filename extensions the handler claims,
	// including the leading dot. The first entry is used when the
	// collection derives filenames.
	Extensions() []string

	// Decode parses data into v, a pointer to a record.
	Decode(data []byte, v any, opts HandlerOptions) error

	// Encode renders v into the bytes that will be written to disk.
	// Encode(v) followed by Decode must reproduce an equal record.
	Encode(v any, opts HandlerOptions) ([]byte, error)
}

// BodySplitter is implemented by handlers that store one record field as
// a raw body outside the structured section. Collections using such a
// handler must be opened with WithBodyField.
type BodySplitter interface {
	SplitsBody() bool
}

// splitsBody reports whether h requires a configured body field.
func splitsBody(h FileHandler) bool {
	s, ok := h.(BodySplitter)
	return ok && s.SplitsBody()
}
