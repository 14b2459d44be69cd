package shelf

import "log/slog"

// Option is a functional option for configuring a collection at Open time.
type Option func(*settings)

type settings struct {
	format    string
	bodyField string
	logger    *slog.Logger
	strict    bool
	recursive bool
	pattern   string
	exclude   []string
}

// WithFormat selects the file format by handler name ("yaml") or by
// extension ("yml", ".yml"). Without it the format is inferred from the
// files already in the directory, which fails if the directory holds
// none.
func WithFormat(format string) Option {
	return func(s *settings) {
		s.format = format
	}
}

// WithBodyField names the record field that body-splitting formats such
// as markdown store outside the structured section. Those formats
// refuse to open without it.
func WithBodyField(field string) Option {
	return func(s *settings) {
		s.bodyField = field
	}
}

// WithLogger routes skip warnings and watch diagnostics to l. The
// default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithStrictDecode makes iteration fail on the first undecodable file
// instead of skipping it with a warning.
func WithStrictDecode() Option {
	return func(s *settings) {
		s.strict = true
	}
}

// WithRecursive extends directory scans and watches into subdirectories.
func WithRecursive() Option {
	return func(s *settings) {
		s.recursive = true
	}
}

// WithNameFilter restricts membership to files whose base name matches
// pattern (filepath.Match syntax), on top of the handler's extensions.
func WithNameFilter(pattern string) Option {
	return func(s *settings) {
		s.pattern = pattern
	}
}

// withExclude drops files with the given base names from membership.
// Nested collections use it to keep a group's parent file out of the
// child collection when the two formats share an extension.
func withExclude(names ...string) Option {
	return func(s *settings) {
		s.exclude = append(s.exclude, names...)
	}
}
