package shelf

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"weak"

	"github.com/starford/shelf/internal/fsx"
)

// Collection manages one directory of record files: every member file
// shares one format, decodes into one record type T, and is read and
// written through blocking, synchronous calls. There is no cache; every
// scan and every query terminal reflects the directory as it is on disk
// at that moment.
//
// T must be a struct type or a string-keyed map type. Records move
// through the API as *T.
type Collection[T any] struct {
	root      string // absolute path to the collection directory
	handler   FileHandler
	bodyField string
	log       *slog.Logger
	strict    bool
	recursive bool
	pattern   string
	exclude   []string

	// tracked maps live records to the absolute path they were loaded
	// from or last written to. Weak pointers keep the map from pinning
	// records the caller has already dropped.
	tracked map[weak.Pointer[T]]string
}

// Open prepares the directory at path as a collection of T records,
// creating it if absent. The format comes from WithFormat or, failing
// that, is inferred from the files already present; an empty directory
// with no explicit format fails with ErrConfiguration, as does a
// body-splitting format without WithBodyField.
func Open[T any](path string, opts ...Option) (*Collection[T], error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	recordType := reflect.TypeFor[T]()
	if err := checkRecordType(recordType); err != nil {
		return nil, err
	}
	if s.pattern != "" {
		if _, err := filepath.Match(s.pattern, "probe"); err != nil {
			return nil, fmt.Errorf("%w: bad name filter %q: %v", ErrConfiguration, s.pattern, err)
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("shelf: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("shelf: create root: %w", err)
	}

	c := &Collection[T]{
		root:      abs,
		bodyField: s.bodyField,
		log:       s.logger,
		strict:    s.strict,
		recursive: s.recursive,
		pattern:   s.pattern,
		exclude:   s.exclude,
		tracked:   make(map[weak.Pointer[T]]string),
	}

	if s.format != "" {
		h, ok := handlerByFormat(s.format)
		if !ok {
			return nil, fmt.Errorf("%w: unknown format %q", ErrConfiguration, s.format)
		}
		c.handler = h
	} else {
		h, err := c.inferHandler()
		if err != nil {
			return nil, err
		}
		c.handler = h
	}

	if splitsBody(c.handler) {
		if c.bodyField == "" {
			return nil, fmt.Errorf("%w: format %q needs WithBodyField", ErrConfiguration, c.handler.Name())
		}
		if err := checkBodyField(recordType, c.bodyField); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Root returns the absolute path of the collection directory.
func (c *Collection[T]) Root() string { return c.root }

// Handler returns the resolved file handler.
func (c *Collection[T]) Handler() FileHandler { return c.handler }

// inferHandler derives the handler from extensions already on disk.
// Files with unrecognized extensions are ignored; recognizable files of
// more than one format make the directory ambiguous.
func (c *Collection[T]) inferHandler() (FileHandler, error) {
	names, err := c.listFiles(nil)
	if err != nil {
		return nil, err
	}
	found := make(map[string]FileHandler)
	for _, name := range names {
		ext := filepath.Ext(name)
		if ext == "" {
			continue
		}
		if h, ok := handlerByExtension(ext); ok {
			found[h.Name()] = h
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: cannot infer a format for %s: no recognizable files; pass WithFormat", ErrConfiguration, c.root)
	case 1:
		for _, h := range found {
			return h, nil
		}
	}
	formats := make([]string, 0, len(found))
	for name := range found {
		formats = append(formats, name)
	}
	sort.Strings(formats)
	return nil, fmt.Errorf("%w: directory %s mixes formats (%s); pass WithFormat", ErrConfiguration, c.root, strings.Join(formats, ", "))
}

// listFiles returns the names (relative to root) of files passing the
// name filter and the given membership check, in sorted order.
func (c *Collection[T]) listFiles(member func(base string) bool) ([]string, error) {
	var names []string
	keep := func(base string) bool {
		if c.pattern != "" {
			ok, err := filepath.Match(c.pattern, base)
			if err != nil || !ok {
				return false
			}
		}
		return member == nil || member(base)
	}
	if c.recursive {
		err := filepath.WalkDir(c.root, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !keep(d.Name()) {
				return nil
			}
			rel, err := filepath.Rel(c.root, p)
			if err != nil {
				return err
			}
			names = append(names, rel)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("shelf: scan %s: %w", c.root, err)
		}
	} else {
		entries, err := os.ReadDir(c.root)
		if err != nil {
			return nil, fmt.Errorf("shelf: scan %s: %w", c.root, err)
		}
		for _, e := range entries {
			if e.IsDir() || !keep(e.Name()) {
				continue
			}
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// scan lists the current member files of the collection.
func (c *Collection[T]) scan() ([]string, error) {
	return c.listFiles(func(base string) bool {
		return ownsExtension(c.handler, filepath.Ext(base)) && !c.excluded(base)
	})
}

func (c *Collection[T]) excluded(base string) bool {
	for _, name := range c.exclude {
		if base == name {
			return true
		}
	}
	return false
}

// member reports whether a base filename belongs to the collection:
// owned extension, not excluded, plus the optional name filter.
func (c *Collection[T]) member(base string) bool {
	if !ownsExtension(c.handler, filepath.Ext(base)) || c.excluded(base) {
		return false
	}
	if c.pattern == "" {
		return true
	}
	ok, err := filepath.Match(c.pattern, base)
	return err == nil && ok
}

func (c *Collection[T]) handlerOptions() HandlerOptions {
	return HandlerOptions{BodyField: c.bodyField}
}

// load reads and decodes one file, validates the record when it
// implements Validate() error, and tracks its path.
func (c *Collection[T]) load(abs string) (*T, error) {
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("shelf: read %s: %w", abs, err)
	}
	rec := new(T)
	if err := c.handler.Decode(data, rec, c.handlerOptions()); err != nil {
		return nil, decodeErr(abs, err)
	}
	if v, ok := any(rec).(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, decodeErr(abs, err)
		}
	}
	c.remember(rec, abs)
	return rec, nil
}

// write encodes rec and atomically replaces the file at abs.
func (c *Collection[T]) write(rec *T, abs string) error {
	data, err := c.handler.Encode(rec, c.handlerOptions())
	if err != nil {
		return fmt.Errorf("shelf: encode %s: %w", abs, err)
	}
	if err := fsx.WriteFile(abs, data); err != nil {
		return err
	}
	c.remember(rec, abs)
	return nil
}

// remember associates rec with abs for later PathFor/Update/Delete
// calls. Entries whose records have been collected are swept here, so
// the map stays bounded by the number of live records.
func (c *Collection[T]) remember(rec *T, abs string) {
	for wp := range c.tracked {
		if wp.Value() == nil {
			delete(c.tracked, wp)
		}
	}
	c.tracked[weak.Make(rec)] = abs
}

// trackedPath returns the path rec was loaded from or last written to.
func (c *Collection[T]) trackedPath(rec *T) (string, bool) {
	if rec == nil {
		return "", false
	}
	abs, ok := c.tracked[weak.Make(rec)]
	return abs, ok
}

// PathFor reports the absolute path behind rec, if this collection
// loaded or wrote it. Records never seen by the collection have none.
func (c *Collection[T]) PathFor(rec *T) (string, bool) {
	return c.trackedPath(rec)
}

// Add writes rec to a new file and returns its absolute path. The
// filename derives from the record's identity fields (slug, id, name,
// title; first non-zero wins) or a random token; use AddAs to pick the
// name yourself. An occupied filename fails with ErrAlreadyExists:
// overwriting is reserved for Update and Upsert.
func (c *Collection[T]) Add(rec *T) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("%w: nil record", ErrInvalidArgument)
	}
	return c.addAt(rec, deriveFilename(rec, primaryExtension(c.handler)))
}

// AddAs writes rec to the named file: a name relative to the
// collection root, or an absolute path inside it. Like Add it refuses
// to overwrite.
func (c *Collection[T]) AddAs(rec *T, name string) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("%w: nil record", ErrInvalidArgument)
	}
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}
	return c.addAt(rec, name)
}

// resolveName maps a file name to its absolute path. Bare names and
// root-relative paths join onto the root; absolute paths are accepted
// only when they already point inside it.
func (c *Collection[T]) resolveName(name string) (string, error) {
	if filepath.IsAbs(name) {
		abs := filepath.Clean(name)
		rel, err := filepath.Rel(c.root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			return "", fmt.Errorf("%w: path outside collection: %s", ErrInvalidArgument, name)
		}
		return abs, nil
	}
	abs, err := fsx.Resolve(c.root, name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return abs, nil
}

func (c *Collection[T]) addAt(rec *T, name string) (string, error) {
	abs, err := c.resolveName(name)
	if err != nil {
		return "", err
	}
	exists, err := fsx.Exists(abs)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	if err := c.write(rec, abs); err != nil {
		return "", err
	}
	return abs, nil
}

// Update overwrites the file rec was loaded from or last written to.
// A record without a tracked path, or whose file is gone, fails with
// ErrNotFound.
func (c *Collection[T]) Update(rec *T) (string, error) {
	abs, ok := c.trackedPath(rec)
	if !ok {
		return "", fmt.Errorf("%w: record has no path; add it first", ErrNotFound)
	}
	exists, err := fsx.Exists(abs)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrNotFound, abs)
	}
	if err := c.write(rec, abs); err != nil {
		return "", err
	}
	return abs, nil
}

// Upsert updates rec in place when it has a live file, and otherwise
// adds it under a derived name, suffixing -1, -2, ... until the name is
// free. It never fails with ErrAlreadyExists.
func (c *Collection[T]) Upsert(rec *T) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("%w: nil record", ErrInvalidArgument)
	}
	if abs, ok := c.trackedPath(rec); ok {
		exists, err := fsx.Exists(abs)
		if err != nil {
			return "", err
		}
		if exists {
			if err := c.write(rec, abs); err != nil {
				return "", err
			}
			return abs, nil
		}
	}
	name, err := c.uniqueName(deriveFilename(rec, primaryExtension(c.handler)))
	if err != nil {
		return "", err
	}
	return c.addAt(rec, name)
}

// uniqueName suffixes the stem with -1, -2, ... until no file claims it.
func (c *Collection[T]) uniqueName(name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; ; i++ {
		abs, err := fsx.Resolve(c.root, candidate)
		if err != nil {
			return "", err
		}
		exists, err := fsx.Exists(abs)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
}

// Delete removes the file behind target: a *T previously loaded or
// written through this collection, or a filename (relative to the root)
// or absolute path inside it. Deleting an absent file fails with
// ErrNotFound, the second of two back-to-back deletes included.
func (c *Collection[T]) Delete(target any) error {
	abs, err := c.resolveTarget(target)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, abs)
		}
		return fmt.Errorf("shelf: delete %s: %w", abs, err)
	}
	return nil
}

func (c *Collection[T]) resolveTarget(target any) (string, error) {
	switch t := target.(type) {
	case *T:
		abs, ok := c.trackedPath(t)
		if !ok {
			return "", fmt.Errorf("%w: record has no path", ErrNotFound)
		}
		return abs, nil
	case string:
		return c.resolveName(t)
	}
	return "", fmt.Errorf("%w: target must be a record or a path, got %T", ErrInvalidArgument, target)
}

// Refresh re-reads rec's file and returns a new record reflecting the
// current disk content. The passed-in record is not mutated. A record
// whose file is gone fails with ErrNotFound.
func (c *Collection[T]) Refresh(rec *T) (*T, error) {
	abs, ok := c.trackedPath(rec)
	if !ok {
		return nil, fmt.Errorf("%w: record has no path", ErrNotFound)
	}
	fresh, err := c.load(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, abs)
		}
		return nil, err
	}
	return fresh, nil
}

// Get loads the named file directly, without scanning the directory.
// The name may be relative to the root or an absolute path inside it.
// Absent files, non-files, and names that are not collection members
// (foreign extension or filtered out) return (nil, nil). Decode
// failures are returned even in lax mode: the caller asked for this
// specific file.
func (c *Collection[T]) Get(name string) (*T, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}
	if !c.member(filepath.Base(name)) {
		return nil, nil
	}
	abs, err := c.resolveName(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("shelf: stat %s: %w", abs, err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil
	}
	rec, err := c.load(abs)
	if err != nil {
		// Deleted between stat and read: an absent file, not a failure.
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// All returns the collection as a lazy sequence in filename order. Each
// range over it re-scans the directory, so a fresh pass always reflects
// current disk state. Files the handler cannot decode are skipped with
// a warning unless the collection was opened with WithStrictDecode.
func (c *Collection[T]) All() iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		names, err := c.scan()
		if err != nil {
			yield(nil, err)
			return
		}
		for _, name := range names {
			rec, err := c.load(filepath.Join(c.root, name))
			if err != nil {
				// Deleted between scan and read: a fresh pass would
				// not list it, so this one does not either.
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				var de *DecodeError
				if !c.strict && errors.As(err, &de) {
					c.log.Warn("shelf: skipping undecodable file",
						slog.String("path", de.Path),
						slog.String("error", de.Err.Error()))
					continue
				}
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Query starts an empty query over the collection. Chaining methods
// never touch the disk; only terminals do.
func (c *Collection[T]) Query() *Query[T] {
	return &Query[T]{coll: c}
}

// Filter is shorthand for Query().Filter(pred).
func (c *Collection[T]) Filter(pred func(*T) bool) *Query[T] {
	return c.Query().Filter(pred)
}

// OrderBy is shorthand for Query().OrderBy(field).
func (c *Collection[T]) OrderBy(field string) *Query[T] {
	return c.Query().OrderBy(field)
}

// Head is shorthand for Query().Head(n).
func (c *Collection[T]) Head(n int) *Query[T] {
	return c.Query().Head(n)
}

// Tail is shorthand for Query().Tail(n).
func (c *Collection[T]) Tail(n int) *Query[T] {
	return c.Query().Tail(n)
}

// ToList is shorthand for Query().ToList().
func (c *Collection[T]) ToList() ([]*T, error) {
	return c.Query().ToList()
}

// Count is shorthand for Query().Count().
func (c *Collection[T]) Count() (int, error) {
	return c.Query().Count()
}

// First is shorthand for Query().First().
func (c *Collection[T]) First() (*T, error) {
	return c.Query().First()
}

// Last is shorthand for Query().Last().
func (c *Collection[T]) Last() (*T, error) {
	return c.Query().Last()
}

// Exists is shorthand for Query().Exists(preds...).
func (c *Collection[T]) Exists(preds ...func(*T) bool) (bool, error) {
	return c.Query().Exists(preds...)
}
