package shelf

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/shelf/internal/fsx"
)

// NestedConfig configures a NestedCollection. Root, ParentFilename,
// ParentFormat and ChildFormat are required; ChildBodyField is required
// when the child format splits a body; ChildPattern optionally narrows
// which sibling files count as children.
type NestedConfig struct {
	Root           string
	ParentFilename string
	ParentFormat   string
	ChildFormat    string
	ChildBodyField string
	ChildPattern   string
	Strict         bool
	Logger         *slog.Logger
}

// Validate checks the required configuration fields.
func (c NestedConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.ParentFilename, validation.Required),
		validation.Field(&c.ParentFormat, validation.Required),
		validation.Field(&c.ChildFormat, validation.Required),
	)
}

// NestedCollection presents one record group per subdirectory of a
// root: a parent record file plus the child records sitting next to it.
// P is the parent record type, C the child record type.
type NestedCollection[P, C any] struct {
	cfg  NestedConfig
	root string // absolute
	log  *slog.Logger
}

// NestedRecord aggregates one subdirectory: the decoded parent record,
// the children loaded at assembly time, and the two collections scoped
// to the subdirectory for further reads and writes. Parent and child
// writes are independent operations; nothing makes them transactional,
// so a crash between the two can leave a group with one but not the
// other.
type NestedRecord[P, C any] struct {
	Dir         string // absolute path of the subdirectory
	Info        *P
	Children    []*C
	ParentStore *Collection[P]
	ChildStore  *Collection[C]
}

// Nested opens cfg.Root as a nested collection, creating the directory
// if absent. Formats are resolved eagerly, so a bad configuration fails
// here rather than on first iteration.
func Nested[P, C any](cfg NestedConfig) (*NestedCollection[P, C], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := checkRecordType(reflect.TypeFor[P]()); err != nil {
		return nil, err
	}
	if err := checkRecordType(reflect.TypeFor[C]()); err != nil {
		return nil, err
	}

	parentHandler, ok := handlerByFormat(cfg.ParentFormat)
	if !ok {
		return nil, fmt.Errorf("%w: unknown parent format %q", ErrConfiguration, cfg.ParentFormat)
	}
	if !ownsExtension(parentHandler, filepath.Ext(cfg.ParentFilename)) {
		return nil, fmt.Errorf("%w: parent filename %q does not match format %q", ErrConfiguration, cfg.ParentFilename, cfg.ParentFormat)
	}
	if splitsBody(parentHandler) {
		return nil, fmt.Errorf("%w: parent format %q splits a body; nested parents cannot carry one", ErrConfiguration, cfg.ParentFormat)
	}
	childHandler, ok := handlerByFormat(cfg.ChildFormat)
	if !ok {
		return nil, fmt.Errorf("%w: unknown child format %q", ErrConfiguration, cfg.ChildFormat)
	}
	if splitsBody(childHandler) {
		if cfg.ChildBodyField == "" {
			return nil, fmt.Errorf("%w: child format %q needs ChildBodyField", ErrConfiguration, cfg.ChildFormat)
		}
		if err := checkBodyField(reflect.TypeFor[C](), cfg.ChildBodyField); err != nil {
			return nil, err
		}
	}

	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("shelf: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("shelf: create root: %w", err)
	}
	return &NestedCollection[P, C]{cfg: cfg, root: abs, log: cfg.Logger}, nil
}

// Root returns the absolute path of the nested collection root.
func (n *NestedCollection[P, C]) Root() string { return n.root }

// loadDir assembles the aggregate for one subdirectory. A subdirectory
// without the parent file is not a group and comes back (nil, nil).
func (n *NestedCollection[P, C]) loadDir(dir string) (*NestedRecord[P, C], error) {
	popts := []Option{WithFormat(n.cfg.ParentFormat), WithLogger(n.log)}
	if n.cfg.Strict {
		popts = append(popts, WithStrictDecode())
	}
	parents, err := Open[P](dir, popts...)
	if err != nil {
		return nil, err
	}
	info, err := parents.Get(n.cfg.ParentFilename)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}

	// The parent file is the group's metadata, never one of its
	// children, even when the two formats share an extension.
	copts := []Option{WithFormat(n.cfg.ChildFormat), WithLogger(n.log), withExclude(n.cfg.ParentFilename)}
	if n.cfg.ChildBodyField != "" {
		copts = append(copts, WithBodyField(n.cfg.ChildBodyField))
	}
	if n.cfg.ChildPattern != "" {
		copts = append(copts, WithNameFilter(n.cfg.ChildPattern))
	}
	if n.cfg.Strict {
		copts = append(copts, WithStrictDecode())
	}
	children, err := Open[C](dir, copts...)
	if err != nil {
		return nil, err
	}
	recs, err := children.ToList()
	if err != nil {
		return nil, err
	}
	return &NestedRecord[P, C]{
		Dir:         dir,
		Info:        info,
		Children:    recs,
		ParentStore: parents,
		ChildStore:  children,
	}, nil
}

// All yields one aggregate per immediate subdirectory of the root that
// contains the parent file, in sorted directory order. Subdirectories
// without the parent file are skipped silently; groups whose parent
// fails to decode are skipped with a warning unless Strict is set.
func (n *NestedCollection[P, C]) All() iter.Seq2[*NestedRecord[P, C], error] {
	return func(yield func(*NestedRecord[P, C], error) bool) {
		entries, err := os.ReadDir(n.root)
		if err != nil {
			yield(nil, fmt.Errorf("shelf: scan %s: %w", n.root, err))
			return
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			rec, err := n.loadDir(filepath.Join(n.root, e.Name()))
			if err != nil {
				var de *DecodeError
				if !n.cfg.Strict && errors.As(err, &de) {
					n.log.Warn("shelf: skipping group with undecodable parent",
						slog.String("path", de.Path),
						slog.String("error", de.Err.Error()))
					continue
				}
				yield(nil, err)
				return
			}
			if rec == nil {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// List materializes every group, in the same order All yields them.
func (n *NestedCollection[P, C]) List() ([]*NestedRecord[P, C], error) {
	var out []*NestedRecord[P, C]
	for rec, err := range n.All() {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get loads the group in the named subdirectory. A missing directory or
// a directory without the parent file returns (nil, nil); a parent that
// fails to decode is an error even without Strict, since the caller
// asked for this specific group.
func (n *NestedCollection[P, C]) Get(name string) (*NestedRecord[P, C], error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}
	dir, err := fsx.Resolve(n.root, name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("shelf: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, nil
	}
	return n.loadDir(dir)
}

// Refresh re-assembles rec's group from disk. A group whose directory
// or parent file is gone fails with ErrNotFound.
func (n *NestedCollection[P, C]) Refresh(rec *NestedRecord[P, C]) (*NestedRecord[P, C], error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil group", ErrInvalidArgument)
	}
	fresh, err := n.loadDir(rec.Dir)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rec.Dir)
	}
	return fresh, nil
}
