// Package app implements the shelf CLI commands on top of the library.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tailscale/hujson"
	"golang.org/x/sync/errgroup"

	"github.com/starford/shelf"
	"github.com/starford/shelf/internal/manifest"
)

// App binds the manifest's named collections to the CLI commands.
// Records are handled schema-free as string-keyed maps.
type App struct {
	Manifest *manifest.Manifest
	Log      *slog.Logger
	Out      io.Writer
}

// New builds an App from a loaded manifest, installing a JSON logger
// on stderr at the manifest's level. Stdout stays reserved for data.
func New(m *manifest.Manifest) (*App, error) {
	level, err := m.Level()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return &App{Manifest: m, Log: logger, Out: os.Stdout}, nil
}

func (a *App) open(name string) (*shelf.Collection[map[string]any], error) {
	entry, ok := a.Manifest.Collections[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", name)
	}
	opts := []shelf.Option{shelf.WithLogger(a.Log)}
	if entry.Format != "" {
		opts = append(opts, shelf.WithFormat(entry.Format))
	}
	if entry.BodyField != "" {
		opts = append(opts, shelf.WithBodyField(entry.BodyField))
	}
	if entry.Pattern != "" {
		opts = append(opts, shelf.WithNameFilter(entry.Pattern))
	}
	if entry.Recursive {
		opts = append(opts, shelf.WithRecursive())
	}
	if entry.Strict {
		opts = append(opts, shelf.WithStrictDecode())
	}
	return shelf.Open[map[string]any](entry.Path, opts...)
}

// List prints one record per line: the filename, a tab, and the record
// as compact JSON. An order field sorts first; tail wins over head
// when both are set.
func (a *App) List(name, order string, head, tail int) error {
	coll, err := a.open(name)
	if err != nil {
		return err
	}
	q := coll.Query()
	if order != "" {
		q = q.OrderBy(order)
	}
	switch {
	case tail > 0:
		q = q.Tail(tail)
	case head > 0:
		q = q.Head(head)
	}
	recs, err := q.ToList()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("render record: %w", err)
		}
		var rel string
		if abs, ok := coll.PathFor(rec); ok {
			rel, _ = filepath.Rel(coll.Root(), abs)
		}
		fmt.Fprintf(a.Out, "%s\t%s\n", rel, line)
	}
	return nil
}

// Get prints one record as indented JSON.
func (a *App) Get(name, file string) error {
	coll, err := a.open(name)
	if err != nil {
		return err
	}
	rec, err := coll.Get(file)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", shelf.ErrNotFound, file)
	}
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("render record: %w", err)
	}
	fmt.Fprintln(a.Out, string(out))
	return nil
}

// Add stores a record given as JSON (comments and trailing commas
// tolerated) and prints the path it was written to. An empty file name
// lets the collection derive one.
func (a *App) Add(name, file, data string) error {
	coll, err := a.open(name)
	if err != nil {
		return err
	}
	std, err := hujson.Standardize([]byte(data))
	if err != nil {
		return fmt.Errorf("parse record: %w", err)
	}
	rec := map[string]any{}
	if err := json.Unmarshal(std, &rec); err != nil {
		return fmt.Errorf("parse record: %w", err)
	}

	var path string
	if file != "" {
		path, err = coll.AddAs(&rec, file)
	} else {
		path, err = coll.Add(&rec)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, path)
	return nil
}

// Remove deletes the named record file.
func (a *App) Remove(name, file string) error {
	coll, err := a.open(name)
	if err != nil {
		return err
	}
	return coll.Delete(file)
}

// Watch logs collection changes until the context is cancelled or a
// shutdown signal arrives.
func (a *App) Watch(ctx context.Context, name string) error {
	coll, err := a.open(name)
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	watchCtx, cancel := context.WithCancel(gCtx)
	defer cancel()

	g.Go(func() error {
		return coll.Watch(watchCtx, func(ev shelf.Event) {
			a.Log.Info("collection changed",
				slog.String("op", string(ev.Op)),
				slog.String("path", ev.Path))
		})
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			a.Log.Info("received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
		}
		cancel()
		return nil
	})

	return g.Wait()
}
