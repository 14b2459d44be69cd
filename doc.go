// Package shelf stores collections of records as individual files in a
// directory: one record per file, one format per collection. Records
// are plain structs or string-keyed maps; the built-in formats are
// JSON, YAML, and Markdown with YAML frontmatter. Further formats plug
// in through Register, including the bundled MessagePack handler.
//
// The package deliberately keeps no cache: every query terminal and
// every fresh iteration re-reads the directory, so results always
// reflect current disk state. All I/O is blocking and synchronous, and
// writes replace files atomically via rename. Nothing here coordinates
// concurrent writers; callers needing that bring their own locking.
package shelf
