package shelf

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowers s and collapses every run of non-alphanumeric characters
// into a single hyphen. An input with nothing usable becomes "item".
func slugify(s string) string {
	s = slugPattern.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "item"
	}
	return s
}

// identityFields are probed in order when deriving a filename for a
// record that was never loaded from disk.
var identityFields = [...]string{"slug", "id", "name", "title"}

// identitySource returns the first non-zero identity-like field of rec,
// rendered as a string.
func identitySource(rec any) (string, bool) {
	for _, field := range identityFields {
		v, ok := fieldValue(rec, field)
		if !ok || v == nil {
			continue
		}
		if rv := reflect.ValueOf(v); rv.IsZero() {
			continue
		}
		if s := fmt.Sprint(v); s != "" {
			return s, true
		}
	}
	return "", false
}

// uniqueToken returns 32 hex characters of random identity for records
// without any identity-like field.
func uniqueToken() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// deriveFilename builds a filename for rec: a slug of its identity field
// when one exists, a random token otherwise, plus ext.
func deriveFilename(rec any, ext string) string {
	if src, ok := identitySource(rec); ok {
		return slugify(src) + ext
	}
	return uniqueToken() + ext
}
