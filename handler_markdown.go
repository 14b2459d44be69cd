package shelf

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// MarkdownHandler returns the built-in Markdown frontmatter handler.
func MarkdownHandler() FileHandler { return markdownHandler{} }

// markdownHandler stores a record as YAML frontmatter between "---"
// delimiter lines, followed by the raw value of the configured body
// field. The layout is strict:
//
//	---
//	title: A
//	date: 2024-01-01
//	---
//	body text
//
// A file without both delimiters does not decode.
type markdownHandler struct{}

const fmDelim = "---"

func (markdownHandler) Name() string { return "markdown" }

func (markdownHandler) Extensions() []string { return []string{".md", ".markdown"} }

func (markdownHandler) SplitsBody() bool { return true }

func (markdownHandler) Decode(data []byte, v any, opts HandlerOptions) error {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return err
	}
	if len(fm) > 0 {
		if err := yaml.Unmarshal(fm, v); err != nil {
			return fmt.Errorf("unmarshal frontmatter: %w", err)
		}
	}
	return setBody(v, opts.BodyField, body)
}

func (markdownHandler) Encode(v any, opts HandlerOptions) ([]byte, error) {
	body, err := bodyString(v, opts.BodyField)
	if err != nil {
		return nil, err
	}
	fm, err := frontmatterBytes(v, opts.BodyField)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(fmDelim)
	buf.WriteByte('\n')
	buf.Write(fm)
	buf.WriteString(fmDelim)
	buf.WriteByte('\n')
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// splitFrontmatter separates the YAML frontmatter block from the raw
// body. The file must open with a "---" line and carry a closing "---"
// line; anything else is a decode failure.
func splitFrontmatter(data []byte) ([]byte, string, error) {
	text := string(data)
	if !strings.HasPrefix(text, fmDelim+"\n") {
		return nil, "", errors.New("missing opening frontmatter delimiter")
	}
	rest := text[len(fmDelim)+1:]

	// Empty frontmatter: the closing delimiter follows immediately.
	switch {
	case strings.HasPrefix(rest, fmDelim+"\n"):
		return nil, rest[len(fmDelim)+1:], nil
	case rest == fmDelim:
		return nil, "", nil
	}

	closing := "\n" + fmDelim + "\n"
	if idx := strings.Index(rest, closing); idx >= 0 {
		return []byte(rest[:idx]), rest[idx+len(closing):], nil
	}
	if strings.HasSuffix(rest, "\n"+fmDelim) {
		return []byte(rest[:len(rest)-len(fmDelim)]), "", nil
	}
	return nil, "", errors.New("missing closing frontmatter delimiter")
}

// frontmatterBytes renders every field except the body field as a YAML
// mapping, preserving the record's declared field order.
func frontmatterBytes(v any, bodyField string) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("record encodes to a %v node, want a yaml mapping", node.Kind)
	}
	skip := bodyKey(v, bodyField)
	filtered := make([]*yaml.Node, 0, len(node.Content))
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == skip {
			continue
		}
		filtered = append(filtered, node.Content[i], node.Content[i+1])
	}
	if len(filtered) == 0 {
		return nil, nil
	}
	node.Content = filtered
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}
	return out, nil
}

// bodyKey resolves the YAML key the body field serializes under, which
// for struct records may differ from the configured field name.
func bodyKey(v any, field string) string {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return field
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return field
	}
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Name == field || tagName(f, "yaml") == field || strings.EqualFold(f.Name, field) {
			if name := tagName(f, "yaml"); name != "" {
				return name
			}
			return strings.ToLower(f.Name)
		}
	}
	return field
}
