package shelf

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type article struct {
	Title string   `yaml:"title" json:"title"`
	Likes int      `yaml:"likes" json:"likes"`
	Tags  []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

func TestJSONHandlerEncodeLayout(t *testing.T) {
	data, err := jsonHandler{}.Encode(&article{Title: "A", Likes: 2}, HandlerOptions{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := "{\n  \"title\": \"A\",\n  \"likes\": 2\n}\n"
	if string(data) != want {
		t.Errorf("Encode = %q, want %q", data, want)
	}
}

func TestJSONHandlerLenientDecode(t *testing.T) {
	raw := []byte("{\n  // hand-edited\n  \"title\": \"A\",\n  \"likes\": 3,\n}\n")
	var got article
	if err := (jsonHandler{}).Decode(raw, &got, HandlerOptions{}); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Title != "A" || got.Likes != 3 {
		t.Errorf("decoded = %+v", got)
	}
}

func TestJSONHandlerRoundTrip(t *testing.T) {
	in := &article{Title: "Round", Likes: 9, Tags: []string{"a", "b"}}
	data, err := jsonHandler{}.Encode(in, HandlerOptions{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var out article
	if err := (jsonHandler{}).Decode(data, &out, HandlerOptions{}); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(in, &out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestYAMLHandlerRoundTripKeepsFieldOrder(t *testing.T) {
	in := &article{Title: "A", Likes: 1, Tags: []string{"x"}}
	data, err := yamlHandler{}.Encode(in, HandlerOptions{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	text := string(data)
	if strings.Index(text, "title:") > strings.Index(text, "likes:") {
		t.Errorf("field order not preserved:\n%s", text)
	}

	var out article
	if err := (yamlHandler{}).Decode(data, &out, HandlerOptions{}); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(in, &out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestYAMLHandlerMapDeterminism(t *testing.T) {
	m := map[string]any{"b": 1, "a": 2}
	first, err := yamlHandler{}.Encode(&m, HandlerOptions{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	second, err := yamlHandler{}.Encode(&m, HandlerOptions{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(first) != string(second) {
		t.Error("map encoding not deterministic")
	}
	if strings.Index(string(first), "a:") > strings.Index(string(first), "b:") {
		t.Errorf("map keys not sorted:\n%s", first)
	}
}

func TestMsgpackHandlerRoundTrip(t *testing.T) {
	in := &article{Title: "Binary", Likes: 5, Tags: []string{"m"}}
	data, err := msgpackHandler{}.Encode(in, HandlerOptions{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var out article
	if err := (msgpackHandler{}).Decode(data, &out, HandlerOptions{}); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(in, &out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMsgpackHandlerRejectsGarbage(t *testing.T) {
	var out article
	if err := (msgpackHandler{}).Decode([]byte("not msgpack"), &out, HandlerOptions{}); err == nil {
		t.Error("expected decode error")
	}
}
