package config

import "testing"

func TestParseJSONCStripsLineComments(t *testing.T) {
	doc := []byte(`{
  // top-level comment
  "a": 1, // trailing comment
  "b": "value"
}`)
	out, err := parseJSONC(doc)
	if err != nil {
		t.Fatalf("parseJSONC: %v", err)
	}
	if out["a"] != float64(1) || out["b"] != "value" {
		t.Fatalf("unexpected parse result: %+v", out)
	}
}

func TestParseJSONCStripsBlockComments(t *testing.T) {
	doc := []byte(`{
  /* this whole
     section is ignored */
  "a": 1,
  "b": /* inline */ 2
}`)
	out, err := parseJSONC(doc)
	if err != nil {
		t.Fatalf("parseJSONC: %v", err)
	}
	if out["a"] != float64(1) || out["b"] != float64(2) {
		t.Fatalf("unexpected parse result: %+v", out)
	}
}

func TestParseJSONCPreservesSlashesInStrings(t *testing.T) {
	doc := []byte(`{
  "url": "https://example.com/path" // not part of the url
}`)
	out, err := parseJSONC(doc)
	if err != nil {
		t.Fatalf("parseJSONC: %v", err)
	}
	if out["url"] != "https://example.com/path" {
		t.Fatalf("unexpected url value: %v", out["url"])
	}
}

func TestParseJSONCPreservesBlockCommentMarkersInStrings(t *testing.T) {
	doc := []byte(`{"bark_url": "https://h/a/*/b"}`)
	out, err := parseJSONC(doc)
	if err != nil {
		t.Fatalf("parseJSONC: %v", err)
	}
	if out["bark_url"] != "https://h/a/*/b" {
		t.Fatalf("unexpected bark_url value: %v", out["bark_url"])
	}
}

func TestParseJSONCPreservesEscapedQuotesInStrings(t *testing.T) {
	doc := []byte(`{"note": "he said \"// not a comment\""}`)
	out, err := parseJSONC(doc)
	if err != nil {
		t.Fatalf("parseJSONC: %v", err)
	}
	if out["note"] != `he said "// not a comment"` {
		t.Fatalf("unexpected note value: %v", out["note"])
	}
}
