package replies

import (
	"errors"
	"strings"
	"testing"

	"keyword_responder/internal/fsstore"
)

func keys(m OrderedMap) []string {
	out := make([]string, len(m))
	for i, e := range m {
		out[i] = e.Key
	}
	return out
}

func TestDecodeDocument_Flat(t *testing.T) {
	data := `{"مرحبا": "أهلا", "زبدة": "تفضل", "اقتراح": "ارسل اقتراحك"}`

	doc, err := DecodeDocument(fsstore.FormatJSON, []byte(data))
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if !doc.Flat {
		t.Error("Flat = false for a flat table")
	}
	if got := strings.Join(keys(doc.Exact), ","); got != "مرحبا,زبدة,اقتراح" {
		t.Errorf("exact keys = %s, want file order", got)
	}
	if len(doc.Contains) != 0 || len(doc.Regex) != 0 || doc.Fallback != nil {
		t.Errorf("flat table populated other layers: %+v", doc)
	}
}

func TestDecodeDocument_Layered(t *testing.T) {
	data := `{
  "exact": {"صباح الخير": "صباح النور"},
  "contains": {"بوت": "أنا هنا", "شكرا": "العفو", "ب": "حرف"},
  "regex": {"^hi+$": "hello", "\\d{4}": "number"},
  "fallback": "ما فهمت"
}`
	doc, err := DecodeDocument(fsstore.FormatJSON, []byte(data))
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if doc.Flat {
		t.Error("Flat = true for a layered table")
	}
	if got := strings.Join(keys(doc.Contains), ","); got != "بوت,شكرا,ب" {
		t.Errorf("contains order = %s", got)
	}
	if got := strings.Join(keys(doc.Regex), ","); got != `^hi+$,\d{4}` {
		t.Errorf("regex order = %s", got)
	}
	if doc.Fallback == nil || *doc.Fallback != "ما فهمت" {
		t.Errorf("fallback = %v", doc.Fallback)
	}
}

func TestDecodeDocument_LayeredNullFallback(t *testing.T) {
	doc, err := DecodeDocument(fsstore.FormatJSON, []byte(`{"exact": {"a": "b"}, "fallback": null}`))
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if doc.Flat || doc.Fallback != nil || len(doc.Exact) != 1 {
		t.Errorf("doc = %+v", doc)
	}
}

func TestDecodeDocument_FlatKeyNamedLikeLayer(t *testing.T) {
	doc, err := DecodeDocument(fsstore.FormatJSON, []byte(`{"exact": "a reply", "regex": "another"}`))
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if !doc.Flat || len(doc.Exact) != 2 {
		t.Errorf("doc = %+v, want flat table with 2 entries", doc)
	}
}

func TestDecodeDocument_YAML(t *testing.T) {
	layered := `
exact:
  صباح الخير: صباح النور
contains:
  بوت: أنا هنا
  شكرا: العفو
regex:
  "^hi+$": hello
fallback: ~
`
	doc, err := DecodeDocument(fsstore.FormatYAML, []byte(layered))
	if err != nil {
		t.Fatalf("layered: %v", err)
	}
	if doc.Flat || strings.Join(keys(doc.Contains), ",") != "بوت,شكرا" || doc.Fallback != nil {
		t.Errorf("layered doc = %+v", doc)
	}

	flat := "مرحبا: أهلا\nزبدة: تفضل\n"
	doc, err = DecodeDocument(fsstore.FormatYAML, []byte(flat))
	if err != nil {
		t.Fatalf("flat: %v", err)
	}
	if !doc.Flat || strings.Join(keys(doc.Exact), ",") != "مرحبا,زبدة" {
		t.Errorf("flat doc = %+v", doc)
	}
}

func TestDecodeDocument_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		format fsstore.Format
		data   string
	}{
		{"broken json", fsstore.FormatJSON, `{"a": `},
		{"json array", fsstore.FormatJSON, `["a", "b"]`},
		{"non-string value", fsstore.FormatJSON, `{"a": 1}`},
		{"yaml sequence", fsstore.FormatYAML, "- a\n- b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDocument(tt.format, []byte(tt.data))
			if !errors.Is(err, fsstore.ErrDecodeFailed) {
				t.Errorf("err = %v, want ErrDecodeFailed", err)
			}
		})
	}
}

func TestDecodeDocument_Blank(t *testing.T) {
	doc, err := DecodeDocument(fsstore.FormatJSON, []byte("\n"))
	if err != nil || doc.Len() != 0 {
		t.Errorf("blank = %+v, %v", doc, err)
	}
}

func TestEncodeDocument_RoundTripKeepsOrder(t *testing.T) {
	fallback := "<ما فهمت>"
	doc := Document{
		Exact:    OrderedMap{{Key: "z", Reply: "1"}, {Key: "a", Reply: "2"}},
		Contains: OrderedMap{{Key: "بوت", Reply: "أنا هنا"}, {Key: "ب", Reply: "حرف"}},
		Fallback: &fallback,
	}

	for _, format := range []fsstore.Format{fsstore.FormatJSON, fsstore.FormatYAML} {
		t.Run(format.String(), func(t *testing.T) {
			data, err := EncodeDocument(format, doc)
			if err != nil {
				t.Fatalf("EncodeDocument: %v", err)
			}
			if !strings.Contains(string(data), "أنا هنا") {
				t.Errorf("output escapes Arabic text:\n%s", data)
			}
			got, err := DecodeDocument(format, data)
			if err != nil {
				t.Fatalf("DecodeDocument: %v\n%s", err, data)
			}
			if got.Flat {
				t.Error("encoded document decoded as flat")
			}
			if strings.Join(keys(got.Exact), ",") != "z,a" || strings.Join(keys(got.Contains), ",") != "بوت,ب" {
				t.Errorf("order lost: %+v", got)
			}
			if got.Fallback == nil || *got.Fallback != fallback {
				t.Errorf("fallback = %v", got.Fallback)
			}
		})
	}
}

func TestDocument_UpsertAndRemove(t *testing.T) {
	var doc Document
	eq := func(a, b string) bool { return a == b }

	if err := doc.Upsert(LayerContains, "a", "1", eq); err != nil {
		t.Fatal(err)
	}
	if err := doc.Upsert(LayerContains, "b", "2", eq); err != nil {
		t.Fatal(err)
	}
	if err := doc.Upsert(LayerContains, "a", "3", eq); err != nil {
		t.Fatal(err)
	}
	if len(doc.Contains) != 2 || doc.Contains[0] != (Entry{Key: "a", Reply: "3"}) {
		t.Errorf("contains = %+v", doc.Contains)
	}

	removed, err := doc.Remove(LayerContains, "a", eq)
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	removed, _ = doc.Remove(LayerContains, "missing", eq)
	if removed {
		t.Error("Remove reported a missing key as removed")
	}
	if err := doc.Upsert(LayerFallback, "x", "y", eq); !errors.Is(err, ErrInvalidLayer) {
		t.Errorf("Upsert(fallback) err = %v, want ErrInvalidLayer", err)
	}
}
