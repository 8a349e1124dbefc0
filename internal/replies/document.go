package replies

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"keyword_responder/internal/fsstore"
)

// Layer names a stage of the reply table.
type Layer string

const (
	LayerExact    Layer = "exact"
	LayerContains Layer = "contains"
	LayerRegex    Layer = "regex"
	LayerFallback Layer = "fallback"
	LayerCommand  Layer = "command"
)

// ParseLayer accepts the three keyed layers. An empty string is returned as
// "" so callers can treat it as "any layer".
func ParseLayer(s string) (Layer, error) {
	switch l := Layer(s); l {
	case "", LayerExact, LayerContains, LayerRegex:
		return l, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLayer, s)
	}
}

// Entry is one key/reply pair.
type Entry struct {
	Key   string `json:"key" yaml:"key"`
	Reply string `json:"reply" yaml:"reply"`
}

// OrderedMap is a string→string object that keeps the key order of the file
// it was read from. Order is significant for contains and regex matching.
type OrderedMap []Entry

// UnmarshalJSON reads an object token by token to keep key order.
func (m *OrderedMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	var out OrderedMap
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected key, got %v", tok)
		}
		var reply string
		if err := dec.Decode(&reply); err != nil {
			return fmt.Errorf("value for %q: %w", key, err)
		}
		out = append(out, Entry{Key: key, Reply: reply})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// MarshalJSON writes the entries as an object in order.
func (m OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(e.Key); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1)
		buf.WriteByte(':')
		if err := enc.Encode(e.Reply); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML reads a mapping node in document order.
func (m *OrderedMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*m = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected mapping", node.Line)
	}
	out := make(OrderedMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key, reply string
		if err := node.Content[i].Decode(&key); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&reply); err != nil {
			return fmt.Errorf("value for %q: %w", key, err)
		}
		out = append(out, Entry{Key: key, Reply: reply})
	}
	*m = out
	return nil
}

// MarshalYAML emits a mapping node in order.
func (m OrderedMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range m {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Reply},
		)
	}
	return node, nil
}

// Document is the reply table as stored on disk. The flat shape decodes into
// Exact with Flat set; writes always produce the layered shape.
type Document struct {
	Exact    OrderedMap `json:"exact" yaml:"exact"`
	Contains OrderedMap `json:"contains" yaml:"contains"`
	Regex    OrderedMap `json:"regex" yaml:"regex"`
	Fallback *string    `json:"fallback" yaml:"fallback"`

	Flat bool `json:"-" yaml:"-"`
}

var layeredKeys = map[string]bool{
	string(LayerExact):    true,
	string(LayerContains): true,
	string(LayerRegex):    true,
	string(LayerFallback): true,
}

// DecodeDocument parses either table shape. Blank input is an empty table.
func DecodeDocument(format fsstore.Format, data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}
	if format == fsstore.FormatYAML {
		return decodeYAML(data)
	}
	return decodeJSON(data)
}

// EncodeDocument renders doc in the layered shape.
func EncodeDocument(format fsstore.Format, doc Document) ([]byte, error) {
	return fsstore.Marshal(format, doc)
}

func decodeJSON(data []byte) (Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Document{}, fmt.Errorf("%w: %v", fsstore.ErrDecodeFailed, err)
	}

	if isLayeredJSON(top) {
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return Document{}, fmt.Errorf("%w: %v", fsstore.ErrDecodeFailed, err)
		}
		return doc, nil
	}

	var flat OrderedMap
	if err := json.Unmarshal(data, &flat); err != nil {
		return Document{}, fmt.Errorf("%w: flat table: %v", fsstore.ErrDecodeFailed, err)
	}
	return Document{Exact: flat, Flat: true}, nil
}

func isLayeredJSON(top map[string]json.RawMessage) bool {
	if len(top) == 0 {
		return false
	}
	for key, raw := range top {
		if !layeredKeys[key] {
			return false
		}
		first := firstByte(raw)
		if key == string(LayerFallback) {
			if first != '"' && first != 'n' {
				return false
			}
			continue
		}
		if first != '{' && first != 'n' {
			return false
		}
	}
	return true
}

func firstByte(raw []byte) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

func decodeYAML(data []byte) (Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Document{}, fmt.Errorf("%w: %v", fsstore.ErrDecodeFailed, err)
	}
	if len(root.Content) == 0 {
		return Document{}, nil
	}
	body := root.Content[0]
	if body.Kind != yaml.MappingNode {
		return Document{}, fmt.Errorf("%w: top level must be a mapping", fsstore.ErrDecodeFailed)
	}

	if isLayeredYAML(body) {
		var doc Document
		if err := body.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("%w: %v", fsstore.ErrDecodeFailed, err)
		}
		return doc, nil
	}

	var flat OrderedMap
	if err := body.Decode(&flat); err != nil {
		return Document{}, fmt.Errorf("%w: flat table: %v", fsstore.ErrDecodeFailed, err)
	}
	return Document{Exact: flat, Flat: true}, nil
}

func isLayeredYAML(body *yaml.Node) bool {
	if len(body.Content) == 0 {
		return false
	}
	for i := 0; i+1 < len(body.Content); i += 2 {
		key, value := body.Content[i].Value, body.Content[i+1]
		if !layeredKeys[key] {
			return false
		}
		isNull := value.Kind == yaml.ScalarNode && value.Tag == "!!null"
		if key == string(LayerFallback) {
			if value.Kind != yaml.ScalarNode {
				return false
			}
			continue
		}
		if value.Kind != yaml.MappingNode && !isNull {
			return false
		}
	}
	return true
}

// layer returns a pointer to the keyed layer's entries.
func (d *Document) layer(l Layer) (*OrderedMap, error) {
	switch l {
	case LayerExact:
		return &d.Exact, nil
	case LayerContains:
		return &d.Contains, nil
	case LayerRegex:
		return &d.Regex, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLayer, l)
	}
}

// Upsert sets key in layer, replacing an entry that same(key, existing)
// reports as equal and keeping its position.
func (d *Document) Upsert(l Layer, key, reply string, same func(a, b string) bool) error {
	entries, err := d.layer(l)
	if err != nil {
		return err
	}
	for i, e := range *entries {
		if same(e.Key, key) {
			(*entries)[i] = Entry{Key: key, Reply: reply}
			return nil
		}
	}
	*entries = append(*entries, Entry{Key: key, Reply: reply})
	return nil
}

// Remove deletes every entry in layer that same reports as equal to key.
func (d *Document) Remove(l Layer, key string, same func(a, b string) bool) (bool, error) {
	entries, err := d.layer(l)
	if err != nil {
		return false, err
	}
	kept := (*entries)[:0]
	removed := false
	for _, e := range *entries {
		if same(e.Key, key) {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	*entries = kept
	return removed, nil
}

// Len counts keyed entries across layers.
func (d Document) Len() int {
	return len(d.Exact) + len(d.Contains) + len(d.Regex)
}

var (
	ErrInvalidLayer   = errors.New("invalid layer")
	ErrInvalidKey     = errors.New("key must not be empty")
	ErrInvalidReply   = errors.New("reply must not be empty")
	ErrInvalidPattern = errors.New("invalid regex pattern")
)
