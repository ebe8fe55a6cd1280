package pricing

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Entry is one (product name, new price) pair.
type Entry struct {
	Product string
	Price   string
}

// Mapping is an ordered set of entries. Keys are unique when decoded from an
// object; order follows the source document.
type Mapping []Entry

// DecodeJSON reads a JSON object of product → price. Prices may be strings,
// numbers or null.
func DecodeJSON(data []byte) (Mapping, error) {
	if trimmed := strings.TrimSpace(string(data)); trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	om := orderedmap.New[string, any]()
	if err := json.Unmarshal(data, om); err != nil {
		return nil, fmt.Errorf("decode price mapping: %w", err)
	}
	return fromOrdered(om)
}

// DecodeYAML reads a YAML mapping of product → price.
func DecodeYAML(data []byte) (Mapping, error) {
	om := orderedmap.New[string, any]()
	if err := yaml.Unmarshal(data, om); err != nil {
		return nil, fmt.Errorf("decode price mapping: %w", err)
	}
	return fromOrdered(om)
}

// DecodeFile picks the decoder from the file extension (.yaml/.yml → YAML,
// anything else → JSON).
func DecodeFile(name string, data []byte) (Mapping, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return DecodeJSON(data)
	}
}

func fromOrdered(om *orderedmap.OrderedMap[string, any]) (Mapping, error) {
	out := make(Mapping, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		price, err := priceString(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("price for %q: %w", pair.Key, err)
		}
		out = append(out, Entry{Product: pair.Key, Price: price})
	}
	return out, nil
}

func priceString(v any) (string, error) {
	switch p := v.(type) {
	case nil:
		return "", nil
	case string:
		return p, nil
	case float64:
		return strconv.FormatFloat(p, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(p), nil
	case int64:
		return strconv.FormatInt(p, 10), nil
	case uint64:
		return strconv.FormatUint(p, 10), nil
	case json.Number:
		return p.String(), nil
	case bool:
		return strconv.FormatBool(p), nil
	default:
		return "", fmt.Errorf("unsupported value %T", v)
	}
}
