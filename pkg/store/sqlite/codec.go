package sqlite

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	kgforge "github.com/goliatone/go-kgforge"
)

// Revisions are stored as CBOR with core deterministic encoding. Properties
// are written as [name, value] pairs so their order survives the round trip.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("sqlite: cbor encoder: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("sqlite: cbor decoder: " + err.Error())
	}
}

const (
	keyID    = "id"
	keyType  = "type"
	keyProps = "props"
)

func encodeResource(r *kgforge.Resource) ([]byte, error) {
	return encMode.Marshal(encodeNode(r))
}

func decodeResource(data []byte) (*kgforge.Resource, error) {
	var node map[string]any
	if err := decMode.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("sqlite: decode revision: %w", err)
	}
	return decodeNode(node)
}

func encodeNode(r *kgforge.Resource) map[string]any {
	props := make([]any, 0, r.Properties().Len())
	r.Properties().Range(func(name string, value any) bool {
		props = append(props, []any{name, encodeValue(value)})
		return true
	})
	node := map[string]any{keyProps: props}
	if r.ID != "" {
		node[keyID] = r.ID
	}
	if len(r.Types) > 0 {
		node[keyType] = r.Types
	}
	return node
}

func encodeValue(value any) any {
	switch typed := value.(type) {
	case *kgforge.Resource:
		return encodeNode(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = encodeValue(item)
		}
		return out
	default:
		return value
	}
}

func decodeNode(node map[string]any) (*kgforge.Resource, error) {
	r := &kgforge.Resource{}
	if id, ok := node[keyID].(string); ok {
		r.ID = id
	}
	if types, ok := node[keyType].([]any); ok {
		for _, typ := range types {
			name, ok := typ.(string)
			if !ok {
				return nil, fmt.Errorf("sqlite: decode revision: type %v is not a string", typ)
			}
			r.Types = append(r.Types, name)
		}
	}
	props, _ := node[keyProps].([]any)
	for _, raw := range props {
		pair, ok := raw.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("sqlite: decode revision: malformed property %v", raw)
		}
		name, ok := pair[0].(string)
		if !ok {
			return nil, fmt.Errorf("sqlite: decode revision: property name %v is not a string", pair[0])
		}
		value, err := decodeValue(pair[1])
		if err != nil {
			return nil, fmt.Errorf("sqlite: decode revision: %s: %w", name, err)
		}
		r.Properties().Set(name, value)
	}
	return r, nil
}

func decodeValue(value any) (any, error) {
	switch typed := value.(type) {
	case map[string]any:
		return decodeNode(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			decoded, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = decoded
		}
		return out, nil
	default:
		return kgforge.NormalizeValue(value)
	}
}
