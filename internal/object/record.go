package object

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/roach88/strata/internal/oid"
)

// Reserved record keys. Everything else in a record is object payload.
const (
	KeyType      = "@type"
	KeyOID       = "@oid"
	KeyReference = "@reference"
)

// Record is the durable form of one persistent object: a type tag, the
// object's identifier, and a structured payload in which nested persistent
// objects appear as reference stubs rather than inline values.
type Record struct {
	Type    string
	OID     oid.OID
	Payload Map
}

// Encode renders the record as canonical (RFC 8785) JSON bytes. Canonical
// form makes the encoding byte-stable across round trips, so re-storing an
// unchanged object rewrites an identical record.
//
// The payload must not contain Child values; the writer replaces them with
// Ref stubs before encoding.
func (r Record) Encode() ([]byte, error) {
	doc := make(map[string]any, len(r.Payload)+2)
	doc[KeyType] = r.Type
	doc[KeyOID] = r.OID.String()
	for k, v := range r.Payload {
		jv, err := jsonValue(v)
		if err != nil {
			return nil, fmt.Errorf("record %s/%s: field %q: %w", r.Type, r.OID, k, err)
		}
		doc[k] = jv
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("record %s/%s: %w", r.Type, r.OID, err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("record %s/%s: canonicalize: %w", r.Type, r.OID, err)
	}
	return canonical, nil
}

// Decode parses record bytes produced by Encode. Unknown payload shapes are
// carried through untouched; it is the object's SetFields that decides which
// fields it recognizes.
func Decode(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return Record{}, fmt.Errorf("record: %w", err)
	}

	typeName, ok := doc[KeyType].(string)
	if !ok || typeName == "" {
		return Record{}, fmt.Errorf("record: missing %s tag", KeyType)
	}
	oidText, ok := doc[KeyOID].(string)
	if !ok {
		return Record{}, fmt.Errorf("record: missing %s", KeyOID)
	}
	id, err := oid.Parse(oidText)
	if err != nil {
		return Record{}, fmt.Errorf("record: %w", err)
	}

	payload := make(Map, len(doc))
	for k, v := range doc {
		if k == KeyType || k == KeyOID {
			continue
		}
		val, err := valueFromJSON(v)
		if err != nil {
			return Record{}, fmt.Errorf("record %s/%s: field %q: %w", typeName, id, k, err)
		}
		payload[k] = val
	}
	return Record{Type: typeName, OID: id, Payload: payload}, nil
}

func jsonValue(v Value) (any, error) {
	switch val := v.(type) {
	case String:
		return string(val), nil
	case Int:
		return int64(val), nil
	case Bool:
		return bool(val), nil
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			jv, err := jsonValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = jv
		}
		return out, nil
	case Map:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			jv, err := jsonValue(elem)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			out[k] = jv
		}
		return out, nil
	case Ref:
		return map[string]any{
			KeyType:      val.Type,
			KeyOID:       val.OID.String(),
			KeyReference: true,
		}, nil
	case Child:
		return nil, fmt.Errorf("nested object %s escaped the writer", val.Object.TypeName())
	case nil:
		return nil, fmt.Errorf("nil value")
	}
	return nil, fmt.Errorf("unsupported value kind %T", v)
}

func valueFromJSON(v any) (Value, error) {
	switch val := v.(type) {
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %q", val.String())
		}
		return Int(n), nil
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			pv, err := valueFromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = pv
		}
		return out, nil
	case map[string]any:
		if isRef, ok := val[KeyReference].(bool); ok && isRef {
			typeName, _ := val[KeyType].(string)
			oidText, _ := val[KeyOID].(string)
			id, err := oid.Parse(oidText)
			if err != nil {
				return nil, fmt.Errorf("reference stub: %w", err)
			}
			return Ref{Type: typeName, OID: id}, nil
		}
		out := make(Map, len(val))
		for k, elem := range val {
			pv, err := valueFromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			out[k] = pv
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("null value")
	}
	return nil, fmt.Errorf("unsupported JSON kind %T", v)
}
