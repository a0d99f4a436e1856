package docstore

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Kind is the wire tag carried by every document field.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInteger
	KindDouble
	KindBoolean
	KindTimestamp
	KindMap
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindBoolean:
		return "boolean"
	case KindTimestamp:
		return "timestamp"
	case KindMap:
		return "map"
	case KindArray:
		return "array"
	default:
		return "null"
	}
}

// Value is a single tagged field value as the document store represents it.
// The zero Value is a null.
type Value struct {
	kind   Kind
	str    string
	num    int64
	dbl    float64
	flag   bool
	fields map[string]Value
	items  []Value
}

func Null() Value { return Value{} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Integer(i int64) Value { return Value{kind: KindInteger, num: i} }

func Double(f float64) Value { return Value{kind: KindDouble, dbl: f} }

func Boolean(b bool) Value { return Value{kind: KindBoolean, flag: b} }

func Map(m map[string]Value) Value { return Value{kind: KindMap, fields: m} }

func Array(vs ...Value) Value { return Value{kind: KindArray, items: vs} }

// Timestamp stores t in UTC with the RFC 3339 layout the store expects.
func Timestamp(t time.Time) Value {
	return Value{kind: KindTimestamp, str: t.UTC().Format(time.RFC3339Nano)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the textual payload of string and timestamp values.
func (v Value) Str() (string, bool) {
	if v.kind == KindString || v.kind == KindTimestamp {
		return v.str, true
	}
	return "", false
}

func (v Value) Int() (int64, bool) {
	if v.kind == KindInteger {
		return v.num, true
	}
	return 0, false
}

// Float returns double values and widens integers.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindDouble:
		return v.dbl, true
	case KindInteger:
		return float64(v.num), true
	}
	return 0, false
}

func (v Value) Bool() (bool, bool) {
	if v.kind == KindBoolean {
		return v.flag, true
	}
	return false, false
}

func (v Value) Fields() (map[string]Value, bool) {
	if v.kind == KindMap {
		return v.fields, true
	}
	return nil, false
}

func (v Value) Items() ([]Value, bool) {
	if v.kind == KindArray {
		return v.items, true
	}
	return nil, false
}

// Native converts the value recursively into plain Go values: string, int64,
// float64, bool, nil, map[string]any and []any. Timestamps stay strings.
func (v Value) Native() any {
	switch v.kind {
	case KindString, KindTimestamp:
		return v.str
	case KindInteger:
		return v.num
	case KindDouble:
		return v.dbl
	case KindBoolean:
		return v.flag
	case KindMap:
		out := make(map[string]any, len(v.fields))
		for k, f := range v.fields {
			out[k] = f.Native()
		}
		return out
	case KindArray:
		out := make([]any, 0, len(v.items))
		for _, it := range v.items {
			out = append(out, it.Native())
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON writes the value in the store's tagged wire format.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(map[string]string{"stringValue": v.str})
	case KindInteger:
		return json.Marshal(map[string]string{"integerValue": strconv.FormatInt(v.num, 10)})
	case KindDouble:
		if math.IsNaN(v.dbl) || math.IsInf(v.dbl, 0) {
			return nil, fmt.Errorf("docstore: unsupported double %v", v.dbl)
		}
		return json.Marshal(map[string]float64{"doubleValue": v.dbl})
	case KindBoolean:
		return json.Marshal(map[string]bool{"booleanValue": v.flag})
	case KindTimestamp:
		return json.Marshal(map[string]string{"timestampValue": v.str})
	case KindMap:
		fields := v.fields
		if fields == nil {
			fields = map[string]Value{}
		}
		return json.Marshal(map[string]any{"mapValue": map[string]any{"fields": fields}})
	case KindArray:
		items := v.items
		if items == nil {
			items = []Value{}
		}
		return json.Marshal(map[string]any{"arrayValue": map[string]any{"values": items}})
	default:
		return []byte(`{"nullValue":null}`), nil
	}
}

// UnmarshalJSON reads one tagged wire value. Unknown tags decode to null.
func (v *Value) UnmarshalJSON(b []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(b, &tagged); err != nil {
		return fmt.Errorf("docstore: decode value: %w", err)
	}

	*v = Value{}
	for tag, raw := range tagged {
		switch tag {
		case "stringValue", "referenceValue", "bytesValue":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("docstore: decode %s: %w", tag, err)
			}
			*v = String(s)
		case "timestampValue":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("docstore: decode %s: %w", tag, err)
			}
			*v = Value{kind: KindTimestamp, str: s}
		case "integerValue":
			// Приходит строкой, но встречаются и числа.
			i, err := decodeInteger(raw)
			if err != nil {
				return fmt.Errorf("docstore: decode %s: %w", tag, err)
			}
			*v = Integer(i)
		case "doubleValue":
			f, err := decodeDouble(raw)
			if err != nil {
				return fmt.Errorf("docstore: decode %s: %w", tag, err)
			}
			*v = Double(f)
		case "booleanValue":
			var flag bool
			if err := json.Unmarshal(raw, &flag); err != nil {
				return fmt.Errorf("docstore: decode %s: %w", tag, err)
			}
			*v = Boolean(flag)
		case "mapValue":
			var m struct {
				Fields map[string]Value `json:"fields"`
			}
			if err := json.Unmarshal(raw, &m); err != nil {
				return fmt.Errorf("docstore: decode %s: %w", tag, err)
			}
			if m.Fields == nil {
				m.Fields = map[string]Value{}
			}
			*v = Map(m.Fields)
		case "arrayValue":
			var a struct {
				Values []Value `json:"values"`
			}
			if err := json.Unmarshal(raw, &a); err != nil {
				return fmt.Errorf("docstore: decode %s: %w", tag, err)
			}
			*v = Array(a.Values...)
		case "geoPointValue":
			var p struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("docstore: decode %s: %w", tag, err)
			}
			*v = Map(map[string]Value{"latitude": Double(p.Latitude), "longitude": Double(p.Longitude)})
		}
	}
	return nil
}

func decodeInteger(raw json.RawMessage) (int64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseInt(s, 10, 64)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n.Int64()
}

func decodeDouble(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

// Document is a raw record read from a collection.
type Document struct {
	ID         string
	Name       string
	Fields     map[string]Value
	CreateTime time.Time
	UpdateTime time.Time
}

// Get returns the field value for key, or a null Value when the field is absent.
func (d Document) Get(key string) (Value, bool) {
	v, ok := d.Fields[key]
	return v, ok
}

// Native returns the document as a plain record. The key is exposed under "id".
func (d Document) Native() map[string]any {
	out := make(map[string]any, len(d.Fields)+1)
	for k, v := range d.Fields {
		out[k] = v.Native()
	}
	out["id"] = d.ID
	return out
}

// FieldPaths lists the top-level field names in stable order.
func FieldPaths(fields map[string]Value) []string {
	paths := make([]string, 0, len(fields))
	for k := range fields {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	return paths
}
