package bytecode

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// ErrNoMethod is returned when a class has no method of the requested
// name.
var ErrNoMethod = errors.New("method not found")

// Class is a decoded class file.
type Class struct {
	Name    string
	Methods []Method
}

// Method is a decoded method body. Jump targets in Code are
// instruction indices.
type Method struct {
	Name    string
	Static  bool
	Params  []string
	Returns string
	Code    []Op
}

// Slots returns the number of local variable slots the parameters
// occupy, counting the receiver of instance methods and two slots for
// long and double.
func (m Method) Slots() int {
	n := 0
	if !m.Static {
		n++
	}
	for _, p := range m.Params {
		n += Width(p)
	}
	return n
}

// Width returns the number of local slots a value of typ occupies.
func Width(typ string) int {
	if typ == "long" || typ == "double" {
		return 2
	}
	return 1
}

// Method returns the first method named name. If arity is non-negative
// the parameter count must also match.
func (c *Class) Method(name string, arity int) (Method, error) {
	for _, m := range c.Methods {
		if m.Name == name && (arity < 0 || len(m.Params) == arity) {
			return m, nil
		}
	}
	return Method{}, fmt.Errorf("%w: %s.%s", ErrNoMethod, c.Name, name)
}

// LoadClass decodes the class file at path.
func LoadClass(path string) (*Class, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening class file: %w", err)
	}
	defer f.Close()
	c, err := DecodeClass(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

type jsonClass struct {
	Name    string       `json:"name"`
	Methods []jsonMethod `json:"methods"`
}

type jsonMethod struct {
	Name    string            `json:"name"`
	Access  []string          `json:"access"`
	Params  []json.RawMessage `json:"params"`
	Returns json.RawMessage   `json:"returns"`
	Code    *struct {
		Bytecode []jsonOp `json:"bytecode"`
	} `json:"code"`
}

type jsonOp struct {
	Offset    int             `json:"offset"`
	Opr       string          `json:"opr"`
	Type      json.RawMessage `json:"type"`
	Index     int             `json:"index"`
	Value     json.RawMessage `json:"value"`
	Operant   string          `json:"operant"`
	Condition string          `json:"condition"`
	Target    int             `json:"target"`
	Words     int             `json:"words"`
	Amount    int64           `json:"amount"`
	Static    bool            `json:"static"`
	Field     *jsonField      `json:"field"`
	Dim       int             `json:"dim"`
	Class     json.RawMessage `json:"class"`
	Access    string          `json:"access"`
	Method    *jsonRef        `json:"method"`
	From      json.RawMessage `json:"from"`
	To        json.RawMessage `json:"to"`
}

type jsonField struct {
	Class json.RawMessage `json:"class"`
	Name  string          `json:"name"`
	Type  json.RawMessage `json:"type"`
}

type jsonRef struct {
	Ref     json.RawMessage   `json:"ref"`
	Name    string            `json:"name"`
	Args    []json.RawMessage `json:"args"`
	Returns json.RawMessage   `json:"returns"`
}

// DecodeClass reads one class in jvm2json form. Methods without code
// are kept with an empty body.
func DecodeClass(r io.Reader) (*Class, error) {
	var jc jsonClass
	if err := json.NewDecoder(r).Decode(&jc); err != nil {
		return nil, fmt.Errorf("decoding class: %w", err)
	}
	c := &Class{Name: jc.Name}
	for _, jm := range jc.Methods {
		m := Method{
			Name:    jm.Name,
			Static:  slices.Contains(jm.Access, "static"),
			Returns: typeName(jm.Returns),
		}
		for _, p := range jm.Params {
			m.Params = append(m.Params, paramType(p))
		}
		if jm.Code != nil {
			for i, jo := range jm.Code.Bytecode {
				op, err := decodeOp(jo)
				if err != nil {
					return nil, fmt.Errorf("%s.%s instruction %d: %w", c.Name, m.Name, i, err)
				}
				m.Code = append(m.Code, op)
			}
		}
		c.Methods = append(c.Methods, m)
	}
	return c, nil
}

func decodeOp(jo jsonOp) (Op, error) {
	switch jo.Opr {
	case "push":
		return Push{Value: pushValue(jo.Value)}, nil
	case "load":
		return Load{Type: typeName(jo.Type), Index: jo.Index}, nil
	case "store":
		return Store{Type: typeName(jo.Type), Index: jo.Index}, nil
	case "binary":
		return Binary{Type: typeName(jo.Type), Operator: BinaryOp(jo.Operant)}, nil
	case "negate":
		return Negate{Type: typeName(jo.Type)}, nil
	case "ifz":
		return Ifz{Cond: Cond(jo.Condition), Target: jo.Target}, nil
	case "if":
		return If{Cond: Cond(jo.Condition), Target: jo.Target}, nil
	case "return":
		return Return{Type: typeName(jo.Type)}, nil
	case "dup":
		if jo.Words == 0 {
			jo.Words = 1
		}
		return Dup{Words: jo.Words}, nil
	case "incr":
		return Incr{Index: jo.Index, Amount: jo.Amount}, nil
	case "goto":
		return Goto{Target: jo.Target}, nil
	case "get", "put":
		if jo.Field == nil {
			return nil, fmt.Errorf("%s without field", jo.Opr)
		}
		f := Field{Class: typeName(jo.Field.Class), Name: jo.Field.Name, Type: typeName(jo.Field.Type)}
		if jo.Opr == "get" {
			return Get{Static: jo.Static, Field: f}, nil
		}
		return Put{Static: jo.Static, Field: f}, nil
	case "newarray":
		if jo.Dim == 0 {
			jo.Dim = 1
		}
		return NewArray{Type: typeName(jo.Type), Dim: jo.Dim}, nil
	case "array_store":
		return ArrayStore{Type: typeName(jo.Type)}, nil
	case "array_load":
		return ArrayLoad{Type: typeName(jo.Type)}, nil
	case "arraylength":
		return ArrayLength{}, nil
	case "new":
		return New{Class: typeName(jo.Class)}, nil
	case "invoke":
		if jo.Method == nil {
			return nil, errors.New("invoke without method")
		}
		inv := Invoke{
			Access:  jo.Access,
			Class:   typeName(jo.Method.Ref),
			Name:    jo.Method.Name,
			Returns: typeName(jo.Method.Returns),
		}
		for _, a := range jo.Method.Args {
			inv.Args = append(inv.Args, typeName(a))
		}
		return inv, nil
	case "cast":
		return Cast{From: typeName(jo.From), To: typeName(jo.To)}, nil
	case "throw":
		return Throw{}, nil
	case "":
		return nil, errors.New("missing opr")
	}
	return Unknown{Opr: jo.Opr}, nil
}

func pushValue(raw json.RawMessage) Value {
	var v struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if len(raw) == 0 || string(raw) == "null" || json.Unmarshal(raw, &v) != nil {
		return Value{Type: "null"}
	}
	var n json.Number
	if err := json.Unmarshal(v.Value, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return Value{Type: v.Type, Int: i}
		}
		if f, err := n.Float64(); err == nil {
			return Value{Type: v.Type, Int: int64(f)}
		}
	}
	var b bool
	if err := json.Unmarshal(v.Value, &b); err == nil && b {
		return Value{Type: v.Type, Int: 1}
	}
	return Value{Type: v.Type}
}

// paramType accepts either a bare type or a {"type": ...} wrapper.
func paramType(raw json.RawMessage) string {
	var wrapped struct {
		Kind string          `json:"kind"`
		Type json.RawMessage `json:"type"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Kind == "" && len(wrapped.Type) > 0 {
		return typeName(wrapped.Type)
	}
	return typeName(raw)
}

// typeName flattens the type encodings found in class files: a plain
// string, null for void, {"base": "int"}, {"kind": "class", "name": ...}
// and {"kind": "array", "type": ...}.
func typeName(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Base string          `json:"base"`
		Kind string          `json:"kind"`
		Name string          `json:"name"`
		Type json.RawMessage `json:"type"`
	}
	if json.Unmarshal(raw, &obj) != nil {
		return strings.TrimSpace(string(raw))
	}
	switch {
	case obj.Base != "":
		return obj.Base
	case obj.Kind == "array":
		return typeName(obj.Type) + "[]"
	case obj.Name != "":
		return obj.Name
	case len(obj.Type) > 0:
		return typeName(obj.Type)
	}
	return ""
}
