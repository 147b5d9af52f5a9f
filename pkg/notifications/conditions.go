package notifications

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Operator is a rule condition comparison.
type Operator uint8

const (
	OpInvalid Operator = iota
	OpEQ
	OpNE
	OpGT
	OpLT
	OpGTE
	OpLTE
)

// ParseOperator returns OpInvalid for unknown names.
func ParseOperator(s string) Operator {
	switch strings.ToLower(s) {
	case "eq":
		return OpEQ
	case "ne":
		return OpNE
	case "gt":
		return OpGT
	case "lt":
		return OpLT
	case "gte":
		return OpGTE
	case "lte":
		return OpLTE
	default:
		return OpInvalid
	}
}

func (o Operator) String() string {
	switch o {
	case OpEQ:
		return "eq"
	case OpNE:
		return "ne"
	case OpGT:
		return "gt"
	case OpLT:
		return "lt"
	case OpGTE:
		return "gte"
	case OpLTE:
		return "lte"
	default:
		return "invalid"
	}
}

// Condition compares a metadata value against Operand.
type Condition struct {
	Op      Operator
	Operand Value
	Raw     string // operator name as written, kept for diagnostics
}

// Eval never fails: incomparable values and unknown operators do not match.
func (c Condition) Eval(v Value) bool {
	switch c.Op {
	case OpEQ:
		return v.Equal(c.Operand)
	case OpNE:
		return !v.Equal(c.Operand)
	case OpGT, OpLT, OpGTE, OpLTE:
		cmp, ok := v.Compare(c.Operand)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGT:
			return cmp > 0
		case OpLT:
			return cmp < 0
		case OpGTE:
			return cmp >= 0
		default:
			return cmp <= 0
		}
	default:
		return false
	}
}

// ConditionTree maps a metadata key to the conditions that key must satisfy.
// All keys and all conditions under a key are ANDed.
type ConditionTree map[string][]Condition

// ParseConditions converts a decoded condition document. A literal under a key
// means equality; an object is either {op: gt, value: 80} or {gt: 80, lt: 100}.
// Unknown operators are kept as OpInvalid so the rule never matches.
func ParseConditions(raw map[string]any) ConditionTree {
	tree := make(ConditionTree, len(raw))
	for key, spec := range raw {
		tree[key] = parseConditionSpec(spec)
	}
	return tree
}

func parseConditionSpec(spec any) []Condition {
	obj, ok := asObject(spec)
	if !ok {
		v := ValueOf(spec)
		if v.IsNull() && spec != nil {
			return []Condition{{Op: OpInvalid, Raw: fmt.Sprintf("%T", spec)}}
		}
		return []Condition{{Op: OpEQ, Operand: v, Raw: "eq"}}
	}

	if opName, hasOp := obj["op"]; hasOp {
		name := fmt.Sprint(opName)
		return []Condition{{Op: ParseOperator(name), Operand: ValueOf(obj["value"]), Raw: name}}
	}

	if len(obj) == 0 {
		return []Condition{{Op: OpInvalid, Raw: ""}}
	}

	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)

	conds := make([]Condition, 0, len(names))
	for _, name := range names {
		conds = append(conds, Condition{Op: ParseOperator(name), Operand: ValueOf(obj[name]), Raw: name})
	}
	return conds
}

// asObject accepts the map shapes produced by encoding/json, yaml.v3 and the mongo driver.
func asObject(x any) (map[string]any, bool) {
	switch t := x.(type) {
	case map[string]any:
		return t, true
	case Metadata:
		return t, true
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	default:
		return nil, false
	}
}

// Valid reports whether every condition uses a known operator.
func (t ConditionTree) Valid() bool {
	for _, conds := range t {
		for _, c := range conds {
			if c.Op == OpInvalid {
				return false
			}
		}
	}
	return true
}

// Match reports whether md satisfies every condition of the tree.
// A missing key fails every operator except ne.
func (t ConditionTree) Match(md Metadata) bool {
	for key, conds := range t {
		v := md.Get(key)
		for _, c := range conds {
			if !c.Eval(v) {
				return false
			}
		}
	}
	return true
}

// Document converts the tree back into the {key: {op: value}} form used by the stores.
func (t ConditionTree) Document() map[string]any {
	out := make(map[string]any, len(t))
	for key, conds := range t {
		ops := make(map[string]any, len(conds))
		for _, c := range conds {
			ops[c.Raw] = valueInterface(c.Operand)
		}
		out[key] = ops
	}
	return out
}

func valueInterface(v Value) any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.b
	default:
		return nil
	}
}

func (t ConditionTree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Document())
}

func (t *ConditionTree) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = ParseConditions(raw)
	return nil
}
