package jsonvalue

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/morikuni/failure/v2"
)

// FromAny decodes a plain Go tree as produced by encoding/json (or by a
// GraphQL variables map) into a Value.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, failure.Wrap(err)
		}
		return Number(f), nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items...), nil
	case []string:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = String(item)
		}
		return List(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, item := range x {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			fields[k] = v
		}
		return Object(fields), nil
	default:
		return Value{}, failure.New(ErrUnsupportedType,
			failure.Message("Value has no JSON representation"),
			failure.Context{"type": fmt.Sprintf("%T", raw)},
		)
	}
}

// FromLiteral decodes an inline GraphQL literal. Enum values decode as
// strings; variables and unknown nodes decode as null because their values
// are not part of the literal.
func FromLiteral(node ast.Value) Value {
	switch n := node.(type) {
	case *ast.StringValue:
		return String(n.Value)
	case *ast.BooleanValue:
		return Bool(n.Value)
	case *ast.EnumValue:
		return String(n.Value)
	case *ast.IntValue:
		return parseNumber(n.Value)
	case *ast.FloatValue:
		return parseNumber(n.Value)
	case *ast.ListValue:
		items := make([]Value, len(n.Values))
		for i, item := range n.Values {
			items[i] = FromLiteral(item)
		}
		return List(items...)
	case *ast.ObjectValue:
		fields := make(map[string]Value, len(n.Fields))
		for _, f := range n.Fields {
			if f == nil || f.Name == nil {
				continue
			}
			fields[f.Name.Value] = FromLiteral(f.Value)
		}
		return Object(fields)
	default:
		return Null()
	}
}

func parseNumber(s string) Value {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return Null()
	}
	return Number(f)
}
