package server

import (
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/rendini/mashup/api/jsonvalue"
	"github.com/rendini/mashup/api/normalize"
)

// JSONScalar carries arbitrary JSON in both directions. Inputs decode to
// jsonvalue.Value whether they arrive as variables or inline literals.
var JSONScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case jsonvalue.Value:
			return v.Interface()
		case map[string]jsonvalue.Value:
			if v == nil {
				return nil
			}
			return jsonvalue.ObjectInterface(v)
		default:
			return value
		}
	},
	ParseValue: func(value interface{}) interface{} {
		v, err := jsonvalue.FromAny(value)
		if err != nil {
			return nil
		}
		return v
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		return jsonvalue.FromLiteral(valueAST)
	},
})

// DateTimeScalar is an instant written as RFC 3339 in UTC. Inputs also
// accept a plain date or epoch milliseconds.
var DateTimeScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "DateTime",
	Description: "RFC 3339 timestamp",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case time.Time:
			return v.UTC().Format(time.RFC3339Nano)
		case *time.Time:
			if v == nil {
				return nil
			}
			return v.UTC().Format(time.RFC3339Nano)
		default:
			return nil
		}
	},
	ParseValue: func(value interface{}) interface{} {
		raw, err := jsonvalue.FromAny(value)
		if err != nil {
			return nil
		}
		return parseDateTime(raw)
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		switch valueAST.(type) {
		case *ast.StringValue, *ast.IntValue:
			return parseDateTime(jsonvalue.FromLiteral(valueAST))
		default:
			return nil
		}
	},
})

func parseDateTime(raw jsonvalue.Value) interface{} {
	t, err := normalize.ParseTimestamp(raw)
	if err != nil {
		return nil
	}
	return t
}
