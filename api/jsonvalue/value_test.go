package jsonvalue

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/morikuni/failure/v2"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want Value
	}{
		{
			name: "null",
			raw:  nil,
			want: Null(),
		},
		{
			name: "scalars",
			raw:  []any{"a", 1.5, true, 3},
			want: List(String("a"), Number(1.5), Bool(true), Number(3)),
		},
		{
			name: "nested object",
			raw: map[string]any{
				"title": "Home",
				"tags":  []any{"x"},
				"meta":  map[string]any{"draft": false, "none": nil},
			},
			want: Object(map[string]Value{
				"title": String("Home"),
				"tags":  List(String("x")),
				"meta": Object(map[string]Value{
					"draft": Bool(false),
					"none":  Null(),
				}),
			}),
		},
		{
			name: "json number",
			raw:  json.Number("0.25"),
			want: Number(0.25),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.raw)
			if err != nil {
				t.Fatalf("FromAny() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FromAny() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromAnyUnsupported(t *testing.T) {
	_, err := FromAny(struct{}{})
	if !failure.Is(err, ErrUnsupportedType) {
		t.Errorf("FromAny() error = %v, want %v", err, ErrUnsupportedType)
	}
}

func TestFromLiteral(t *testing.T) {
	literal := &ast.ObjectValue{
		Fields: []*ast.ObjectField{
			{Name: &ast.Name{Value: "count"}, Value: &ast.IntValue{Value: "3"}},
			{Name: &ast.Name{Value: "ratio"}, Value: &ast.FloatValue{Value: "0.5"}},
			{Name: &ast.Name{Value: "name"}, Value: &ast.StringValue{Value: "home"}},
			{Name: &ast.Name{Value: "on"}, Value: &ast.BooleanValue{Value: true}},
			{Name: &ast.Name{Value: "mode"}, Value: &ast.EnumValue{Value: "DARK"}},
			{Name: &ast.Name{Value: "list"}, Value: &ast.ListValue{Values: []ast.Value{
				&ast.IntValue{Value: "1"},
				&ast.StringValue{Value: "two"},
			}}},
			{Name: &ast.Name{Value: "ref"}, Value: &ast.Variable{Name: &ast.Name{Value: "v"}}},
		},
	}

	want := Object(map[string]Value{
		"count": Number(3),
		"ratio": Number(0.5),
		"name":  String("home"),
		"on":    Bool(true),
		"mode":  String("DARK"),
		"list":  List(Number(1), String("two")),
		"ref":   Null(),
	})

	got := FromLiteral(literal)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromLiteral() mismatch (-want +got):\n%s", diff)
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	in := `{"a":[1,"b",null],"c":{"d":true}}`

	var v Value
	if err := json.Unmarshal([]byte(in), &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != in {
		t.Errorf("Marshal() = %s, want %s", out, in)
	}
}

func TestField(t *testing.T) {
	v := Object(map[string]Value{
		"present": String("x"),
		"null":    Null(),
	})

	if _, ok := v.Field("present"); !ok {
		t.Error("Field(present) not found")
	}
	if _, ok := v.Field("null"); ok {
		t.Error("Field(null) reported as present")
	}
	if _, ok := v.Field("missing"); ok {
		t.Error("Field(missing) reported as present")
	}
	if _, ok := String("x").Field("present"); ok {
		t.Error("Field() on a string reported as present")
	}
}
