package config

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Axis is one hyperparameter and its candidate values.
type Axis struct {
	Name   string
	Values []any
}

// Hyperparams is an ordered set of axes. In YAML it is a mapping from name
// to a list of values; mapping order is kept.
type Hyperparams struct {
	axes []Axis
}

// Param is the value one run uses for one hyperparameter.
type Param struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
}

func (p Param) String() string {
	return p.Name + "=" + FormatValue(p.Value)
}

func (h *Hyperparams) Add(name string, values ...any) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrMissingProperty)
	}
	if len(values) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyAxis, name)
	}
	if h.index(name) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	h.axes = append(h.axes, Axis{Name: name, Values: append([]any(nil), values...)})
	return nil
}

func (h *Hyperparams) Len() int {
	return len(h.axes)
}

func (h *Hyperparams) Names() []string {
	var res = make([]string, len(h.axes))
	for i, axis := range h.axes {
		res[i] = axis.Name
	}
	return res
}

func (h *Hyperparams) Values(name string) ([]any, bool) {
	var i = h.index(name)
	if i < 0 {
		return nil, false
	}
	return h.axes[i].Values, true
}

func (h *Hyperparams) index(name string) int {
	for i := range h.axes {
		if h.axes[i].Name == name {
			return i
		}
	}
	return -1
}

func (h *Hyperparams) clone() Hyperparams {
	var res = Hyperparams{axes: make([]Axis, len(h.axes))}
	for i, axis := range h.axes {
		res.axes[i] = Axis{Name: axis.Name, Values: append([]any(nil), axis.Values...)}
	}
	return res
}

func (h *Hyperparams) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*h = Hyperparams{}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: hyperparams must be a mapping", node.Line)
	}
	var res Hyperparams
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key, valueNode = node.Content[i], node.Content[i+1]
		var values []any
		if valueNode.Kind == yaml.SequenceNode {
			if err := valueNode.Decode(&values); err != nil {
				return err
			}
		} else {
			var v any
			if err := valueNode.Decode(&v); err != nil {
				return err
			}
			values = []any{v}
		}
		if err := res.Add(key.Value, values...); err != nil {
			return fmt.Errorf("line %d: %w", key.Line, err)
		}
	}
	*h = res
	return nil
}

func (h Hyperparams) MarshalYAML() (any, error) {
	var node = &yaml.Node{Kind: yaml.MappingNode}
	for _, axis := range h.axes {
		var values yaml.Node
		if err := values.Encode(axis.Values); err != nil {
			return nil, err
		}
		values.Style = yaml.FlowStyle
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: axis.Name},
			&values)
	}
	return node, nil
}

// FormatValue renders a value for run names. Lists are joined with '_',
// integral floats keep a trailing ".0" so they never collide with ints.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return strings.ReplaceAll(x, "/", "-")
	case bool:
		return strconv.FormatBool(x)
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	}
	var rv = reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Slice, reflect.Array:
		var parts = make([]string, rv.Len())
		for i := range parts {
			parts[i] = FormatValue(rv.Index(i).Interface())
		}
		return strings.Join(parts, "_")
	}
	return strings.ReplaceAll(fmt.Sprint(v), "/", "-")
}

func formatFloat(f float64, bitSize int) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', -1, bitSize) + ".0"
	}
	return strconv.FormatFloat(f, 'g', -1, bitSize)
}

func toFloat(v any) (float64, error) {
	var rv = reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

func toInt(v any) (int, error) {
	var rv = reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		var f = rv.Float()
		if f == math.Trunc(f) {
			return int(f), nil
		}
	}
	return 0, fmt.Errorf("expected an integer, got %v (%T)", v, v)
}

func toInts(v any) ([]int, error) {
	var rv = reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		return []int{n}, nil
	}
	var res = make([]int, rv.Len())
	for i := range res {
		n, err := toInt(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		res[i] = n
	}
	return res, nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(x)
	}
	return false, fmt.Errorf("expected a bool, got %T", v)
}

func toString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("expected a string, got %T", v)
}
