package config

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// ctyToGo converts an evaluated cty.Value into a plain Go value so job
// parameters can travel as map[string]any.
func ctyToGo(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	if val.Type().IsPrimitiveType() {
		switch val.Type() {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			f, _ := val.AsBigFloat().Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", val.Type().FriendlyName())
		}
	}
	if val.Type().IsObjectType() || val.Type().IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			converted, err := ctyToGo(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = converted
		}
		return out, nil
	}
	if val.Type().IsTupleType() || val.Type().IsListType() || val.Type().IsSetType() {
		var out []any
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			converted, err := ctyToGo(v)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value type: %s", val.Type().FriendlyName())
}
