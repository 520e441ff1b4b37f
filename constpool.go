// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

import (
	"fmt"

	"github.com/pypperoni/pypperoni/marshal"
)

// toMarshalValue converts this core's own Value sum type into marshal's,
// the mirror of pycompile.go's fromMarshalValue, so one constant pool
// serializer (marshal.Encode) can be shared by both directions of the
// marshal boundary.
func toMarshalValue(v Value) (marshal.Value, error) {
	switch t := v.(type) {
	case NoneValue:
		return marshal.NoneValue{}, nil
	case BoolValue:
		return marshal.BoolValue(t), nil
	case IntValue:
		return marshal.IntValue{V: t.V}, nil
	case FloatValue:
		return marshal.FloatValue(t), nil
	case StrValue:
		return marshal.StrValue(t), nil
	case BytesValue:
		return marshal.BytesValue(t), nil
	case TupleValue:
		out := make(marshal.TupleValue, len(t))
		for i, elem := range t {
			mv, err := toMarshalValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = mv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("pypperoni: cannot marshal constant of type %T into the constant pool", v)
	}
}

// EncodeConstPool serializes a code object's whole constant pool as one
// marshalled tuple (spec §4.2/§6 "one load-on-first-use function per
// file"), ground: original_source/context.py's `dumpconsts`
// ("marshal.dumps(tuple(self._consts))").
func EncodeConstPool(consts []Value) ([]byte, error) {
	tuple := make(marshal.TupleValue, len(consts))
	for i, c := range consts {
		mv, err := toMarshalValue(c)
		if err != nil {
			return nil, err
		}
		tuple[i] = mv
	}
	return marshal.Encode(tuple)
}
