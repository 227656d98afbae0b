// Package payload holds opaque client data. The server stores and relays
// these values without interpreting them, so they are kept as the client's
// JSON text rather than decoded into Go values.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

// Raw is an opaque payload stored as JSON text. A nil Raw and the JSON
// literal null both mean "no value".
//
// JSON clients get back exactly the bytes they sent. CBOR frames are
// converted to JSON on the way in and back on the way out; integers of any
// size survive the trip.
type Raw []byte

var (
	_ json.Marshaler   = Raw(nil)
	_ json.Unmarshaler = (*Raw)(nil)
	_ cbor.Marshaler   = Raw(nil)
	_ cbor.Unmarshaler = (*Raw)(nil)
)

var (
	jsonNull      = []byte("null")
	cborNull      = []byte{0xf6}
	cborUndefined = []byte{0xf7}
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.EncOptions{Sort: cbor.SortBytewiseLexical, Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		BigIntDec:      cbor.BigIntDecodePointer,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Of encodes v as a payload.
func Of(v any) (Raw, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return Raw(data), nil
}

// IsNull reports whether the payload carries no value.
func (r Raw) IsNull() bool {
	return len(bytes.TrimSpace(r)) == 0 || bytes.Equal(bytes.TrimSpace(r), jsonNull)
}

// Decode unmarshals the payload into v, keeping numbers as json.Number when
// v is an interface.
func (r Raw) Decode(v any) error {
	if r.IsNull() {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(r))
	dec.UseNumber()
	return dec.Decode(v)
}

func (r Raw) MarshalJSON() ([]byte, error) {
	if r.IsNull() {
		return jsonNull, nil
	}
	return r, nil
}

func (r *Raw) UnmarshalJSON(data []byte) error {
	if r == nil {
		return fmt.Errorf("payload: UnmarshalJSON on nil pointer")
	}
	*r = append((*r)[:0], data...)
	return nil
}

func (r Raw) MarshalCBOR() ([]byte, error) {
	if r.IsNull() {
		return cborNull, nil
	}
	var v any
	if err := r.Decode(&v); err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	v, err := fromJSON(v)
	if err != nil {
		return nil, err
	}
	return cborEnc.Marshal(v)
}

func (r *Raw) UnmarshalCBOR(data []byte) error {
	if r == nil {
		return fmt.Errorf("payload: UnmarshalCBOR on nil pointer")
	}
	if bytes.Equal(data, cborNull) || bytes.Equal(data, cborUndefined) {
		*r = Raw(jsonNull)
		return nil
	}
	var v any
	if err := cborDec.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	*r = Raw(out)
	return nil
}

// fromJSON replaces json.Number values with the narrowest CBOR-friendly
// number that holds them exactly.
func fromJSON(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		return number(t)
	case map[string]any:
		for k, e := range t {
			n, err := fromJSON(e)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
		return t, nil
	case []any:
		for i, e := range t {
			n, err := fromJSON(e)
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
		return t, nil
	default:
		return v, nil
	}
}

func number(n json.Number) (any, error) {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u, nil
	}
	if b, ok := new(big.Int).SetString(s, 10); ok {
		return b, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("payload: number %q: %w", s, err)
	}
	return f, nil
}
