package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

// Subprotocols offered during the upgrade, in preference order. Clients that
// negotiate none get JSON.
const (
	SubprotocolJSON = "json"
	SubprotocolCBOR = "cbor"
)

// Codec encodes outbound frames and decodes inbound ones for one wire format.
type Codec interface {
	// MessageType is the websocket frame type the codec writes.
	MessageType() int
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	// DecodeFrame splits an inbound frame into its envelope and raw data.
	DecodeFrame(data []byte) (Inbound, error)
}

// Inbound is a decoded request envelope. Data stays encoded until a handler
// binds it to a request type.
type Inbound struct {
	Event     string
	RequestID string
	data      []byte
	codec     Codec
}

// Bind decodes the frame's data into v. Frames without data leave v untouched.
func (in Inbound) Bind(v any) error {
	if len(in.data) == 0 {
		return nil
	}
	return in.codec.Unmarshal(in.data, v)
}

// JSONCodec is the default text codec.
type JSONCodec struct{}

var _ Codec = JSONCodec{}

func (JSONCodec) MessageType() int { return websocket.TextMessage }

// Marshal leaves HTML characters unescaped so opaque payloads go back out
// byte for byte.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (c JSONCodec) DecodeFrame(data []byte) (Inbound, error) {
	var env struct {
		Event     string          `json:"event"`
		RequestID string          `json:"requestId"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("decode json frame: %w", err)
	}
	if string(env.Data) == "null" {
		env.Data = nil
	}
	return Inbound{Event: env.Event, RequestID: env.RequestID, data: env.Data, codec: c}, nil
}

// CBORCodec is the binary codec. Field names follow the json struct tags, so
// both codecs produce the same logical frames. Times are encoded as RFC 3339
// strings and maps decode with string keys, matching JSON clients.
type CBORCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec = (*CBORCodec)(nil)

// NewCBORCodec builds the CBOR codec.
func NewCBORCodec() (*CBORCodec, error) {
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor enc mode: %w", err)
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor dec mode: %w", err)
	}
	return &CBORCodec{enc: enc, dec: dec}, nil
}

func (c *CBORCodec) MessageType() int { return websocket.BinaryMessage }

func (c *CBORCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }

func (c *CBORCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

func (c *CBORCodec) DecodeFrame(data []byte) (Inbound, error) {
	var env struct {
		Event     string          `cbor:"event"`
		RequestID string          `cbor:"requestId"`
		Data      cbor.RawMessage `cbor:"data"`
	}
	if err := c.dec.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("decode cbor frame: %w", err)
	}
	// 0xf6 is CBOR null.
	if len(env.Data) == 1 && env.Data[0] == 0xf6 {
		env.Data = nil
	}
	return Inbound{Event: env.Event, RequestID: env.RequestID, data: env.Data, codec: c}, nil
}
