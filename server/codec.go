package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

var ErrEmptyMessage = errors.New("empty message")

// Envelope is one decoded message. The payload stays raw until the handler
// knows which type it wants.
type Envelope struct {
	T     string
	raw   []byte
	codec Codec
}

// Codec frames messages as {t, p}. JSON goes out as text frames, msgpack
// as binary frames; both use the json struct tags.
type Codec interface {
	Name() string
	FrameType() int
	Encode(t string, payload any) ([]byte, error)
	Decode(b []byte) (Envelope, error)
	unmarshal(b []byte, out any) error
}

type outgoing struct {
	T string `json:"t"`
	P any    `json:"p,omitempty"`
}

// CodecByName returns the JSON codec for anything other than "msgpack".
func CodecByName(name string) Codec {
	if name == "msgpack" {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

type JSONCodec struct{}

func (JSONCodec) Name() string   { return "json" }
func (JSONCodec) FrameType() int { return websocket.TextMessage }

func (JSONCodec) Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("encode: empty message type")
	}
	return json.Marshal(outgoing{T: t, P: payload})
}

func (c JSONCodec) Decode(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, ErrEmptyMessage
	}
	var in struct {
		T string          `json:"t"`
		P json.RawMessage `json:"p"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return Envelope{T: in.T, raw: in.P, codec: c}, nil
}

func (JSONCodec) unmarshal(b []byte, out any) error { return json.Unmarshal(b, out) }

type MsgpackCodec struct{}

func (MsgpackCodec) Name() string   { return "msgpack" }
func (MsgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (MsgpackCodec) Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("encode: empty message type")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetOmitEmpty(true)
	if err := enc.Encode(outgoing{T: t, P: payload}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c MsgpackCodec) Decode(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, ErrEmptyMessage
	}
	var in struct {
		T string             `msgpack:"t"`
		P msgpack.RawMessage `msgpack:"p"`
	}
	if err := msgpack.Unmarshal(b, &in); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return Envelope{T: in.T, raw: in.P, codec: c}, nil
}

func (MsgpackCodec) unmarshal(b []byte, out any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	return dec.Decode(out)
}

// DecodePayload decodes env's payload as T.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.raw) == 0 || env.codec == nil {
		return out, fmt.Errorf("empty payload for type %q", env.T)
	}
	err := env.codec.unmarshal(env.raw, &out)
	return out, err
}
