package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	SubprotocolJSON    = "json"
	SubprotocolMsgpack = "msgpack"
)

var (
	ErrEmptyFrame     = errors.New("protocol: empty frame")
	ErrUnknownEvent   = errors.New("protocol: unknown event")
	ErrMissingPayload = errors.New("protocol: missing payload")
)

// Codec はエンベロープ {event, data} とバイト列を相互変換します。
type Codec interface {
	Name() string
	// Binary はバイナリフレームで送るべきかどうかを返します。
	Binary() bool
	Encode(out Outbound) ([]byte, error)
	// Decode は受信フレームを NewPlayerRequest / PlayerInput / PlayerCollision のいずれかに変換します。
	Decode(data []byte) (any, error)
}

// Subprotocols は WebSocket ハンドシェイクで提示するサブプロトコルです。
func Subprotocols() []string {
	return []string{SubprotocolJSON, SubprotocolMsgpack}
}

// CodecFor はネゴシエートされたサブプロトコルに対応するコーデックを返します。
// 未指定の場合は JSON です。
func CodecFor(subprotocol string) Codec {
	if subprotocol == SubprotocolMsgpack {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

type JSONCodec struct{}

type jsonEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (JSONCodec) Name() string { return SubprotocolJSON }
func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Encode(out Outbound) ([]byte, error) {
	if out.Event == "" {
		return nil, fmt.Errorf("%w: empty event", ErrUnknownEvent)
	}
	return json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{out.Event, out.Data})
}

func (JSONCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	return decodeEvent(env.Event, len(env.Data) > 0, func(v any) error {
		return json.Unmarshal(env.Data, v)
	})
}

type MsgpackCodec struct{}

type msgpackEnvelope struct {
	Event string             `msgpack:"event"`
	Data  msgpack.RawMessage `msgpack:"data"`
}

func (MsgpackCodec) Name() string { return SubprotocolMsgpack }
func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) Encode(out Outbound) ([]byte, error) {
	if out.Event == "" {
		return nil, fmt.Errorf("%w: empty event", ErrUnknownEvent)
	}
	return msgpack.Marshal(&struct {
		Event string `msgpack:"event"`
		Data  any    `msgpack:"data"`
	}{out.Event, out.Data})
}

func (MsgpackCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	var env msgpackEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	return decodeEvent(env.Event, len(env.Data) > 0, func(v any) error {
		return msgpack.Unmarshal(env.Data, v)
	})
}

func decodeEvent(event string, hasData bool, unmarshal func(any) error) (any, error) {
	switch event {
	case EventNewPlayer:
		return decodeAs[NewPlayerRequest](event, hasData, unmarshal)
	case EventPlayerInput:
		return decodeAs[PlayerInput](event, hasData, unmarshal)
	case EventPlayerCollision:
		return decodeAs[PlayerCollision](event, hasData, unmarshal)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
}

func decodeAs[T any](event string, hasData bool, unmarshal func(any) error) (any, error) {
	var out T
	if !hasData {
		return nil, fmt.Errorf("%w: %s", ErrMissingPayload, event)
	}
	if err := unmarshal(&out); err != nil {
		return nil, fmt.Errorf("protocol: decode %s: %w", event, err)
	}
	return out, nil
}
