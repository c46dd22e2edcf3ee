package main

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"engulf/server/protocol"
)

// decodeServerEvent はサーバーから届いたフレームを型付きのイベントに変換します。
func decodeServerEvent(binary bool, frame []byte) (inbound, error) {
	var (
		event     string
		unmarshal func(v any) error
	)
	if binary {
		var env struct {
			Event string             `msgpack:"event"`
			Data  msgpack.RawMessage `msgpack:"data"`
		}
		if err := msgpack.Unmarshal(frame, &env); err != nil {
			return inbound{}, err
		}
		event = env.Event
		unmarshal = func(v any) error { return msgpack.Unmarshal(env.Data, v) }
	} else {
		var env struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(frame, &env); err != nil {
			return inbound{}, err
		}
		event = env.Event
		unmarshal = func(v any) error { return json.Unmarshal(env.Data, v) }
	}

	var (
		data any
		err  error
	)
	switch event {
	case protocol.EventSession:
		var s protocol.Session
		err = unmarshal(&s)
		data = s
	case protocol.EventNewPlayer, protocol.EventMovePlayer:
		var p protocol.PlayerState
		err = unmarshal(&p)
		data = p
	case protocol.EventRemovePlayer:
		var r protocol.RemovePlayer
		err = unmarshal(&r)
		data = r
	default:
		return inbound{}, fmt.Errorf("unknown event %q", event)
	}
	if err != nil {
		return inbound{}, fmt.Errorf("decode %s: %w", event, err)
	}
	return inbound{event: event, data: data}, nil
}
