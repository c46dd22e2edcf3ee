package domain

import (
	"context"
	"errors"
	"sync"
)

// Topic は PubSub の宛先です。
type Topic string

// RoomTopic は room 宛の受信メッセージ(join/data/leave)のトピックです。
func RoomTopic(id RoomID) Topic { return Topic("room:" + string(id)) }

// SessionTopic はセッション宛の送信メッセージのトピックです。
func SessionTopic(id SessionID) Topic { return Topic("session:" + string(id)) }

// MessageKind はメッセージの種別です。
type MessageKind uint8

const (
	MessageData MessageKind = iota
	MessageJoin
	MessageLeave
)

func (k MessageKind) String() string {
	switch k {
	case MessageData:
		return "data"
	case MessageJoin:
		return "join"
	case MessageLeave:
		return "leave"
	default:
		return "unknown"
	}
}

// Message は PubSub を流れる1メッセージです。
// room 宛ではデコード済みの受信イベント、session 宛では protocol.Outbound を Event に持ちます。
type Message struct {
	SessionID SessionID
	Kind      MessageKind
	Event     any
}

var (
	// ErrNoSubscriber は購読者がいないトピックに publish した場合に返されるエラーです。
	ErrNoSubscriber = errors.New("pubsub: no subscriber")
	// ErrBackpressure は購読者のチャネルが満杯の場合に返されるエラーです。
	ErrBackpressure = errors.New("pubsub: subscriber channel is full")
)

type PubSub interface {
	Subscribe(topic Topic) <-chan Message
	Unsubscribe(topic Topic, ch <-chan Message)
	// Publish は全購読者に届くか ctx が終了するまでブロックします。
	Publish(ctx context.Context, topic Topic, msg Message) error
	// TryPublish はブロックせず、満杯の購読者へのメッセージを捨てます。
	TryPublish(topic Topic, msg Message) error
}

// SimplePubSub はプロセス内のチャネルで実装した PubSub です。
// Unsubscribe はチャネルを close しません。購読側は ctx で終了します。
type SimplePubSub struct {
	mu         sync.RWMutex
	subs       map[Topic][]chan Message
	bufferSize int
}

var _ PubSub = (*SimplePubSub)(nil)

func NewSimplePubSub(bufferSize int) *SimplePubSub {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &SimplePubSub{
		subs:       make(map[Topic][]chan Message),
		bufferSize: bufferSize,
	}
}

func (p *SimplePubSub) Subscribe(topic Topic) <-chan Message {
	ch := make(chan Message, p.bufferSize)
	p.mu.Lock()
	p.subs[topic] = append(p.subs[topic], ch)
	p.mu.Unlock()
	return ch
}

func (p *SimplePubSub) Unsubscribe(topic Topic, ch <-chan Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs := p.subs[topic]
	for i, c := range subs {
		if (<-chan Message)(c) == ch {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(p.subs, topic)
		return
	}
	p.subs[topic] = subs
}

func (p *SimplePubSub) Publish(ctx context.Context, topic Topic, msg Message) error {
	subs := p.snapshot(topic)
	if len(subs) == 0 {
		return ErrNoSubscriber
	}
	for _, ch := range subs {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *SimplePubSub) TryPublish(topic Topic, msg Message) error {
	subs := p.snapshot(topic)
	if len(subs) == 0 {
		return ErrNoSubscriber
	}
	var err error
	for _, ch := range subs {
		select {
		case ch <- msg:
		default:
			err = ErrBackpressure
		}
	}
	return err
}

func (p *SimplePubSub) snapshot(topic Topic) []chan Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	subs := p.subs[topic]
	if len(subs) == 0 {
		return nil
	}
	out := make([]chan Message, len(subs))
	copy(out, subs)
	return out
}
