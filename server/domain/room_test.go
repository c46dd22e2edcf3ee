package domain_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"engulf/server/domain"
	"engulf/server/protocol"
)

// recordingApplication は受け取ったメッセージを記録し、data を全員へエコーします。
type recordingApplication struct {
	mu    sync.Mutex
	msgs  []domain.Message
	ticks int
}

func (a *recordingApplication) HandleMessage(ctx context.Context, out domain.Sender, msg domain.Message) error {
	a.mu.Lock()
	a.msgs = append(a.msgs, msg)
	a.mu.Unlock()
	if msg.Kind == domain.MessageData {
		out.Broadcast(ctx, protocol.Outbound{Event: "echo", Data: msg.Event})
	}
	if msg.Kind == domain.MessageLeave {
		return errors.New("leave handler failed")
	}
	return nil
}

func (a *recordingApplication) Tick(ctx context.Context, out domain.Sender) {
	a.mu.Lock()
	a.ticks++
	a.mu.Unlock()
}

func (a *recordingApplication) snapshot() ([]domain.Message, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Message(nil), a.msgs...), a.ticks
}

func TestNewRoom_Validation(t *testing.T) {
	if _, err := domain.NewRoom("r", nil, &recordingApplication{}, 0); !errors.Is(err, domain.ErrInvalidRoom) {
		t.Fatalf("err = %v, want ErrInvalidRoom", err)
	}
	if _, err := domain.NewRoom("r", domain.NewSimplePubSub(1), nil, 0); !errors.Is(err, domain.ErrInvalidRoom) {
		t.Fatalf("err = %v, want ErrInvalidRoom", err)
	}
}

func TestRoom_RoutesMessagesAndTicks(t *testing.T) {
	ps := domain.NewSimplePubSub(16)
	app := &recordingApplication{}
	room, err := domain.NewRoom("main", ps, app, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}

	alice := ps.Subscribe(domain.SessionTopic("alice"))
	bob := ps.Subscribe(domain.SessionTopic("bob"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- room.Run(ctx) }()

	roomTopic := domain.RoomTopic("main")
	publish := func(msg domain.Message) {
		t.Helper()
		if err := ps.Publish(ctx, roomTopic, msg); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	publish(domain.Message{SessionID: "alice", Kind: domain.MessageJoin})
	publish(domain.Message{SessionID: "bob", Kind: domain.MessageJoin})
	publish(domain.Message{SessionID: "alice", Kind: domain.MessageData, Event: "hello"})

	for name, ch := range map[string]<-chan domain.Message{"alice": alice, "bob": bob} {
		select {
		case msg := <-ch:
			out, ok := msg.Event.(protocol.Outbound)
			if !ok || out.Event != "echo" || out.Data != "hello" {
				t.Errorf("%s got %+v", name, msg.Event)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s did not receive broadcast", name)
		}
	}

	// leave 後は bob に届かない
	publish(domain.Message{SessionID: "bob", Kind: domain.MessageLeave})
	publish(domain.Message{SessionID: "alice", Kind: domain.MessageData, Event: "again"})
	select {
	case <-alice:
	case <-time.After(time.Second):
		t.Fatal("alice did not receive second broadcast")
	}
	select {
	case msg := <-bob:
		t.Fatalf("bob received %+v after leave", msg)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	msgs, ticks := app.snapshot()
	wantKinds := []domain.MessageKind{
		domain.MessageJoin, domain.MessageJoin, domain.MessageData, domain.MessageLeave, domain.MessageData,
	}
	if len(msgs) != len(wantKinds) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(wantKinds))
	}
	for i, k := range wantKinds {
		if msgs[i].Kind != k {
			t.Errorf("msgs[%d].Kind = %s, want %s", i, msgs[i].Kind, k)
		}
	}
	if ticks == 0 {
		t.Errorf("application was never ticked")
	}
}

func TestRoom_BroadcastExcept(t *testing.T) {
	ps := domain.NewSimplePubSub(4)
	room, err := domain.NewRoom("main", ps, &recordingApplication{}, time.Hour)
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	alice := ps.Subscribe(domain.SessionTopic("alice"))
	bob := ps.Subscribe(domain.SessionTopic("bob"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- room.Run(ctx) }()

	for _, id := range []domain.SessionID{"alice", "bob"} {
		if err := ps.Publish(ctx, domain.RoomTopic("main"), domain.Message{SessionID: id, Kind: domain.MessageJoin}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	// join 処理完了を待つため data を1つ流してエコーを受け取る
	if err := ps.Publish(ctx, domain.RoomTopic("main"), domain.Message{SessionID: "alice", Kind: domain.MessageData, Event: "sync"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	<-alice
	<-bob
	cancel()
	<-done

	// Run 終了後は room のゴルーチンと競合しない
	room.BroadcastExcept(context.Background(), "alice", protocol.Outbound{Event: protocol.EventRemovePlayer})
	select {
	case <-alice:
		t.Fatal("excluded session received message")
	default:
	}
	select {
	case msg := <-bob:
		if out := msg.Event.(protocol.Outbound); out.Event != protocol.EventRemovePlayer {
			t.Fatalf("bob got %q", out.Event)
		}
	default:
		t.Fatal("bob did not receive message")
	}
	if room.NumSessions() != 2 {
		t.Fatalf("NumSessions = %d, want 2", room.NumSessions())
	}
}
