package ws

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/asmorodws/chatapp-nextjs/internal/chat"
)

func newTestClient(id string, buf int) *Client {
	return &Client{id: id, userID: "u-" + id, send: make(chan []byte, buf)}
}

func TestNewGateway(t *testing.T) {
	gw := NewGateway()
	if gw == nil {
		t.Fatal("NewGateway() returned nil")
	}
	if gw.Count() != 0 {
		t.Errorf("Count() = %d, want 0", gw.Count())
	}
}

func TestGateway_DeliverUnknown(t *testing.T) {
	gw := NewGateway()
	if err := gw.Deliver("nobody", []byte("x")); !errors.Is(err, chat.ErrConnGone) {
		t.Errorf("Deliver() error = %v, want ErrConnGone", err)
	}
}

func TestGateway_Deliver(t *testing.T) {
	gw := NewGateway()
	c := newTestClient("a", 4)
	gw.register(c)

	if err := gw.Deliver("a", []byte("hello")); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	select {
	case got := <-c.send:
		if string(got) != "hello" {
			t.Errorf("received %s, want hello", got)
		}
	default:
		t.Error("no frame in send queue")
	}
}

func TestGateway_SlowClientDropped(t *testing.T) {
	gw := NewGateway()
	slow := newTestClient("slow", 1)
	fast := newTestClient("fast", 4)
	gw.register(slow)
	gw.register(fast)

	if err := gw.Deliver("slow", []byte("1")); err != nil {
		t.Fatalf("first Deliver() error = %v", err)
	}
	if err := gw.Deliver("slow", []byte("2")); !errors.Is(err, errSlowClient) {
		t.Fatalf("second Deliver() error = %v, want errSlowClient", err)
	}
	if gw.Count() != 1 {
		t.Errorf("Count() after drop = %d, want 1", gw.Count())
	}
	// 已缓冲的帧仍可读出，随后通道关闭
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("slow client send channel should be closed")
	}
	if err := gw.Deliver("fast", []byte("3")); err != nil {
		t.Errorf("Deliver() to fast client error = %v", err)
	}
}

func TestGateway_UnregisterTwice(t *testing.T) {
	gw := NewGateway()
	c := newTestClient("a", 1)
	gw.register(c)
	gw.unregister(c)
	gw.unregister(c)
	if gw.Count() != 0 {
		t.Errorf("Count() = %d, want 0", gw.Count())
	}
}

func TestGateway_Close(t *testing.T) {
	gw := NewGateway()
	clients := []*Client{newTestClient("a", 1), newTestClient("b", 1)}
	for _, c := range clients {
		gw.register(c)
	}
	gw.Close()
	for _, c := range clients {
		if _, ok := <-c.send; ok {
			t.Errorf("client %s send channel still open", c.id)
		}
	}
	if gw.Count() != 0 {
		t.Errorf("Count() after Close = %d, want 0", gw.Count())
	}
}

func TestGateway_Concurrent(t *testing.T) {
	gw := NewGateway()
	const n = 20
	clients := make([]*Client, n)
	for i := range clients {
		clients[i] = newTestClient(strconv.Itoa(i), 2)
		gw.register(clients[i])
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = gw.Deliver(strconv.Itoa(id), []byte("x"))
			}
		}(i)
		go func(c *Client) {
			defer wg.Done()
			gw.unregister(c)
		}(clients[i])
	}
	wg.Wait()

	if gw.Count() != 0 {
		t.Errorf("Count() after concurrent unregister = %d, want 0", gw.Count())
	}
}
