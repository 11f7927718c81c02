package chat_test

import (
	"testing"
	"time"

	"github.com/asmorodws/chatapp-nextjs/internal/chat"
	"github.com/stretchr/testify/require"
)

func TestTypingNotifier_NoTTLKeepsNoState(t *testing.T) {
	req := require.New(t)
	out := newRecorder()
	n := chat.NewTypingNotifier(chat.NewBroadcaster(staticMembers{"R1": {"a", "b"}}, out), 0)

	n.SetTyping("a", "R1", "u1", true)
	req.Zero(n.Pending())
	req.Empty(out.of("a"))
	req.Equal([]string{chat.EventUserTyping}, out.types("b"))
}

func TestTypingNotifier_FalseCancelsExpiry(t *testing.T) {
	req := require.New(t)
	out := newRecorder()
	n := chat.NewTypingNotifier(chat.NewBroadcaster(staticMembers{"R1": {"a", "b"}}, out), 30*time.Millisecond)
	defer n.Close()

	n.SetTyping("a", "R1", "u1", true)
	req.Equal(1, n.Pending())
	n.SetTyping("a", "R1", "u1", false)
	req.Zero(n.Pending())

	time.Sleep(60 * time.Millisecond)
	req.Len(out.of("b"), 2)
}

func TestTypingNotifier_RepeatedTrueRestartsTimer(t *testing.T) {
	req := require.New(t)
	out := newRecorder()
	n := chat.NewTypingNotifier(chat.NewBroadcaster(staticMembers{"R1": {"a", "b"}}, out), 20*time.Millisecond)
	defer n.Close()

	n.SetTyping("a", "R1", "u1", true)
	n.SetTyping("a", "R1", "u1", true)
	req.Equal(1, n.Pending())

	req.Eventually(func() bool { return n.Pending() == 0 }, time.Second, 5*time.Millisecond)
	req.Eventually(func() bool { return len(out.of("b")) == 3 }, time.Second, 5*time.Millisecond)
}

func TestTypingNotifier_ClearConn(t *testing.T) {
	req := require.New(t)
	out := newRecorder()
	n := chat.NewTypingNotifier(chat.NewBroadcaster(staticMembers{"R1": {"a", "b"}}, out), time.Hour)
	defer n.Close()

	n.SetTyping("a", "R1", "u1", true)
	n.ClearConn("b")
	req.Equal(1, n.Pending())
	n.ClearConn("a")
	req.Zero(n.Pending())
	req.Equal([]string{chat.EventUserTyping, chat.EventUserTyping}, out.types("b"))
	req.Empty(out.of("a"))
}
