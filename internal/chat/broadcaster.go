package chat

import (
	"encoding/json"

	"github.com/asmorodws/chatapp-nextjs/internal/metrics"
	"github.com/rs/zerolog/log"
)

type memberSource interface {
	MembersOf(roomID string) []string
}

// Broadcaster fans an event out to a room's current members. Each recipient
// is independent: a failed delivery is logged and the loop moves on.
type Broadcaster struct {
	members memberSource
	out     Deliverer
}

func NewBroadcaster(members memberSource, out Deliverer) *Broadcaster {
	return &Broadcaster{members: members, out: out}
}

// Broadcast delivers evt to every member of roomID except exclude and
// returns how many deliveries succeeded.
func (b *Broadcaster) Broadcast(roomID string, evt Event, exclude string) int {
	frame, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("event", evt.Type).Msg("encode event")
		return 0
	}
	sent := 0
	for _, connID := range b.members.MembersOf(roomID) {
		if connID == exclude {
			continue
		}
		if err := b.out.Deliver(connID, frame); err != nil {
			metrics.DeliveryFailures.Inc()
			derr := &DeliveryError{ConnID: connID, Err: err}
			log.Warn().Err(derr).Str("room_id", roomID).Str("event", evt.Type).Msg("broadcast")
			continue
		}
		sent++
	}
	return sent
}

// BroadcastAll includes the sender, e.g. so it sees server-assigned ids.
func (b *Broadcaster) BroadcastAll(roomID string, evt Event) int {
	return b.Broadcast(roomID, evt, "")
}

// SendTo delivers evt to a single connection.
func (b *Broadcaster) SendTo(connID string, evt Event) error {
	frame, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if err := b.out.Deliver(connID, frame); err != nil {
		metrics.DeliveryFailures.Inc()
		return &DeliveryError{ConnID: connID, Err: err}
	}
	return nil
}
