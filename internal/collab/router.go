package collab

import (
	"github.com/rs/zerolog"

	"github.com/colonyops/huddle/internal/core/eventbus"
	"github.com/colonyops/huddle/internal/core/logging"
)

// Message is one outbound frame.
type Message struct {
	Event     string `json:"event"`
	RequestID string `json:"requestId,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Outbox delivers messages to connections. Send must not block; it reports
// false when the connection is gone or cannot keep up.
type Outbox interface {
	Send(connectionID string, msg Message) bool
}

// Target selects the recipients of an event.
type Target int

const (
	// TargetRoom delivers to every connection in the room, sender included.
	TargetRoom Target = iota
	// TargetRoomExceptSender delivers to the room minus the sender.
	TargetRoomExceptSender
	// TargetSender delivers to the requester only.
	TargetSender
)

// Route describes how one event kind fans out.
type Route struct {
	Target Target
	// Ack, when set, names the acknowledgement sent to the sender in
	// addition to the broadcast.
	Ack string
}

// Routes is the fan-out table.
var Routes = map[eventbus.Kind]Route{
	eventbus.KindParticipantJoined:       {Target: TargetRoomExceptSender},
	eventbus.KindParticipantLeft:         {Target: TargetRoomExceptSender},
	eventbus.KindPresenceUpdated:         {Target: TargetRoomExceptSender},
	eventbus.KindContentChanged:          {Target: TargetRoomExceptSender},
	eventbus.KindCommentAdded:            {Target: TargetRoom, Ack: "comment:add"},
	eventbus.KindCommentResolved:         {Target: TargetRoom, Ack: "comment:resolve"},
	eventbus.KindCommentUnresolved:       {Target: TargetRoom, Ack: "comment:unresolve"},
	eventbus.KindSuggestionAdded:         {Target: TargetRoom, Ack: "suggestion:add"},
	eventbus.KindSuggestionStatusChanged: {Target: TargetRoom, Ack: "suggestion:status"},
	eventbus.KindVersionCreated:          {Target: TargetRoom, Ack: "version:create"},
	eventbus.KindSessionStarted:          {Target: TargetSender},
	eventbus.KindCommentList:             {Target: TargetSender},
	eventbus.KindSuggestionList:          {Target: TargetSender},
	eventbus.KindVersionHistory:          {Target: TargetSender},
	eventbus.KindVersionRestore:          {Target: TargetSender},
}

// Router fans committed events out to connections according to Routes.
type Router struct {
	out Outbox
	log zerolog.Logger
}

// NewRouter creates a router delivering to out.
func NewRouter(out Outbox) *Router {
	return &Router{out: out, log: logging.Component("router")}
}

// Register subscribes the router to the bus.
func (r *Router) Register(bus *eventbus.EventBus) {
	bus.Subscribe(r.Handle)
}

// Handle delivers one event.
func (r *Router) Handle(ev eventbus.Event) {
	route, ok := Routes[ev.Kind]
	if !ok {
		r.log.Warn().Str("event", string(ev.Kind)).Msg("no route for event")
		return
	}

	switch route.Target {
	case TargetSender:
		r.send(ev.Sender, Message{Event: string(ev.Kind), RequestID: ev.RequestID, Data: ev.Payload})
		return
	case TargetRoom, TargetRoomExceptSender:
		broadcast := Message{Event: string(ev.Kind), Data: ev.Payload}
		for _, conn := range ev.Room {
			if route.Target == TargetRoomExceptSender && conn == ev.Sender {
				continue
			}
			r.send(conn, broadcast)
		}
	}

	if route.Ack != "" && ev.Sender != "" {
		ack := ev.AckPayload
		if ack == nil {
			ack = ev.Payload
		}
		r.send(ev.Sender, Message{Event: route.Ack, RequestID: ev.RequestID, Data: ack})
	}
}

func (r *Router) send(conn string, msg Message) {
	if conn == "" {
		return
	}
	if !r.out.Send(conn, msg) {
		r.log.Debug().
			Str("connection_id", conn).
			Str("event", msg.Event).
			Msg("message not delivered")
	}
}
