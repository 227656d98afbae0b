// Package collab coordinates collaborative editing sessions: membership and
// presence, comments, suggestions, versions and content relay. Every
// committed change is published to the event bus; the Router fans events out
// to connections.
package collab

import (
	"context"
	"errors"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"

	"github.com/colonyops/huddle/internal/core/comment"
	"github.com/colonyops/huddle/internal/core/config"
	"github.com/colonyops/huddle/internal/core/eventbus"
	"github.com/colonyops/huddle/internal/core/logging"
	"github.com/colonyops/huddle/internal/core/session"
	"github.com/colonyops/huddle/internal/core/suggestion"
	"github.com/colonyops/huddle/internal/core/validate"
	"github.com/colonyops/huddle/internal/core/version"
)

// Options configures a Service.
type Options struct {
	// DuplicateUsers is config.DuplicateAllow or config.DuplicateReplace.
	DuplicateUsers string
	Now            func() time.Time
}

// Service implements the collaboration operations.
type Service struct {
	registry    *Registry
	comments    comment.Store
	suggestions suggestion.Store
	versions    version.Store
	bus         *eventbus.EventBus
	replaceDups bool
	now         func() time.Time
	log         zerolog.Logger
}

// NewService wires a Service to its registry, stores and bus.
func NewService(
	registry *Registry,
	comments comment.Store,
	suggestions suggestion.Store,
	versions version.Store,
	bus *eventbus.EventBus,
	opts Options,
) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		registry:    registry,
		comments:    comments,
		suggestions: suggestions,
		versions:    versions,
		bus:         bus,
		replaceDups: opts.DuplicateUsers == config.DuplicateReplace,
		now:         now,
		log:         logging.Component("collab"),
	}
}

// Registry returns the session registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// StartSession joins the connection to the document's session, creating the
// session when needed. The requester receives the session id and the members
// that were already present; everyone else receives participant:joined.
func (s *Service) StartSession(ctx context.Context, m Meta, req StartSessionRequest) error {
	user := req.User
	if m.User != nil {
		user.ID = m.User.ID
		if m.User.DisplayName != "" {
			user.DisplayName = m.User.DisplayName
		}
	}

	if err := criterio.ValidateStruct(
		validate.IDField("documentId", req.DocumentID),
		validate.IDField("user.id", user.ID),
	); err != nil {
		return invalid(err)
	}
	if user.DisplayName == "" {
		user.DisplayName = user.ID
	}

	now := s.now()
	return s.registry.Join(req.DocumentID, func(sess *session.Session) error {
		if self, ok := sess.Member(m.ConnectionID); ok {
			s.reply(m, eventbus.KindSessionStarted, sess.ID, startedPayload(sess, self))
			return nil
		}

		if s.replaceDups {
			room := sess.ConnectionIDs()
			for _, dup := range sess.MembersForUser(user.ID) {
				left, _ := sess.Leave(dup.ConnectionID)
				s.bus.Publish(eventbus.Event{
					Kind:      eventbus.KindParticipantLeft,
					SessionID: sess.ID,
					Sender:    m.ConnectionID,
					Room:      room,
					Payload:   eventbus.ParticipantPayload{SessionID: sess.ID, Participant: left},
				})
				s.log.Info().Ctx(ctx).
					Str("session_id", sess.ID).
					Str("evicted", dup.ConnectionID).
					Msg("replaced duplicate participant")
			}
		}

		joined, others := sess.Join(user, m.ConnectionID, now)

		s.reply(m, eventbus.KindSessionStarted, sess.ID, eventbus.SessionStartedPayload{
			SessionID:     sess.ID,
			DocumentID:    sess.DocumentID,
			Self:          joined,
			ActiveMembers: others,
		})
		s.bus.Publish(eventbus.Event{
			Kind:      eventbus.KindParticipantJoined,
			SessionID: sess.ID,
			Sender:    m.ConnectionID,
			Room:      sess.ConnectionIDs(),
			Payload:   eventbus.ParticipantPayload{SessionID: sess.ID, Participant: joined},
		})

		s.log.Debug().Ctx(ctx).
			Str("session_id", sess.ID).
			Str("user_id", user.ID).
			Int("members", sess.Len()).
			Msg("participant joined")
		return nil
	})
}

// EndSession removes the connection's participant from a session. Ending a
// session the connection is not part of is a no-op.
func (s *Service) EndSession(ctx context.Context, m Meta, req EndSessionRequest) error {
	if err := criterio.ValidateStruct(
		validate.IDField("sessionId", req.SessionID),
	); err != nil {
		return invalid(err)
	}

	err := s.registry.Do(req.SessionID, func(sess *session.Session) error {
		return s.leave(sess, m.ConnectionID)
	})
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrNotMember) {
		s.log.Debug().Ctx(ctx).Str("session_id", req.SessionID).Msg("session:end ignored: not a member")
		return nil
	}
	return err
}

// Disconnect removes a closed connection from every session it belonged to
// and returns how many sessions it left.
func (s *Service) Disconnect(ctx context.Context, connectionID string) int {
	left := 0
	for _, id := range s.registry.SessionsFor(connectionID) {
		err := s.registry.Do(id, func(sess *session.Session) error {
			return s.leave(sess, connectionID)
		})
		if err == nil {
			left++
		}
	}

	if left > 0 {
		s.log.Debug().Ctx(ctx).Int("sessions", left).Msg("connection cleaned up")
	}
	return left
}

// leave removes a participant and announces it. Callers hold the session lock.
func (s *Service) leave(sess *session.Session, connectionID string) error {
	p, ok := sess.Leave(connectionID)
	if !ok {
		return session.ErrNotMember
	}

	if !sess.Empty() {
		s.bus.Publish(eventbus.Event{
			Kind:      eventbus.KindParticipantLeft,
			SessionID: sess.ID,
			Sender:    connectionID,
			Room:      sess.ConnectionIDs(),
			Payload:   eventbus.ParticipantPayload{SessionID: sess.ID, Participant: p},
		})
	}
	return nil
}

// UpdatePresence overwrites the supplied presence fields of a participant and
// relays them to the rest of the room. Unknown sessions and participants are
// ignored.
func (s *Service) UpdatePresence(ctx context.Context, m Meta, req PresenceRequest) error {
	if m.User != nil && req.UserID == "" {
		req.UserID = m.User.ID
	}
	if err := criterio.ValidateStruct(
		validate.IDField("sessionId", req.SessionID),
		validate.IDField("userId", req.UserID),
	); err != nil {
		return invalid(err)
	}
	if m.User != nil && m.User.ID != req.UserID {
		return unauthorized("cannot update presence for another user")
	}

	err := s.registry.Do(req.SessionID, func(sess *session.Session) error {
		p, ok := sess.UpdatePresence(req.UserID, m.ConnectionID, req.Update, s.now())
		if !ok {
			return session.ErrNotMember
		}
		s.bus.Publish(eventbus.Event{
			Kind:      eventbus.KindPresenceUpdated,
			SessionID: sess.ID,
			Sender:    m.ConnectionID,
			Room:      sess.ConnectionIDs(),
			Payload:   presencePayload(sess.ID, p),
		})
		return nil
	})
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrNotMember) {
		s.log.Debug().Ctx(ctx).
			Str("session_id", req.SessionID).
			Str("user_id", req.UserID).
			Msg("presence update ignored")
		return nil
	}
	return err
}

// MarkStale clears isActive for every active participant whose connection
// isStale reports, and relays the change to the rest of the room. It returns
// how many participants were marked.
func (s *Service) MarkStale(isStale func(connectionID string) bool) int {
	now := s.now()
	marked := 0
	s.registry.Each(func(sess *session.Session) {
		for _, p := range sess.Members() {
			if !p.Presence.IsActive || !isStale(p.ConnectionID) {
				continue
			}
			updated, ok := sess.MarkInactive(p.ConnectionID, now)
			if !ok {
				continue
			}
			marked++
			s.bus.Publish(eventbus.Event{
				Kind:      eventbus.KindPresenceUpdated,
				SessionID: sess.ID,
				Sender:    p.ConnectionID,
				Room:      sess.ConnectionIDs(),
				Payload:   presencePayload(sess.ID, updated),
			})
		}
	})
	return marked
}

// RelayContent forwards an opaque content change to the rest of the room.
// The server keeps no document content. Changes from connections outside the
// session are dropped.
func (s *Service) RelayContent(ctx context.Context, m Meta, req ContentChangeRequest) error {
	author := s.author(m, req.Author)
	if err := criterio.ValidateStruct(
		validate.IDField("sessionId", req.SessionID),
		validate.Required("author", author),
	); err != nil {
		return invalid(err)
	}

	err := s.registry.Do(req.SessionID, func(sess *session.Session) error {
		if _, ok := sess.Member(m.ConnectionID); !ok {
			return session.ErrNotMember
		}
		s.bus.Publish(eventbus.Event{
			Kind:      eventbus.KindContentChanged,
			SessionID: sess.ID,
			Sender:    m.ConnectionID,
			Room:      sess.ConnectionIDs(),
			Payload:   eventbus.ContentPayload{SessionID: sess.ID, Change: req.Change, Author: author},
		})
		return nil
	})
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrNotMember) {
		s.log.Debug().Ctx(ctx).Str("session_id", req.SessionID).Msg("content change dropped: not a member")
		return nil
	}
	return err
}

// Sessions summarizes every live session.
func (s *Service) Sessions() []Summary {
	return s.registry.List()
}

// inRoom runs fn under the session lock with the session's current room so
// that events published by fn keep the room's mutation order. Sessions that
// do not exist run fn with an empty room: the requester is still answered.
func (s *Service) inRoom(sessionID string, fn func(room []string) error) error {
	ran := false
	err := s.registry.Do(sessionID, func(sess *session.Session) error {
		ran = true
		return fn(sess.ConnectionIDs())
	})
	if !ran && errors.Is(err, session.ErrNotFound) {
		return fn(nil)
	}
	return err
}

// reply sends a payload to the requester only.
func (s *Service) reply(m Meta, kind eventbus.Kind, sessionID string, payload any) {
	s.bus.Publish(eventbus.Event{
		Kind:      kind,
		SessionID: sessionID,
		Sender:    m.ConnectionID,
		RequestID: m.RequestID,
		Payload:   payload,
	})
}

// author resolves the author of a change. Authenticated connections always
// act as their own identity.
func (s *Service) author(m Meta, given string) string {
	if m.User != nil {
		return m.User.ID
	}
	return given
}

func startedPayload(sess *session.Session, self session.Participant) eventbus.SessionStartedPayload {
	others := make([]session.Participant, 0, sess.Len())
	for _, p := range sess.Members() {
		if p.ConnectionID != self.ConnectionID {
			others = append(others, p)
		}
	}
	return eventbus.SessionStartedPayload{
		SessionID:     sess.ID,
		DocumentID:    sess.DocumentID,
		Self:          self,
		ActiveMembers: others,
	}
}

func presencePayload(sessionID string, p session.Participant) eventbus.PresencePayload {
	return eventbus.PresencePayload{
		SessionID:    sessionID,
		UserID:       p.UserID,
		ConnectionID: p.ConnectionID,
		Cursor:       p.Presence.Cursor,
		Selection:    p.Presence.Selection,
		IsActive:     p.Presence.IsActive,
		Color:        p.Presence.Color,
		Timestamp:    p.Presence.UpdatedAt,
	}
}
