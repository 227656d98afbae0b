package collab

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/huddle/internal/core/comment"
	"github.com/colonyops/huddle/internal/core/eventbus"
	"github.com/colonyops/huddle/internal/core/session"
	"github.com/colonyops/huddle/internal/core/suggestion"
	"github.com/colonyops/huddle/internal/core/validate"
	"github.com/colonyops/huddle/pkg/ids"
)

var errNotSessionID = errors.New("is not a session id")

// documentOf resolves the document a session id refers to. The session does
// not need to be live.
func documentOf(sessionID string) (string, error) {
	documentID, ok := session.DocumentIDFrom(sessionID)
	if !ok {
		return "", invalid(criterio.NewFieldErrors("sessionId", errNotSessionID))
	}
	return documentID, nil
}

// AddComment stores a new comment and broadcasts it to the whole room,
// requester included. The requester also receives an acknowledgement.
func (s *Service) AddComment(ctx context.Context, m Meta, req AddCommentRequest) error {
	author := s.author(m, req.Author)
	if err := criterio.ValidateStruct(
		validate.IDField("sessionId", req.SessionID),
		validate.IDField("blockId", req.BlockID),
		validate.Required("content", req.Content),
		validate.Required("author", author),
	); err != nil {
		return invalid(err)
	}
	documentID, err := documentOf(req.SessionID)
	if err != nil {
		return err
	}

	parentID := req.ParentID
	if parentID != nil && *parentID == "" {
		parentID = nil
	}

	c := comment.Comment{
		ID:         ids.New(),
		DocumentID: documentID,
		BlockID:    req.BlockID,
		Content:    req.Content,
		Author:     author,
		ParentID:   parentID,
		CreatedAt:  s.now(),
		Replies:    []comment.Comment{},
	}

	return s.inRoom(req.SessionID, func(room []string) error {
		if err := s.comments.Create(ctx, c); err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		s.bus.Publish(eventbus.Event{
			Kind:      eventbus.KindCommentAdded,
			SessionID: req.SessionID,
			Sender:    m.ConnectionID,
			RequestID: m.RequestID,
			Room:      room,
			Payload:   eventbus.CommentPayload{SessionID: req.SessionID, Comment: c},
		})
		return nil
	})
}

// ResolveComment marks a comment resolved and broadcasts the updated comment.
func (s *Service) ResolveComment(ctx context.Context, m Meta, req ResolveCommentRequest) error {
	by := s.author(m, req.ResolvedBy)
	if err := criterio.ValidateStruct(
		validate.IDField("sessionId", req.SessionID),
		validate.IDField("commentId", req.CommentID),
		validate.Required("resolvedBy", by),
	); err != nil {
		return invalid(err)
	}
	return s.setResolved(ctx, m, req.SessionID, req.CommentID, true, by)
}

// UnresolveComment reopens a resolved comment and broadcasts the change.
func (s *Service) UnresolveComment(ctx context.Context, m Meta, req UnresolveCommentRequest) error {
	by := s.author(m, req.UpdatedBy)
	if err := criterio.ValidateStruct(
		validate.IDField("sessionId", req.SessionID),
		validate.IDField("commentId", req.CommentID),
		validate.Required("updatedBy", by),
	); err != nil {
		return invalid(err)
	}
	return s.setResolved(ctx, m, req.SessionID, req.CommentID, false, by)
}

func (s *Service) setResolved(ctx context.Context, m Meta, sessionID, commentID string, resolved bool, by string) error {
	documentID, err := documentOf(sessionID)
	if err != nil {
		return err
	}

	kind := eventbus.KindCommentResolved
	if !resolved {
		kind = eventbus.KindCommentUnresolved
	}

	return s.inRoom(sessionID, func(room []string) error {
		cur, err := s.comments.Get(ctx, commentID)
		if err == nil && cur.DocumentID != documentID {
			err = comment.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("comment %q: %w", commentID, err)
		}

		c, err := s.comments.SetResolved(ctx, commentID, resolved, by, s.now())
		if err != nil {
			return fmt.Errorf("comment %q: %w", commentID, err)
		}

		s.bus.Publish(eventbus.Event{
			Kind:       kind,
			SessionID:  sessionID,
			Sender:     m.ConnectionID,
			RequestID:  m.RequestID,
			Room:       room,
			Payload:    eventbus.CommentPayload{SessionID: sessionID, Comment: c},
			AckPayload: eventbus.SuccessPayload{Success: true, ID: c.ID},
		})
		return nil
	})
}

// ListComments answers the requester with the document's comments.
func (s *Service) ListComments(ctx context.Context, m Meta, req ListRequest) error {
	if err := criterio.ValidateStruct(
		validate.IDField("sessionId", req.SessionID),
	); err != nil {
		return invalid(err)
	}
	documentID, err := documentOf(req.SessionID)
	if err != nil {
		return err
	}

	comments, err := s.comments.List(ctx, documentID, req.BlockID)
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}

	s.reply(m, eventbus.KindCommentList, req.SessionID, eventbus.CommentListPayload{
		SessionID: req.SessionID,
		Comments:  comments,
	})
	return nil
}

// AddSuggestion stores a pending suggestion and broadcasts it to the whole
// room, requester included.
func (s *Service) AddSuggestion(ctx context.Context, m Meta, req AddSuggestionRequest) error {
	author := s.author(m, req.Author)
	if err := criterio.ValidateStruct(
		validate.IDField("sessionId", req.SessionID),
		validate.IDField("blockId", req.BlockID),
		validate.Required("type", req.Type),
		validate.Required("author", author),
	); err != nil {
		return invalid(err)
	}
	documentID, err := documentOf(req.SessionID)
	if err != nil {
		return err
	}

	sg := suggestion.Suggestion{
		ID:               ids.New(),
		DocumentID:       documentID,
		BlockID:          req.BlockID,
		Type:             req.Type,
		OriginalContent:  req.OriginalContent,
		SuggestedContent: req.SuggestedContent,
		Author:           author,
		Status:           suggestion.StatusPending,
		CreatedAt:        s.now(),
	}

	return s.inRoom(req.SessionID, func(room []string) error {
		if err := s.suggestions.Create(ctx, sg); err != nil {
			return fmt.Errorf("create suggestion: %w", err)
		}
		s.bus.Publish(eventbus.Event{
			Kind:      eventbus.KindSuggestionAdded,
			SessionID: req.SessionID,
			Sender:    m.ConnectionID,
			RequestID: m.RequestID,
			Room:      room,
			Payload:   eventbus.SuggestionPayload{SessionID: req.SessionID, Suggestion: sg},
		})
		return nil
	})
}

// UpdateSuggestionStatus records a status decision and broadcasts it. Any
// status string is accepted; no transition rules apply.
func (s *Service) UpdateSuggestionStatus(ctx context.Context, m Meta, req SuggestionStatusRequest) error {
	by := s.author(m, req.UpdatedBy)
	if err := criterio.ValidateStruct(
		validate.IDField("sessionId", req.SessionID),
		validate.IDField("suggestionId", req.SuggestionID),
		validate.Required("status", req.Status),
		validate.Required("updatedBy", by),
	); err != nil {
		return invalid(err)
	}
	documentID, err := documentOf(req.SessionID)
	if err != nil {
		return err
	}

	return s.inRoom(req.SessionID, func(room []string) error {
		cur, err := s.suggestions.Get(ctx, req.SuggestionID)
		if err == nil && cur.DocumentID != documentID {
			err = suggestion.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("suggestion %q: %w", req.SuggestionID, err)
		}

		sg, err := s.suggestions.UpdateStatus(ctx, req.SuggestionID, req.Status, by, s.now())
		if err != nil {
			return fmt.Errorf("suggestion %q: %w", req.SuggestionID, err)
		}

		s.bus.Publish(eventbus.Event{
			Kind:       eventbus.KindSuggestionStatusChanged,
			SessionID:  req.SessionID,
			Sender:     m.ConnectionID,
			RequestID:  m.RequestID,
			Room:       room,
			Payload:    eventbus.SuggestionPayload{SessionID: req.SessionID, Suggestion: sg},
			AckPayload: eventbus.SuccessPayload{Success: true, ID: sg.ID},
		})
		return nil
	})
}

// ListSuggestions answers the requester with the document's suggestions.
func (s *Service) ListSuggestions(ctx context.Context, m Meta, req ListRequest) error {
	if err := criterio.ValidateStruct(
		validate.IDField("sessionId", req.SessionID),
	); err != nil {
		return invalid(err)
	}
	documentID, err := documentOf(req.SessionID)
	if err != nil {
		return err
	}

	suggestions, err := s.suggestions.List(ctx, documentID, req.BlockID)
	if err != nil {
		return fmt.Errorf("list suggestions: %w", err)
	}

	s.reply(m, eventbus.KindSuggestionList, req.SessionID, eventbus.SuggestionListPayload{
		SessionID:   req.SessionID,
		Suggestions: suggestions,
	})
	return nil
}
