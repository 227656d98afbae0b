package collab

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/huddle/internal/core/eventbus"
	"github.com/colonyops/huddle/internal/core/payload"
	"github.com/colonyops/huddle/internal/core/session"
	"github.com/colonyops/huddle/internal/core/validate"
	"github.com/colonyops/huddle/internal/core/version"
	"github.com/colonyops/huddle/pkg/ids"
)

// CreateVersion appends a snapshot to the document's history and broadcasts
// it to the room, requester included.
func (s *Service) CreateVersion(ctx context.Context, m Meta, req CreateVersionRequest) error {
	author := s.author(m, req.Author)
	if err := criterio.ValidateStruct(
		validate.IDField("documentId", req.DocumentID),
		validate.Required("author", author),
		requirePayload("blocksSnapshot", req.BlocksSnapshot),
	); err != nil {
		return invalid(err)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.IDFor(req.DocumentID)
	} else if documentID, ok := session.DocumentIDFrom(sessionID); !ok || documentID != req.DocumentID {
		return invalid(criterio.NewFieldErrors("sessionId", fmt.Errorf("does not belong to document %q", req.DocumentID)))
	}

	v := version.Version{
		ID:             ids.New(),
		DocumentID:     req.DocumentID,
		Description:    req.Description,
		BlocksSnapshot: req.BlocksSnapshot,
		Author:         author,
		CreatedAt:      s.now(),
	}

	return s.inRoom(sessionID, func(room []string) error {
		if err := s.versions.Append(ctx, v); err != nil {
			return fmt.Errorf("append version: %w", err)
		}
		s.bus.Publish(eventbus.Event{
			Kind:      eventbus.KindVersionCreated,
			SessionID: sessionID,
			Sender:    m.ConnectionID,
			RequestID: m.RequestID,
			Room:      room,
			Payload:   eventbus.VersionPayload{SessionID: sessionID, Version: v},
		})
		return nil
	})
}

// RestoreVersion answers the requester with a version's snapshot. Nothing is
// broadcast: applying the snapshot is up to the client.
func (s *Service) RestoreVersion(ctx context.Context, m Meta, req RestoreVersionRequest) error {
	if err := criterio.ValidateStruct(
		validate.IDField("versionId", req.VersionID),
	); err != nil {
		return invalid(err)
	}

	v, err := s.versions.Get(ctx, req.VersionID)
	if err != nil {
		return fmt.Errorf("version %q: %w", req.VersionID, err)
	}

	s.reply(m, eventbus.KindVersionRestore, req.SessionID, eventbus.SnapshotPayload{
		VersionID:      v.ID,
		BlocksSnapshot: v.BlocksSnapshot,
	})
	return nil
}

// GetHistory answers the requester with the document's versions in creation
// order.
func (s *Service) GetHistory(ctx context.Context, m Meta, req HistoryRequest) error {
	versions, err := s.History(ctx, req.DocumentID)
	if err != nil {
		return err
	}

	s.reply(m, eventbus.KindVersionHistory, "", eventbus.HistoryPayload{
		DocumentID: req.DocumentID,
		Versions:   versions,
	})
	return nil
}

// History returns a document's versions in creation order.
func (s *Service) History(ctx context.Context, documentID string) ([]version.Version, error) {
	if err := criterio.ValidateStruct(
		validate.IDField("documentId", documentID),
	); err != nil {
		return nil, invalid(err)
	}

	versions, err := s.versions.History(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("version history: %w", err)
	}
	return versions, nil
}

// requirePayload validates that an opaque client payload was supplied.
func requirePayload(field string, v payload.Raw) error {
	if v.IsNull() {
		return criterio.NewFieldErrors(field, errors.New("is required"))
	}
	return nil
}
