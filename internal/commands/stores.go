package commands

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/colonyops/huddle/internal/core/comment"
	"github.com/colonyops/huddle/internal/core/config"
	"github.com/colonyops/huddle/internal/core/suggestion"
	"github.com/colonyops/huddle/internal/core/version"
	"github.com/colonyops/huddle/internal/data/db"
	"github.com/colonyops/huddle/internal/data/memstore"
	"github.com/colonyops/huddle/internal/data/stores"
)

// backends holds the annotation and version stores selected by config.
type backends struct {
	comments    comment.Store
	suggestions suggestion.Store
	versions    version.Store
	close       func() error
}

func openBackends(cfg *config.Config) (*backends, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		return &backends{
			comments:    memstore.NewCommentStore(),
			suggestions: memstore.NewSuggestionStore(),
			versions:    memstore.NewVersionStore(),
			close:       func() error { return nil },
		}, nil
	case config.StorageSQLite:
		database, err := openDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return &backends{
			comments:    stores.NewCommentStore(database),
			suggestions: stores.NewSuggestionStore(database),
			versions:    stores.NewVersionStore(database),
			close:       database.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// openDatabase opens the sqlite file, moving it aside and starting over when
// it is corrupt.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	opts := db.DefaultOpenOptions()
	opts.BusyTimeout = cfg.Storage.BusyTimeout

	database, err := db.Open(cfg.Storage.Path, opts)
	if err == nil {
		return database, nil
	}
	if !stores.IsCorruptionError(err) {
		return nil, fmt.Errorf("open database: %w", err)
	}

	backup, rerr := stores.RecoverFromCorruption(cfg.Storage.Path)
	if rerr != nil {
		return nil, errors.Join(fmt.Errorf("open database: %w", err), rerr)
	}
	log.Warn().
		Str("path", cfg.Storage.Path).
		Str("backup", backup).
		Msg("database was corrupt; moved aside and starting fresh")

	database, err = db.Open(cfg.Storage.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("open database after recovery: %w", err)
	}
	return database, nil
}
