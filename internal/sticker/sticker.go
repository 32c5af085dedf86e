// Package sticker manages sticker packs. Packs are never created
// explicitly; the first upload into an unknown pack vivifies it.
package sticker

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatline/internal/blob"
	"chatline/internal/store"
)

// DefaultPackID is the pack uploads land in when none is named.
const DefaultPackID = "default"

// DefaultPackName labels an auto-vivified pack.
const DefaultPackName = "Default Pack"

// Service serves sticker reads and uploads.
type Service struct {
	db     *store.DB
	blobs  *blob.Store
	logger *zap.Logger
}

// NewService creates a sticker service.
func NewService(db *store.DB, blobs *blob.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, blobs: blobs, logger: logger}
}

// Packs lists every pack with its stickers.
func (s *Service) Packs() ([]store.StickerPack, error) {
	return s.db.ListStickerPacks()
}

// AddSticker stores an uploaded sticker image under packID, creating
// the pack on first use, and returns the new sticker.
func (s *Service) AddSticker(packID, filename string, r io.Reader, size int64, progress blob.ProgressFunc) (*store.Sticker, error) {
	if packID == "" {
		packID = DefaultPackID
	}
	created, err := s.db.CreateStickerPackIfAbsent(packID, DefaultPackName)
	if err != nil {
		return nil, fmt.Errorf("ensure pack %s: %w", packID, err)
	}
	if created {
		s.logger.Info("sticker pack created", zap.String("pack_id", packID))
	}

	url, err := s.blobs.SaveSticker(packID, filename, r, size, progress)
	if err != nil {
		return nil, fmt.Errorf("store sticker: %w", err)
	}
	st := &store.Sticker{ID: uuid.NewString(), URL: url}
	if err := s.db.InsertSticker(packID, st.ID, st.URL); err != nil {
		return nil, fmt.Errorf("record sticker: %w", err)
	}
	return st, nil
}
