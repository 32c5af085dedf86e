package sticker

import (
	"bytes"
	"path/filepath"
	"testing"

	"chatline/internal/blob"
	"chatline/internal/store"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func testService(t *testing.T) (*Service, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	blobs, err := blob.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewService(db, blobs, nil), db
}

func payload() (*bytes.Reader, int64) {
	b := make([]byte, 128)
	copy(b, pngHeader)
	return bytes.NewReader(b), int64(len(b))
}

func TestAddStickerAutoVivifiesPack(t *testing.T) {
	svc, _ := testService(t)

	r, size := payload()
	st, err := svc.AddSticker("", "wave.png", r, size, nil)
	if err != nil {
		t.Fatal(err)
	}
	if st.URL == "" {
		t.Error("sticker has no url")
	}

	packs, err := svc.Packs()
	if err != nil {
		t.Fatal(err)
	}
	if len(packs) != 1 || packs[0].ID != DefaultPackID || packs[0].Name != DefaultPackName {
		t.Fatalf("packs = %+v", packs)
	}
	if len(packs[0].Stickers) != 1 {
		t.Errorf("pack has %d stickers, want 1", len(packs[0].Stickers))
	}
}

func TestAddStickerExistingPackNotDuplicated(t *testing.T) {
	svc, _ := testService(t)

	for _, name := range []string{"a.png", "b.png"} {
		r, size := payload()
		if _, err := svc.AddSticker("travel", name, r, size, nil); err != nil {
			t.Fatal(err)
		}
	}
	packs, _ := svc.Packs()
	if len(packs) != 1 {
		t.Fatalf("packs = %d, want 1", len(packs))
	}
	if len(packs[0].Stickers) != 2 {
		t.Errorf("stickers = %d, want 2", len(packs[0].Stickers))
	}
}
