package gallery

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/registry"
	"github.com/designforge/mimicry/internal/types"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Gallery, registry.Store, string) {
	t.Helper()
	root := t.TempDir()
	now := base
	store, err := registry.NewJSONStore(filepath.Join(root, "components"), registry.WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	images := filepath.Join(root, "outputs")
	require.NoError(t, os.MkdirAll(images, 0o755))
	return New(images, store, nil), store, images
}

func writeImage(t *testing.T, dir, name string, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestListMergesAndSortsNewestFirst(t *testing.T) {
	g, store, images := setup(t)
	ctx := context.Background()

	_, err := store.Create(ctx, types.NewComponent{Name: "Login Screen", Code: "export default function A() {}", Prompt: "a login"})
	require.NoError(t, err)
	_, err = store.Create(ctx, types.NewComponent{Name: "Dashboard", Code: "export default function B() {}"})
	require.NoError(t, err)

	writeImage(t, images, "design_old.png", base.Add(-time.Hour))
	writeImage(t, images, "design_new.webp", base.Add(time.Hour))
	writeImage(t, images, "notes.txt", base)
	writeImage(t, images, "bad name.png", base)

	items, err := g.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 4)

	assert.Equal(t, "design_new", items[0].ID)
	assert.Equal(t, types.GalleryItemImage, items[0].Type)
	assert.Equal(t, "/images/design_new.webp", items[0].URL)
	assert.Equal(t, "Dashboard", items[1].Name)
	assert.Equal(t, "Login Screen", items[2].Name)
	assert.Equal(t, "a login", items[2].Prompt)
	assert.True(t, strings.HasPrefix(items[2].URL, "/preview/comp_"))
	assert.Equal(t, "design_old", items[3].ID)

	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].CreatedAt.After(items[i-1].CreatedAt))
	}
}

func TestListMissingImagesDir(t *testing.T) {
	_, store, _ := setup(t)
	g := New(filepath.Join(t.TempDir(), "nope"), store, nil)

	items, err := g.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDeleteImage(t *testing.T) {
	g, _, images := setup(t)
	writeImage(t, images, "design_a.png", base)

	require.NoError(t, g.Delete(context.Background(), "design_a", types.GalleryItemImage))
	_, err := os.Stat(filepath.Join(images, "design_a.png"))
	assert.True(t, os.IsNotExist(err))

	err = g.Delete(context.Background(), "design_a", types.GalleryItemImage)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	err = g.Delete(context.Background(), "../etc/passwd", types.GalleryItemImage)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestDeleteComponent(t *testing.T) {
	g, store, _ := setup(t)
	ctx := context.Background()
	entry, err := store.Create(ctx, types.NewComponent{Name: "Card", Code: "x"})
	require.NoError(t, err)

	require.NoError(t, g.Delete(ctx, entry.ID, types.GalleryItemComponent))
	_, err = store.Get(ctx, entry.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestDeleteUnknownType(t *testing.T) {
	g, _, _ := setup(t)
	err := g.Delete(context.Background(), "x", types.GalleryItemType("video"))
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestImagePath(t *testing.T) {
	g, _, images := setup(t)
	writeImage(t, images, "design_b.jpg", base)

	path, err := g.ImagePath("design_b.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(images, "design_b.jpg"), path)

	_, err = g.ImagePath("design_b.exe")
	assert.Error(t, err)
	_, err = g.ImagePath("..%2f.png")
	assert.Error(t, err)
}

func TestSave(t *testing.T) {
	g, _, images := setup(t)
	g.now = func() time.Time { return base }

	item, err := g.Save(context.Background(), strings.NewReader("png-bytes"), "PNG")
	require.NoError(t, err)

	assert.Regexp(t, `^design_[0-9a-f]{8}_20260301_120000$`, item.ID)
	assert.Equal(t, item.ID+".png", item.Name)
	assert.Equal(t, ImagesRoute+item.Name, item.URL)

	data, err := os.ReadFile(filepath.Join(images, item.Name))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	entries, err := os.ReadDir(images)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = g.Save(context.Background(), strings.NewReader("x"), ".svg")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
