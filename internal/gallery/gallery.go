// Package gallery lists generated artefacts, images written by the image
// generator and components in the registry, as one chronological feed.
package gallery

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/logging"
	"github.com/designforge/mimicry/internal/types"
	"github.com/designforge/mimicry/internal/validation"
)

// ImageExtensions are the file types listed as gallery images.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".gif"}

// ImagesRoute is the URL prefix images are served under.
const ImagesRoute = "/images/"

// Components is the part of the registry the gallery needs.
type Components interface {
	Load(ctx context.Context) (*types.Registry, error)
	Delete(ctx context.Context, id string) error
}

// Gallery aggregates images on disk with registry components.
type Gallery struct {
	imagesDir  string
	components Components
	logger     logging.Logger
	now        func() time.Time
}

// New creates a gallery over imagesDir and components.
func New(imagesDir string, components Components, logger logging.Logger) *Gallery {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gallery{
		imagesDir:  imagesDir,
		components: components,
		logger:     logger.WithComponent("gallery"),
		now:        time.Now,
	}
}

// ImagesDir is the directory images are read from.
func (g *Gallery) ImagesDir() string { return g.imagesDir }

// List returns every image and component, newest first.
func (g *Gallery) List(ctx context.Context) ([]types.GalleryItem, error) {
	items, err := g.images(ctx)
	if err != nil {
		return nil, err
	}

	reg, err := g.components.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	for _, c := range reg.Components {
		items = append(items, types.GalleryItem{
			ID:        c.ID,
			Type:      types.GalleryItemComponent,
			Name:      c.Name,
			CreatedAt: c.CreatedAt,
			URL:       "/preview/" + c.ID,
			Prompt:    c.Prompt,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (g *Gallery) images(ctx context.Context) ([]types.GalleryItem, error) {
	entries, err := os.ReadDir(g.imagesDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewIOError("GALLERY_READ", "cannot read images directory", err)
	}

	var items []types.GalleryItem
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if validation.ValidateImageID(id) != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			g.logger.Debug(ctx, "Skipping unreadable image", "file", e.Name(), "error", err.Error())
			continue
		}
		items = append(items, types.GalleryItem{
			ID:        id,
			Type:      types.GalleryItemImage,
			Name:      e.Name(),
			CreatedAt: info.ModTime(),
			URL:       ImagesRoute + e.Name(),
		})
	}
	return items, nil
}

// Delete removes an image file or a registry component.
func (g *Gallery) Delete(ctx context.Context, id string, kind types.GalleryItemType) error {
	switch kind {
	case types.GalleryItemComponent:
		return g.components.Delete(ctx, id)
	case types.GalleryItemImage:
		path, err := g.findImage(id)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil {
			return errors.NewIOError("GALLERY_DELETE", "cannot delete image", err)
		}
		g.logger.Info(ctx, "Deleted gallery image", "id", id)
		return nil
	default:
		return errors.NewValidationError("GALLERY_TYPE", fmt.Sprintf("unknown gallery item type %q", kind))
	}
}

// ImagePath resolves a served image file name to its path on disk.
func (g *Gallery) ImagePath(name string) (string, error) {
	if !isImage(name) {
		return "", errors.NewNotFoundError("IMAGE_NOT_FOUND", "image not found")
	}
	return g.findImage(strings.TrimSuffix(name, filepath.Ext(name)))
}

func (g *Gallery) findImage(id string) (string, error) {
	if err := validation.ValidateImageID(id); err != nil {
		return "", errors.NewValidationError("IMAGE_ID", err.Error())
	}
	for _, ext := range ImageExtensions {
		path := filepath.Join(g.imagesDir, id+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.NewNotFoundError("IMAGE_NOT_FOUND", fmt.Sprintf("image '%s' not found", id))
}

// Save stores an image read from r under a new id, using the naming of the
// image generator: design_<8 hex>_<YYYYmmdd_HHMMSS>.
func (g *Gallery) Save(ctx context.Context, r io.Reader, ext string) (types.GalleryItem, error) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if !isImage("x" + ext) {
		return types.GalleryItem{}, errors.NewValidationError("IMAGE_TYPE", fmt.Sprintf("unsupported image type %q", ext))
	}
	if err := os.MkdirAll(g.imagesDir, 0o755); err != nil {
		return types.GalleryItem{}, errors.NewIOError("GALLERY_WRITE", "cannot create images directory", err)
	}

	now := g.now()
	id := fmt.Sprintf("design_%s_%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:8], now.Format("20060102_150405"))
	name := id + ext

	f, err := os.CreateTemp(g.imagesDir, ".upload-*"+ext)
	if err != nil {
		return types.GalleryItem{}, errors.NewIOError("GALLERY_WRITE", "cannot create image", err)
	}
	tmp := f.Name()
	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp)
		if copyErr == nil {
			copyErr = closeErr
		}
		return types.GalleryItem{}, errors.NewIOError("GALLERY_WRITE", "cannot write image", copyErr)
	}
	if err := os.Rename(tmp, filepath.Join(g.imagesDir, name)); err != nil {
		_ = os.Remove(tmp)
		return types.GalleryItem{}, errors.NewIOError("GALLERY_WRITE", "cannot store image", err)
	}

	g.logger.Info(ctx, "Saved gallery image", "id", id)
	return types.GalleryItem{
		ID:        id,
		Type:      types.GalleryItemImage,
		Name:      name,
		CreatedAt: now,
		URL:       ImagesRoute + name,
	}, nil
}

func isImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
