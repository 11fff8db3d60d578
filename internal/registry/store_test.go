package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/types"
)

const demoCode = `export default function Demo() { return <div>Hi</div>; }`

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

type storeFactory func(t *testing.T, dir string) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"json": func(t *testing.T, dir string) Store {
			s, err := NewJSONStore(dir, WithClock(newClock().now))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"sqlite": func(t *testing.T, dir string) Store {
			s, err := NewSQLiteStore(dir, ":memory:", WithClock(newClock().now))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t, t.TempDir()))
		})
	}
}

func str(s string) *string { return &s }

func TestStoreCreateAndGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		entry, err := s.Create(ctx, types.NewComponent{Name: "Demo", Code: demoCode, Prompt: "a demo", ThreadID: "t1"})
		require.NoError(t, err)

		assert.Regexp(t, `^comp_\d+_[0-9a-f]{8}$`, entry.ID)
		assert.Equal(t, "Demo.tsx", entry.Filename)
		assert.Equal(t, "a demo", entry.Prompt)
		assert.Equal(t, "t1", entry.ThreadID)

		got, err := s.Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, entry.ID, got.ID)

		code, err := s.ReadSource(ctx, entry.Filename)
		require.NoError(t, err)
		assert.Equal(t, demoCode, code)

		reg, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, reg.Components, 1)
		assert.Equal(t, entry.ID, reg.Active())
		assert.False(t, reg.LastUpdated.IsZero())
	})
}

func TestStoreCreateExistingFilenameKeepsID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		first, err := s.Create(ctx, types.NewComponent{Name: "Pricing Card", Code: demoCode})
		require.NoError(t, err)

		second, err := s.Create(ctx, types.NewComponent{Name: "pricing card", Code: "export default function PricingCard() { return null; }"})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.False(t, second.UpdatedAt.IsZero())

		reg, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, reg.Components, 1)

		code, err := s.ReadSource(ctx, "PricingCard.tsx")
		require.NoError(t, err)
		assert.Contains(t, code, "return null")
	})
}

func TestStoreCreationOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, name := range []string{"Alpha", "Beta", "Gamma"} {
			_, err := s.Create(ctx, types.NewComponent{Name: name, Code: demoCode})
			require.NoError(t, err)
		}

		reg, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, reg.Components, 3)
		assert.Equal(t, "Alpha", reg.Components[0].Name)
		assert.Equal(t, "Gamma", reg.Components[2].Name)
	})
}

func TestStoreCreateValidation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Create(ctx, types.NewComponent{Name: "", Code: demoCode})
		assert.ErrorIs(t, err, errors.ErrValidation)

		_, err = s.Create(ctx, types.NewComponent{Name: "Demo", Code: "  "})
		assert.ErrorIs(t, err, errors.ErrValidation)
	})
}

func TestStoreUpdate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		entry, err := s.Create(ctx, types.NewComponent{Name: "Demo", Code: demoCode})
		require.NoError(t, err)

		updated, err := s.Update(ctx, entry.ID, types.ComponentPatch{Code: str("export default function Demo() { return 1; }")})
		require.NoError(t, err)
		assert.Equal(t, entry.ID, updated.ID)
		assert.True(t, updated.UpdatedAt.After(entry.CreatedAt))

		code, err := s.ReadSource(ctx, "Demo.tsx")
		require.NoError(t, err)
		assert.Contains(t, code, "return 1")
	})
}

func TestStoreUpdateRenameMovesSource(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		entry, err := s.Create(ctx, types.NewComponent{Name: "Demo", Code: demoCode})
		require.NoError(t, err)

		renamed, err := s.Update(ctx, entry.ID, types.ComponentPatch{Name: str("Landing Hero")})
		require.NoError(t, err)
		assert.Equal(t, entry.ID, renamed.ID)
		assert.Equal(t, "LandingHero.tsx", renamed.Filename)

		code, err := s.ReadSource(ctx, "LandingHero.tsx")
		require.NoError(t, err)
		assert.Equal(t, demoCode, code)

		_, err = os.Stat(filepath.Join(s.Dir(), "Demo.tsx"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestStoreUpdateRenameCollision(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Create(ctx, types.NewComponent{Name: "Taken", Code: demoCode})
		require.NoError(t, err)
		other, err := s.Create(ctx, types.NewComponent{Name: "Other", Code: demoCode})
		require.NoError(t, err)

		_, err = s.Update(ctx, other.ID, types.ComponentPatch{Name: str("taken")})
		assert.ErrorIs(t, err, errors.ErrValidation)
	})
}

func TestStoreUpdateMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		_, err := s.Update(context.Background(), "comp_1_deadbeef", types.ComponentPatch{Code: str(demoCode)})
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})
}

func TestStoreDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first, err := s.Create(ctx, types.NewComponent{Name: "First", Code: demoCode})
		require.NoError(t, err)
		second, err := s.Create(ctx, types.NewComponent{Name: "Second", Code: demoCode})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, second.ID))

		reg, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, reg.Components, 1)
		assert.Equal(t, first.ID, reg.Active())

		_, err = s.ReadSource(ctx, second.Filename)
		assert.ErrorIs(t, err, errors.ErrFileUnavailable)

		assert.ErrorIs(t, s.Delete(ctx, second.ID), errors.ErrNotFound)

		require.NoError(t, s.Delete(ctx, first.ID))
		reg, err = s.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, reg.ActiveComponent)
	})
}

func TestStoreSetActive(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first, err := s.Create(ctx, types.NewComponent{Name: "First", Code: demoCode})
		require.NoError(t, err)
		_, err = s.Create(ctx, types.NewComponent{Name: "Second", Code: demoCode})
		require.NoError(t, err)

		require.NoError(t, s.SetActive(ctx, first.ID))
		reg, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.ID, reg.Active())

		require.NoError(t, s.SetActive(ctx, ""))
		reg, err = s.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, reg.ActiveComponent)

		assert.ErrorIs(t, s.SetActive(ctx, "nope"), errors.ErrNotFound)
	})
}

func TestStoreWatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		events := s.Watch()

		entry, err := s.Create(ctx, types.NewComponent{Name: "Demo", Code: demoCode})
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, entry.ID))

		select {
		case ev := <-events:
			assert.Equal(t, types.EventTypeAdded, ev.Type)
			require.NotNil(t, ev.Component)
			assert.Equal(t, entry.ID, ev.Component.ID)
		case <-time.After(time.Second):
			t.Fatal("no added event")
		}

		select {
		case ev := <-events:
			assert.Equal(t, types.EventTypeRemoved, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("no removed event")
		}

		s.Unwatch(events)
		_, open := <-events
		assert.False(t, open)
	})
}

func TestStoreReadSourceRejectsTraversal(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		_, err := s.ReadSource(context.Background(), "../secret.tsx")
		assert.ErrorIs(t, err, errors.ErrValidation)
	})
}

func TestJSONStoreDocumentFormat(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir, WithClock(newClock().now))
	require.NoError(t, err)

	entry, err := s.Create(context.Background(), types.NewComponent{Name: "Demo", Code: demoCode, ThreadID: "thread-9"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "registry.json"))
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, entry.ID, doc["activeComponent"])
	assert.Contains(t, doc, "lastUpdated")

	components := doc["components"].([]interface{})
	first := components[0].(map[string]interface{})
	assert.Equal(t, "Demo.tsx", first["filename"])
	assert.Equal(t, "thread-9", first["threadId"])
	assert.Contains(t, first, "createdAt")

	leftovers, err := filepath.Glob(filepath.Join(dir, ".registry-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestJSONStoreExternalEditsVisible(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	require.NoError(t, err)

	reg, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reg.Components)

	doc := `{"components":[{"id":"comp_1_abcdef12","name":"Ext","filename":"Ext.tsx","createdAt":"2026-01-01T00:00:00Z"}],"lastUpdated":"2026-01-01T00:00:00Z","activeComponent":null}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "registry.json"), []byte(doc), 0o644))

	entry, err := s.Get(context.Background(), "comp_1_abcdef12")
	require.NoError(t, err)
	assert.Equal(t, "Ext", entry.Name)
}

func TestJSONStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "registry.json"), []byte("{not json"), 0o644))

	s, err := NewJSONStore(dir)
	require.NoError(t, err)

	_, err = s.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REGISTRY_PARSE")
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()

	s, err := Open("json", dir, "")
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)

	s, err = Open("sqlite", dir, filepath.Join(dir, "db", "registry.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("postgres", dir, "")
	assert.Error(t, err)
}

func TestWithCode(t *testing.T) {
	s, err := NewJSONStore(t.TempDir())
	require.NoError(t, err)

	entry, err := s.Create(context.Background(), types.NewComponent{Name: "Demo", Code: demoCode})
	require.NoError(t, err)

	wc, err := WithCode(context.Background(), s, entry)
	require.NoError(t, err)
	assert.Equal(t, demoCode, wc.Code)
	assert.Equal(t, len(demoCode), wc.Length)
	assert.Equal(t, Hash(demoCode), wc.Hash)
}
