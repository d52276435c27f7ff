package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

const addText = `surface add
USES 0
segment Data
uniform float x
segment Init
segment Code
pushif 2
pushif 3
addff
pop x
`

func openCache(t *testing.T, path string) *Cache {
	t.Helper()
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	c := openCache(t, MemoryPath)

	e, err := c.Put(ctx, "add.slx", addText)
	if err != nil {
		t.Fatal(err)
	}
	if e.ID == uuid.Nil || e.Kind != "surface" || e.Name != "add" || e.Hash != Hash(addText) {
		t.Errorf("entry = %+v", e)
	}

	got, err := c.Get(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != addText || got.ID != e.ID || !got.Created.Equal(e.Created) {
		t.Errorf("got %+v, want %+v", got, e)
	}

	again, err := c.Put(ctx, "copy.slx", addText)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != e.ID {
		t.Errorf("same text cached twice: %s and %s", e.ID, again.ID)
	}

	prog, err := c.Program(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if prog.Text() != addText {
		t.Errorf("program text:\n%s", prog.Text())
	}
}

func TestPutRejectsBadBytecode(t *testing.T) {
	c := openCache(t, MemoryPath)
	if _, err := c.Put(context.Background(), "bad.slx", "surface bad\nsegment Code\nfrobnicate\n"); err == nil {
		t.Error("bad bytecode cached")
	}
	if es, _ := c.List(context.Background()); len(es) != 0 {
		t.Errorf("cache holds %d entries", len(es))
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	c := openCache(t, MemoryPath)
	id := uuid.New()
	if _, err := c.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: %v", err)
	}
	if err := c.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: %v", err)
	}
}

func TestListDeletePurge(t *testing.T) {
	ctx := context.Background()
	c := openCache(t, filepath.Join(t.TempDir(), "cache.db"))
	a, err := c.Put(ctx, "a.slx", addText)
	if err != nil {
		t.Fatal(err)
	}
	other := "light lamp\nUSES 0\nsegment Data\nsegment Init\nsegment Code\n"
	if _, err := c.Put(ctx, "b.slx", other); err != nil {
		t.Fatal(err)
	}
	es, err := c.List(ctx)
	if err != nil || len(es) != 2 {
		t.Fatalf("List = %v, %v", es, err)
	}
	if err := c.Delete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	n, err := c.Purge(ctx)
	if err != nil || n != 1 {
		t.Errorf("Purge = %d, %v", n, err)
	}
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	e, err := c.Put(ctx, "add.slx", addText)
	if err != nil {
		t.Fatal(err)
	}
	c.Close()

	c = openCache(t, path)
	if _, err := c.Get(ctx, e.ID); err != nil {
		t.Errorf("entry lost on reopen: %v", err)
	}
}
