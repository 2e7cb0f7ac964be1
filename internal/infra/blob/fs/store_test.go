package fs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"targetdb/internal/blob/core"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func put(t *testing.T, s *Store, key, body string) core.Info {
	t.Helper()
	info, err := s.Put(context.Background(), key, strings.NewReader(body), core.PutOptions{
		ContentType: "text/plain",
		Metadata:    map[string]string{"organism": "ara"},
	})
	if err != nil {
		t.Fatalf("Put(%s): %v", key, err)
	}
	return info
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newStore(t)
	info := put(t, store, "ara/job1/network.sif", "G1\tinduced\tG2\n")
	if info.Size != 14 {
		t.Fatalf("size = %d", info.Size)
	}
	if info.Checksum == "" {
		t.Fatal("checksum empty")
	}

	got, rc, err := store.Get(context.Background(), "ara/job1/network.sif")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != "G1\tinduced\tG2\n" {
		t.Fatalf("body = %q", body)
	}
	if got.ContentType != "text/plain" || got.Metadata["organism"] != "ara" {
		t.Fatalf("info = %+v", got)
	}
}

func TestPutReplacesExisting(t *testing.T) {
	store := newStore(t)
	put(t, store, "k", "first")
	info := put(t, store, "k", "second version")
	if info.Size != int64(len("second version")) {
		t.Fatalf("size = %d", info.Size)
	}
	_, rc, err := store.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "second version" {
		t.Fatalf("body = %q", body)
	}
}

func TestHeadAndDelete(t *testing.T) {
	store := newStore(t)
	put(t, store, "a/b", "payload")

	if _, err := store.Head(context.Background(), "a/b"); err != nil {
		t.Fatalf("Head: %v", err)
	}
	removed, err := store.Delete(context.Background(), "a/b")
	if err != nil || !removed {
		t.Fatalf("Delete = %v, %v", removed, err)
	}
	if _, err := store.Head(context.Background(), "a/b"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Head after delete = %v, want ErrNotFound", err)
	}
	removed, err = store.Delete(context.Background(), "a/b")
	if err != nil || removed {
		t.Fatalf("second Delete = %v, %v", removed, err)
	}
}

func TestGetMissingKey(t *testing.T) {
	store := newStore(t)
	if _, _, err := store.Get(context.Background(), "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	store := newStore(t)
	put(t, store, "ara/j1/network.json", "{}")
	put(t, store, "ara/j2/network.sif", "")
	put(t, store, "zma/j3/network.json", "{}")

	infos, err := store.List(context.Background(), "ara/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("listed %d, want 2", len(infos))
	}
	if infos[0].Key != "ara/j1/network.json" || infos[1].Key != "ara/j2/network.sif" {
		t.Fatalf("keys = [%s %s]", infos[0].Key, infos[1].Key)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	store := newStore(t)
	for _, key := range []string{"", "/abs", "../escape", "a/../../b"} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("Put(%q) accepted", key)
		}
	}
}

func TestPresignURL(t *testing.T) {
	store := newStore(t)
	put(t, store, "ara/j1/network.json", "{}")
	u, err := store.PresignURL(context.Background(), "ara/j1/network.json", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("PresignURL: %v", err)
	}
	if !strings.HasSuffix(u, "/ara/j1/network.json") {
		t.Fatalf("url = %s", u)
	}
	if _, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("PUT presign err = %v, want ErrUnsupported", err)
	}
}
