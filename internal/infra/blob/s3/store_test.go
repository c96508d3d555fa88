package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"gymledger/internal/blob/core"
)

func newFake(t *testing.T) (*Store, *FakeTransport) {
	t.Helper()
	store, rt, err := NewFake(context.Background())
	if err != nil {
		t.Fatalf("NewFake: %v", err)
	}
	return store, rt
}

func TestStoreBasicFlow(t *testing.T) {
	ctx := context.Background()
	store, rt := newFake(t)
	if store.Driver() != core.DriverS3 || store.Bucket() != "gymledger-test" {
		t.Fatalf("unexpected identity %s %s", store.Driver(), store.Bucket())
	}
	payload := []byte("1001|zhang|male|25|13800138001|2024-03-01|monthly|1|0\n")
	info, err := store.Put(ctx, "snapshots/a.txt", bytes.NewReader(payload), core.PutOptions{
		ContentType: "text/plain",
		Metadata:    map[string]string{"records": "1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "snapshots/a.txt" || info.Size != int64(len(payload)) || info.ContentType != "text/plain" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Metadata["records"] != "1" {
		t.Fatalf("metadata not round-tripped: %+v", info.Metadata)
	}
	if _, err := store.Put(ctx, "snapshots/a.txt", bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := store.Get(ctx, "snapshots/a.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(got, payload) {
		t.Fatalf("get mismatch: %q", got)
	}
	if ok, err := store.Delete(ctx, "snapshots/a.txt"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "snapshots/a.txt"); err != nil || ok {
		t.Fatalf("second delete should report absence: %v %v", ok, err)
	}
	if rt.Len() != 0 || rt.Requests[http.MethodPut] != 1 {
		t.Fatalf("unexpected transport state: len=%d requests=%v", rt.Len(), rt.Requests)
	}
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store, _ := newFake(t)
	if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head: expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Put(ctx, "../escape", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
}

func TestStoreListPaginates(t *testing.T) {
	ctx := context.Background()
	store, rt := newFake(t)
	rt.PageSize = 2
	for _, key := range []string{"b/3", "b/1", "a/9", "b/2", "b/4"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte(key)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "b/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"b/1", "b/2", "b/3", "b/4"}
	if len(list) != len(want) {
		t.Fatalf("expected %d items, got %+v", len(want), list)
	}
	for i, info := range list {
		if info.Key != want[i] || info.Size != 3 {
			t.Fatalf("item %d: %+v", i, info)
		}
	}
	if rt.Requests[http.MethodGet] < 2 {
		t.Fatalf("expected more than one list page, requests=%v", rt.Requests)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}

func TestDecodeChunked(t *testing.T) {
	if _, ok := decodeChunked([]byte("plain")); ok {
		t.Fatalf("plain body must not decode")
	}
	if _, ok := decodeChunked([]byte("5\r\nabc\r\n0\r\n")); ok {
		t.Fatalf("size mismatch must not decode")
	}
	if b, ok := decodeChunked([]byte("5\r\nhello\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n")); !ok || string(b) != "hello" {
		t.Fatalf("expected hello, got %q %v", b, ok)
	}
}
