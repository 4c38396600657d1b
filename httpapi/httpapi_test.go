package httpapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"garden.dev/garden/handler"
	"garden.dev/garden/protocol"
	"garden.dev/garden/sqlindex"
	"garden.dev/garden/substrate/localstore"
)

func newTestServer(t *testing.T) (*Server, *localstore.Store, *sqlindex.Store) {
	t.Helper()
	sub, err := localstore.Open(filepath.Join(t.TempDir(), "devnet.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sub.Close() })

	idx, err := sqlindex.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	h := handler.New(sub)
	srv := New(h, idx, protocol.BlockchainAddress{})
	return srv, sub, idx
}

func TestCreatePostPublishesAndReturnsNull(t *testing.T) {
	srv, sub, _ := newTestServer(t)
	signingKey, err := localstore.NewSigningKey()
	if err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(createPostRequest{
		SigningKey: base64.StdEncoding.EncodeToString(signingKey),
		Content:    "hello world",
		Tags:       []string{"greeting"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/post", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := bytes.TrimSpace(rec.Body.Bytes()); string(got) != "null" {
		t.Fatalf("expected literal null body, got %q", got)
	}

	if _, err := sub.SealPendingBlock(time.Unix(1, 0)); err != nil {
		t.Fatal(err)
	}
}

func TestCreatePostRejectsInvalidTag(t *testing.T) {
	srv, _, _ := newTestServer(t)
	signingKey, err := localstore.NewSigningKey()
	if err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(createPostRequest{
		SigningKey: base64.StdEncoding.EncodeToString(signingKey),
		Content:    "hello",
		Tags:       []string{"Not A Valid Tag!"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/post", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an invalid tag, got %d", rec.Code)
	}
}

func TestGetPostEndToEnd(t *testing.T) {
	srv, sub, idx := newTestServer(t)
	signingKey, err := localstore.NewSigningKey()
	if err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(createPostRequest{
		SigningKey: base64.StdEncoding.EncodeToString(signingKey),
		Content:    "queryable post",
		Tags:       []string{"news"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/post", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("publish failed: %d %s", rec.Code, rec.Body.String())
	}

	blockHash, err := sub.SealPendingBlock(time.Unix(1, 0))
	if err != nil {
		t.Fatal(err)
	}
	block, ok := sub.ReadBlock(blockHash)
	if !ok || len(block.InlineMessages()) != 1 {
		t.Fatal("expected one sealed message")
	}
	msgHash := block.InlineMessages()[0].Hash()

	if err := idx.Sync(sub); err != nil {
		t.Fatal(err)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/post/"+msgHash.Base64(), nil)
	getRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", getRec.Code, getRec.Body.String())
	}

	var view postView
	if err := json.Unmarshal(getRec.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Content != "queryable post" {
		t.Fatalf("unexpected content: %q", view.Content)
	}
	if len(view.Tags) != 1 || view.Tags[0] != "news" {
		t.Fatalf("unexpected tags: %v", view.Tags)
	}
}

func TestGetPostUnknownHashReturns404(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/post/"+protocol.ZeroHash.Base64(), nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetPostMalformedHashReturns400(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/post/not-valid-base64!!", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
