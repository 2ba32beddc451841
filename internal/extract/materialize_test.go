package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yalublugerbl4/shop/internal/fetch"
)

func TestMaterializeEncodesImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("png-bytes"))
		case "/b.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := fetch.NewClient(fetch.Options{BaseDomain: server.URL, Timeout: 5 * time.Second})
	m := NewMaterializer(client, 5*time.Second, testLogger())

	urls := []string{
		server.URL + "/a.png",
		server.URL + "/missing.png",
		server.URL + "/b.jpg",
	}
	materialized := m.Materialize(context.Background(), urls)

	// The failed download is skipped; the rest keep their input order.
	require.Len(t, materialized, 2)
	assert.True(t, strings.HasPrefix(materialized[0], "data:image/png;base64,"))
	assert.True(t, strings.HasPrefix(materialized[1], "data:image/jpeg;base64,"))
}

func TestMaterializeEmptyInput(t *testing.T) {
	client := fetch.NewClient(fetch.Options{BaseDomain: "https://example.com"})
	m := NewMaterializer(client, time.Second, testLogger())

	assert.Nil(t, m.Materialize(context.Background(), nil))
}
