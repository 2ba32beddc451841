package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yalublugerbl4/shop/internal/fetch"
	"github.com/yalublugerbl4/shop/internal/ratelimit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCrawler(serverURL string, opts Options) *Crawler {
	client := fetch.NewClient(fetch.Options{
		BaseDomain: serverURL,
		Timeout:    5 * time.Second,
	})
	limiter := ratelimit.NewAdaptiveLimiter(0, 0)
	return New(client, limiter, opts, testLogger())
}

type pageRecorder struct {
	mu    sync.Mutex
	pages []string
}

func (r *pageRecorder) record(page string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, page)
}

func (r *pageRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.pages...)
}

func categoryPage(links []string, hasNext bool) string {
	html := "<html><body><div class=\"goods-list\">"
	for _, link := range links {
		html += fmt.Sprintf("<a href=%q>item</a>", link)
	}
	html += "</div><ul>"
	if hasNext {
		html += `<li class="ant-pagination-next"></li>`
	} else {
		html += `<li class="ant-pagination-next" aria-disabled="true"></li>`
	}
	html += "</ul></body></html>"
	return html
}

func TestCategoryLinksStopsWhenNoNextPage(t *testing.T) {
	recorder := &pageRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		recorder.record(page)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		switch page {
		case "1":
			w.Write([]byte(categoryPage([]string{"/product/1", "/product/2", "/product/3"}, true)))
		case "2":
			w.Write([]byte(categoryPage([]string{"/product/4", "/product/5"}, false)))
		default:
			t.Errorf("unexpected page fetched: %s", page)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := newTestCrawler(server.URL, Options{})
	links, err := c.CategoryLinks(context.Background(), server.URL+"/category/sneakers", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{
		server.URL + "/product/1",
		server.URL + "/product/2",
		server.URL + "/product/3",
		server.URL + "/product/4",
		server.URL + "/product/5",
	}, links)
	assert.Equal(t, []string{"1", "2"}, recorder.seen())
}

func TestCategoryLinksNotFoundIsCleanStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(categoryPage([]string{"/product/1"}, true)))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestCrawler(server.URL, Options{})
	links, err := c.CategoryLinks(context.Background(), server.URL+"/category/sneakers", 10)

	require.NoError(t, err)
	assert.Equal(t, []string{server.URL + "/product/1"}, links)
}

func TestCategoryLinksStructuredData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body>
			<script id="__NEXT_DATA__">{
				"props": {
					"products": [
						{"url": "/product/10"},
						{"url": "/product/11"}
					],
					"pagination": {"current": 1, "total": 1}
				}
			}</script>
		</body></html>`))
	}))
	defer server.Close()

	c := newTestCrawler(server.URL, Options{})
	links, err := c.CategoryLinks(context.Background(), server.URL+"/category/sneakers", 10)

	require.NoError(t, err)
	assert.Equal(t, []string{
		server.URL + "/product/10",
		server.URL + "/product/11",
	}, links)
}

func TestCategoryLinksHonorsLinkCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(categoryPage([]string{"/product/1", "/product/2", "/product/3"}, true)))
	}))
	defer server.Close()

	c := newTestCrawler(server.URL, Options{MaxLinks: 2})
	links, err := c.CategoryLinks(context.Background(), server.URL+"/category/sneakers", 10)

	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestCategoryLinksDeduplicatesAcrossPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Query().Get("page") {
		case "1":
			w.Write([]byte(categoryPage([]string{"/product/1", "/product/2"}, true)))
		default:
			// The same links again; nothing new stops the walk.
			w.Write([]byte(categoryPage([]string{"/product/1", "/product/2"}, true)))
		}
	}))
	defer server.Close()

	c := newTestCrawler(server.URL, Options{})
	links, err := c.CategoryLinks(context.Background(), server.URL+"/category/sneakers", 10)

	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestWithPageParam(t *testing.T) {
	assert.Equal(t, "https://x.ru/cat?page=2", withPageParam("https://x.ru/cat", 2))
	assert.Equal(t, "https://x.ru/cat?sort=new&page=2", withPageParam("https://x.ru/cat?sort=new", 2))
}
