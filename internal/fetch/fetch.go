package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// TransportError covers everything that prevents a page from being parsed at
// all: network failures, non-2xx statuses, non-HTML payloads. It is always
// fatal to the current call.
type TransportError struct {
	URL    string
	Status int
	Cause  string
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %s", e.URL, e.Status, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Cause)
}

// Page holds one fetched document for the duration of a single extraction.
type Page struct {
	URL         string
	BaseDomain  string
	ContentType string
	Body        []byte

	docOnce sync.Once
	doc     *goquery.Document
	docErr  error
}

// Document parses the markup on first use and caches the result.
func (p *Page) Document() (*goquery.Document, error) {
	p.docOnce.Do(func() {
		p.doc, p.docErr = goquery.NewDocumentFromReader(strings.NewReader(string(p.Body)))
	})
	return p.doc, p.docErr
}

type Client struct {
	http       *resty.Client
	baseDomain string
}

type Options struct {
	BaseDomain   string
	UserAgent    string
	Timeout      time.Duration
	ImageTimeout time.Duration
}

func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	http := resty.New().
		SetTimeout(opts.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8").
		SetHeader("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7").
		SetHeader("Cache-Control", "no-cache")

	return &Client{
		http:       http,
		baseDomain: strings.TrimSuffix(opts.BaseDomain, "/"),
	}
}

// Page fetches a product or category page and validates that the response is
// HTML. The referer is derived from the page's own host so that both the
// mirror domain and the upstream marketplace accept the request.
func (c *Client) Page(ctx context.Context, pageURL string) (*Page, error) {
	base, err := baseDomainOf(pageURL, c.baseDomain)
	if err != nil {
		return nil, &TransportError{URL: pageURL, Cause: err.Error()}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Referer", base+"/").
		Get(pageURL)
	if err != nil {
		return nil, &TransportError{URL: pageURL, Cause: err.Error()}
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &TransportError{
			URL:    pageURL,
			Status: resp.StatusCode(),
			Cause:  "unexpected status",
		}
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/html") {
		return nil, &TransportError{
			URL:    pageURL,
			Status: resp.StatusCode(),
			Cause:  fmt.Sprintf("non-HTML content type %q", contentType),
		}
	}

	return &Page{
		URL:         pageURL,
		BaseDomain:  base,
		ContentType: contentType,
		Body:        resp.Body(),
	}, nil
}

// Image fetches a single image and returns its bytes with the declared
// content type. Unlike Page it accepts any content type; missing types
// default to JPEG as most CDNs omit the header on image variants.
func (c *Client) Image(ctx context.Context, imageURL string) ([]byte, string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Referer", c.baseDomain+"/").
		Get(imageURL)
	if err != nil {
		return nil, "", &TransportError{URL: imageURL, Cause: err.Error()}
	}

	if resp.StatusCode() != 200 {
		return nil, "", &TransportError{URL: imageURL, Status: resp.StatusCode(), Cause: "unexpected status"}
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return resp.Body(), contentType, nil
}

func (c *Client) BaseDomain() string {
	return c.baseDomain
}

func baseDomainOf(pageURL, fallback string) (string, error) {
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return "", fmt.Errorf("URL must start with http:// or https://")
	}

	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		if fallback != "" {
			return fallback, nil
		}
		return "", fmt.Errorf("invalid URL")
	}

	return u.Scheme + "://" + u.Host, nil
}
