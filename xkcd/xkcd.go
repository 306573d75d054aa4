package xkcd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/mlafeldt/xkcd-wall/transport"
)

// DefaultBaseURL is where the xkcd JSON API lives.
const DefaultBaseURL = "https://xkcd.com"

// Comic describes an xkcd comic strip.
type Comic struct {
	Num      int    `json:"num"`
	Title    string `json:"safe_title"`
	Alt      string `json:"alt"`
	ImageURL string `json:"img"`
}

// Client talks to the xkcd API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for the public xkcd API.
func NewClient() *Client {
	return &Client{BaseURL: DefaultBaseURL, HTTPClient: transport.DefaultClient}
}

func (c *Client) get(ctx context.Context, rawurl string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawurl, nil)
	if err != nil {
		return nil, err
	}
	return transport.Do(c.HTTPClient, req)
}

func (c *Client) getJSON(ctx context.Context, rawurl string, v interface{}) error {
	resp, err := c.get(ctx, rawurl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrapf(err, "decode %s", rawurl)
	}
	return nil
}

// LatestNum returns the number of the most recent comic.
func (c *Client) LatestNum(ctx context.Context) (int, error) {
	var comic Comic
	if err := c.getJSON(ctx, c.BaseURL+"/info.0.json", &comic); err != nil {
		return 0, errors.Wrap(err, "get latest comic")
	}
	if comic.Num < 1 {
		return 0, fmt.Errorf("latest comic number %d out of range", comic.Num)
	}
	return comic.Num, nil
}

// Comic gets the metadata of comic num. Comics without an image in their
// JSON metadata are scraped from the comic page instead.
func (c *Client) Comic(ctx context.Context, num int) (*Comic, error) {
	if num < 1 {
		return nil, fmt.Errorf("invalid comic number %d", num)
	}

	var comic Comic
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%d/info.0.json", c.BaseURL, num), &comic); err != nil {
		return nil, errors.Wrapf(err, "get comic %d", num)
	}

	if strings.TrimSpace(comic.ImageURL) == "" {
		scraped, err := c.ScrapeComic(ctx, num)
		if err != nil {
			return nil, err
		}
		comic.ImageURL = scraped.ImageURL
		if comic.Alt == "" {
			comic.Alt = scraped.Alt
		}
	}
	comic.Num = num

	return &comic, nil
}

// ScrapeComic reads comic num from its HTML page.
func (c *Client) ScrapeComic(ctx context.Context, num int) (*Comic, error) {
	pageURL := fmt.Sprintf("%s/%d/", c.BaseURL, num)

	resp, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, errors.Wrapf(err, "scrape comic %d", num)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", pageURL)
	}

	var title, alt, src string

	img := doc.Find("#comic img").First()
	if v, ok := img.Attr("src"); ok {
		src = strings.TrimSpace(v)
	}
	if v, ok := img.Attr("title"); ok {
		alt = strings.TrimSpace(v)
	}
	if v, ok := img.Attr("alt"); ok {
		title = strings.TrimSpace(v)
	}

	if src == "" {
		return nil, fmt.Errorf("image URL not found for comic %d", num)
	}

	imageURL, err := c.resolve(src)
	if err != nil {
		return nil, err
	}

	return &Comic{
		Num:      num,
		Title:    title,
		Alt:      alt,
		ImageURL: imageURL,
	}, nil
}

// resolve turns the protocol-relative image paths used on xkcd pages into
// absolute URLs.
func (c *Client) resolve(ref string) (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", errors.Wrapf(err, "bad image URL %q", ref)
	}
	return base.ResolveReference(u).String(), nil
}

// Download writes the body of imageURL to dst and returns the number of
// bytes written. A partially written file is removed on error.
func (c *Client) Download(ctx context.Context, imageURL, dst string) (n int64, err error) {
	resp, err := c.get(ctx, imageURL)
	if err != nil {
		return 0, errors.Wrap(err, "download image")
	}
	defer resp.Body.Close()

	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	n, err = io.Copy(f, resp.Body)
	if err != nil {
		return n, errors.Wrapf(err, "write %s", dst)
	}
	return n, nil
}

// FileName derives a local file name from the last path segment of an image
// URL.
func FileName(imageURL string) (string, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	switch name {
	case "", ".", "..", "/":
		return "", fmt.Errorf("no file name in image URL %q", imageURL)
	}
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("bad file name %q in image URL", name)
	}
	return name, nil
}

// RandomNum picks a comic number in [1, latest]. Comic 0 does not exist.
// intn must return a value in [0, n).
func RandomNum(latest int, intn func(n int) int) (int, error) {
	if latest < 1 {
		return 0, fmt.Errorf("latest comic number %d out of range", latest)
	}
	return intn(latest) + 1, nil
}
