package download

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
)

// DefaultRedirectLimit is the number of redirects followed before giving up.
const DefaultRedirectLimit = 10

type Credentials struct {
	Username string
	Password string
}

// Downloader streams remote images. Redirects are followed by hand so that the
// redirect budget and credential forwarding stay under its control.
type Downloader struct {
	client        *http.Client
	redirectLimit int
}

// New returns a Downloader using a copy of client (http.DefaultClient when nil).
func New(client *http.Client, redirectLimit int) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Downloader{client: &c, redirectLimit: redirectLimit}
}

// Download returns the body of uri once a non-redirect success response is
// reached. The caller reads the image incrementally and must close the body.
// Credentials are sent to the origin only; a redirect to another scheme or
// host is followed without them.
func (d *Downloader) Download(ctx context.Context, uri string, credentials *Credentials) (io.ReadCloser, error) {
	origin, err := parse(uri)
	if err != nil {
		return nil, err
	}
	return d.fetch(ctx, origin, origin, credentials, d.redirectLimit)
}

func (d *Downloader) fetch(ctx context.Context, target, origin *url.URL, credentials *Credentials, remaining int) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, model.WrapError(model.KindImageDownload, err, "cannot build request for [%s]", target)
	}
	if credentials != nil && sameOrigin(target, origin) {
		req.SetBasicAuth(credentials.Username, credentials.Password)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.WrapError(model.KindCancelled, ctx.Err(), "download of [%s] cancelled", target)
		}
		return nil, model.WrapError(model.KindImageDownload, err, "cannot download [%s]", target)
	}

	switch {
	case isRedirect(resp.StatusCode):
		location, err := resp.Location()
		resp.Body.Close()
		if err != nil {
			return nil, model.WrapError(model.KindImageDownload, err, "redirect from [%s] without usable location", target)
		}
		if remaining <= 0 {
			return nil, model.NewError(model.KindImageDownload, "too many redirects while downloading [%s]", origin)
		}
		logrus.Debugf("following redirect from [%s] to [%s]", target, location)
		return d.fetch(ctx, location, origin, credentials, remaining-1)

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.Body, nil

	default:
		resp.Body.Close()
		return nil, model.NewError(model.KindImageDownload, "failed to download image [%s]: status %d", target, resp.StatusCode)
	}
}

func parse(uri string) (*url.URL, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, model.WrapError(model.KindImageDownload, err, "malformed image uri")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, model.NewError(model.KindImageDownload, "unsupported image uri [%s]", uri)
	}
	return u, nil
}

func sameOrigin(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && a.Host == b.Host
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
