package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
)

const stubData = "image data"

// chainServer redirects /hop/N to /hop/N-1 and serves the body at /hop/0.
func chainServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/hop/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if n > 0 {
			http.Redirect(w, r, fmt.Sprintf("/hop/%d", n-1), http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, stubData)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readAll(t *testing.T, body io.ReadCloser) string {
	t.Helper()
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	return string(data)
}

func TestDownload_Success(t *testing.T) {
	srv := chainServer(t)

	body, err := New(nil, DefaultRedirectLimit).Download(context.Background(), srv.URL+"/hop/0", nil)
	require.NoError(t, err)
	assert.Equal(t, stubData, readAll(t, body))
}

func TestDownload_RedirectBudget(t *testing.T) {
	srv := chainServer(t)
	d := New(nil, DefaultRedirectLimit)

	body, err := d.Download(context.Background(), srv.URL+"/hop/10", nil)
	require.NoError(t, err, "a chain of exactly the budget must succeed")
	assert.Equal(t, stubData, readAll(t, body))

	_, err = d.Download(context.Background(), srv.URL+"/hop/11", nil)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindImageDownload))
	assert.Contains(t, err.Error(), "too many redirects")
}

func TestDownload_RedirectLoop(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/test.img", http.StatusFound)
	}))
	defer srv.Close()

	_, err := New(nil, DefaultRedirectLimit).Download(context.Background(), srv.URL+"/test.img", nil)
	assert.True(t, model.IsKind(err, model.KindImageDownload))
}

func TestDownload_OneRedirectToOtherHost(t *testing.T) {
	var authSeen bool
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, authSeen = r.BasicAuth()
		_, _ = io.WriteString(w, stubData)
	}))
	defer final.Close()

	var originUser string
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		originUser, _, _ = r.BasicAuth()
		http.Redirect(w, r, final.URL+"/test.img", http.StatusMovedPermanently)
	}))
	defer origin.Close()

	body, err := New(nil, DefaultRedirectLimit).Download(context.Background(), origin.URL+"/test.img",
		&Credentials{Username: "root", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, stubData, readAll(t, body))
	assert.Equal(t, "root", originUser)
	assert.False(t, authSeen, "credentials must not follow a redirect to another host")
}

func TestDownload_CredentialsFollowSameHost(t *testing.T) {
	var users []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, _ := r.BasicAuth()
		users = append(users, user)
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/final", http.StatusTemporaryRedirect)
			return
		}
		_, _ = io.WriteString(w, stubData)
	}))
	defer srv.Close()

	body, err := New(nil, 1).Download(context.Background(), srv.URL+"/start", &Credentials{Username: "root", Password: "pw"})
	require.NoError(t, err)
	readAll(t, body)
	assert.Equal(t, []string{"root", "root"}, users)
}

func TestDownload_FailedStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(nil, DefaultRedirectLimit).Download(context.Background(), srv.URL+"/test.img", nil)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindImageDownload))
	assert.Contains(t, err.Error(), "404")
}

func TestDownload_MalformedUri(t *testing.T) {
	d := New(nil, DefaultRedirectLimit)
	for _, uri := range []string{"://broken", "ftp://host/image.img", "/relative/path"} {
		_, err := d.Download(context.Background(), uri, nil)
		assert.True(t, model.IsKind(err, model.KindImageDownload), uri)
	}
}

func TestDownload_StreamsLargeBody(t *testing.T) {
	const size = 4 << 20
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := strings.Repeat("x", 64<<10)
		for written := 0; written < size; written += len(chunk) {
			_, _ = io.WriteString(w, chunk)
		}
	}))
	defer srv.Close()

	body, err := New(nil, DefaultRedirectLimit).Download(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	defer body.Close()

	n, err := io.Copy(io.Discard, body)
	require.NoError(t, err)
	assert.Equal(t, int64(size), n)
}

func TestDownload_Cancelled(t *testing.T) {
	srv := chainServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil, DefaultRedirectLimit).Download(ctx, srv.URL+"/hop/0", nil)
	assert.True(t, model.IsKind(err, model.KindCancelled))
}
