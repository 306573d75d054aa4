package vk_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlafeldt/xkcd-wall/transport"
	"github.com/mlafeldt/xkcd-wall/vk"
)

// fakeVK records the form of every method call and answers with canned
// bodies keyed by method name.
type fakeVK struct {
	srv    *httptest.Server
	status map[string]int
	bodies map[string]string
	forms  map[string]url.Values
	upload []byte
}

func newFakeVK(t *testing.T) *fakeVK {
	f := &fakeVK{
		status: map[string]int{},
		bodies: map[string]string{
			"upload":               `{"server":"s","photo":"p","hash":"h"}`,
			"photos.saveWallPhoto": `{"response":[{"id":42,"owner_id":-100,"album_id":-14}]}`,
			"wall.post":            `{"response":{"post_id":7}}`,
		},
		forms: map[string]url.Values{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/method/", func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[len("/method/"):]
		if !assert.NoError(t, r.ParseForm()) {
			return
		}
		f.forms[method] = r.PostForm
		f.reply(w, method)
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("photo")
		if !assert.NoError(t, err) {
			return
		}
		f.upload, err = io.ReadAll(file)
		assert.NoError(t, err)
		f.reply(w, "upload")
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	f.bodies["photos.getWallUploadServer"] = `{"response":{"upload_url":"` + f.srv.URL + `/upload","album_id":-14,"user_id":0}}`
	return f
}

func (f *fakeVK) reply(w http.ResponseWriter, method string) {
	w.Header().Set("Content-Type", "application/json")
	if code, ok := f.status[method]; ok {
		w.WriteHeader(code)
	}
	io.WriteString(w, f.bodies[method])
}

func (f *fakeVK) client() *vk.Client {
	c := vk.NewClient("TOKEN", 100)
	c.BaseURL = f.srv.URL + "/method"
	c.HTTPClient = f.srv.Client()
	return c
}

func writeFile(t *testing.T, name string, data []byte) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestPublishSequence(t *testing.T) {
	f := newFakeVK(t)
	c := f.client()
	ctx := context.Background()
	data := []byte("\x89PNG fake image bytes")
	path := writeFile(t, "sample.png", data)

	srv, err := c.WallUploadServer(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.srv.URL+"/upload", srv.UploadURL)

	uploaded, err := c.UploadPhoto(ctx, srv.UploadURL, path)
	require.NoError(t, err)
	assert.Len(t, f.upload, len(data))
	if diff := cmp.Diff(&vk.UploadedPhoto{Server: "s", Photo: "p", Hash: "h"}, uploaded); diff != "" {
		t.Error(diff)
	}

	saved, err := c.SaveWallPhoto(ctx, *uploaded)
	require.NoError(t, err)
	if diff := cmp.Diff(&vk.SavedPhoto{ID: "42", OwnerID: "-100"}, saved); diff != "" {
		t.Error(diff)
	}

	postID, err := c.PostToWall(ctx, *saved, "Sample")
	require.NoError(t, err)
	assert.EqualValues(t, 7, postID)

	want := map[string]url.Values{
		"photos.getWallUploadServer": {
			"access_token": {"TOKEN"},
			"group_id":     {"100"},
			"v":            {vk.DefaultVersion},
		},
		"photos.saveWallPhoto": {
			"access_token": {"TOKEN"},
			"group_id":     {"100"},
			"photo":        {"p"},
			"server":       {"s"},
			"hash":         {"h"},
			"v":            {vk.DefaultVersion},
		},
		"wall.post": {
			"access_token": {"TOKEN"},
			"owner_id":     {"-100"},
			"from_group":   {"0"},
			"attachments":  {"photo-100_42"},
			"message":      {"Sample"},
			"v":            {vk.DefaultVersion},
		},
	}
	if diff := cmp.Diff(want, f.forms); diff != "" {
		t.Error(diff)
	}
}

func TestAPIErrorWithStatusOK(t *testing.T) {
	for _, method := range []string{"photos.getWallUploadServer", "photos.saveWallPhoto", "wall.post", "upload"} {
		t.Run(method, func(t *testing.T) {
			f := newFakeVK(t)
			f.bodies[method] = `{"error":{"error_code":100,"error_msg":"bad","request_params":[]}}`
			err := runAll(t, f)

			var apiErr *vk.APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, 100, apiErr.Code)
			assert.Equal(t, "bad", apiErr.Message)
		})
	}
}

func TestAPIErrorWithErrorStatus(t *testing.T) {
	for _, method := range []string{"photos.getWallUploadServer", "photos.saveWallPhoto", "wall.post", "upload"} {
		t.Run(method, func(t *testing.T) {
			f := newFakeVK(t)
			f.status[method] = http.StatusBadRequest
			f.bodies[method] = `{"error":{"error_code":100,"error_msg":"bad"}}`
			err := runAll(t, f)

			var apiErr *vk.APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, 100, apiErr.Code)
			assert.Equal(t, "bad", apiErr.Message)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		})
	}
}

func TestStatusErrorWithValidBody(t *testing.T) {
	for _, method := range []string{"photos.getWallUploadServer", "photos.saveWallPhoto", "wall.post", "upload"} {
		t.Run(method, func(t *testing.T) {
			f := newFakeVK(t)
			f.status[method] = http.StatusInternalServerError
			err := runAll(t, f)

			var se *transport.StatusError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, http.StatusInternalServerError, se.StatusCode)

			var apiErr *vk.APIError
			assert.False(t, errors.As(err, &apiErr))
		})
	}
}

// runAll runs the whole publishing sequence and returns the first error.
func runAll(t *testing.T, f *fakeVK) error {
	c := f.client()
	ctx := context.Background()
	path := writeFile(t, "sample.png", []byte("img"))

	srv, err := c.WallUploadServer(ctx)
	if err != nil {
		return err
	}
	uploaded, err := c.UploadPhoto(ctx, srv.UploadURL, path)
	if err != nil {
		return err
	}
	saved, err := c.SaveWallPhoto(ctx, *uploaded)
	if err != nil {
		return err
	}
	_, err = c.PostToWall(ctx, *saved, "caption")
	return err
}

func TestUploadServerStringError(t *testing.T) {
	f := newFakeVK(t)
	f.bodies["upload"] = `{"error":"invalid hash"}`
	err := runAll(t, f)

	var apiErr *vk.APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, "invalid hash", apiErr.Message)
}

func TestUploadRejectedPhoto(t *testing.T) {
	f := newFakeVK(t)
	f.bodies["upload"] = `{"server":1,"photo":"[]","hash":"h"}`
	assert.Error(t, runAll(t, f))
}

func TestSaveWallPhotoEmptyList(t *testing.T) {
	f := newFakeVK(t)
	f.bodies["photos.saveWallPhoto"] = `{"response":[]}`
	assert.Error(t, runAll(t, f))
}

func TestEmptyEnvelope(t *testing.T) {
	f := newFakeVK(t)
	f.bodies["wall.post"] = `{}`
	assert.Error(t, runAll(t, f))
}

func TestFromGroup(t *testing.T) {
	f := newFakeVK(t)
	c := f.client()
	c.FromGroup = true
	c.Version = "5.131"

	_, err := c.PostToWall(context.Background(), vk.SavedPhoto{ID: "1", OwnerID: "2"}, "")
	require.NoError(t, err)
	assert.Equal(t, "1", f.forms["wall.post"].Get("from_group"))
	assert.Equal(t, "photo2_1", f.forms["wall.post"].Get("attachments"))
	assert.Equal(t, "5.131", f.forms["wall.post"].Get("v"))
}

func TestIDDecoding(t *testing.T) {
	var p vk.UploadedPhoto
	require.NoError(t, json.Unmarshal([]byte(`{"server":123456,"photo":"x","hash":"y"}`), &p))
	assert.Equal(t, vk.ID("123456"), p.Server)

	require.NoError(t, json.Unmarshal([]byte(`{"server":"abc"}`), &p))
	assert.Equal(t, vk.ID("abc"), p.Server)

	assert.Error(t, json.Unmarshal([]byte(`{"server":{}}`), &p))
}

func TestCommunityOwnerID(t *testing.T) {
	assert.EqualValues(t, -100, vk.CommunityOwnerID(100))
}
