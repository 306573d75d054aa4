// Package vk posts photos to a VK community wall.
//
// Publishing takes four calls, each consuming the result of the previous one:
// photos.getWallUploadServer, an upload to the returned server,
// photos.saveWallPhoto and wall.post.
package vk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mlafeldt/xkcd-wall/transport"
)

const (
	// DefaultBaseURL is the root of the VK method API.
	DefaultBaseURL = "https://api.vk.com/method"

	// DefaultVersion is the API version every call is pinned to.
	DefaultVersion = "5.81"
)

// VK addresses communities with negative owner ids and users with positive
// ones. Group ids are configured as the positive community id.
const communityOwnerSign = -1

// CommunityOwnerID returns the owner id of the wall of community groupID.
func CommunityOwnerID(groupID int64) int64 {
	return communityOwnerSign * groupID
}

// ID is a VK identifier. VK sends ids as JSON numbers, but some upload
// servers send strings, so both are accepted.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n)
	return nil
}

// UploadServer is where a wall photo has to be uploaded to.
type UploadServer struct {
	UploadURL string `json:"upload_url"`
}

// UploadedPhoto is returned by the upload server and must be passed on to
// SaveWallPhoto.
type UploadedPhoto struct {
	Server ID     `json:"server"`
	Photo  string `json:"photo"`
	Hash   string `json:"hash"`
}

// SavedPhoto is a photo stored on VK that can be attached to a post.
type SavedPhoto struct {
	ID      ID `json:"id"`
	OwnerID ID `json:"owner_id"`
}

// Attachment renders the reference used in the attachments field of a post.
func (p SavedPhoto) Attachment() string {
	return fmt.Sprintf("photo%s_%s", p.OwnerID, p.ID)
}

type wallPostResponse struct {
	PostID int64 `json:"post_id"`
}

// Client calls the VK API on behalf of one community.
type Client struct {
	BaseURL    string
	Token      string
	GroupID    int64
	Version    string
	FromGroup  bool
	HTTPClient *http.Client
}

// NewClient returns a client for the public VK API.
func NewClient(token string, groupID int64) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		Token:      token,
		GroupID:    groupID,
		Version:    DefaultVersion,
		HTTPClient: transport.DefaultClient,
	}
}

// WallUploadServer asks for an upload URL for a wall photo.
func (c *Client) WallUploadServer(ctx context.Context) (*UploadServer, error) {
	srv, err := call[UploadServer](ctx, c, getWallUploadServerRequest{GroupID: c.GroupID})
	if err != nil {
		return nil, err
	}
	if srv.UploadURL == "" {
		return nil, fmt.Errorf("%s returned no upload_url", methodGetWallUploadServer)
	}
	return srv, nil
}

// UploadPhoto sends the file at path to uploadURL as a multipart form.
func (c *Client) UploadPhoto(ctx context.Context, uploadURL, path string) (*UploadedPhoto, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("photo", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", uploadURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := transport.Do(c.HTTPClient, req)
	if err != nil {
		return nil, errors.Wrap(bodyError(err), "upload photo")
	}
	defer resp.Body.Close()

	var data struct {
		UploadedPhoto
		Error *APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, errors.Wrap(err, "decode upload response")
	}
	if data.Error != nil {
		return nil, data.Error
	}
	// The upload server reports a rejected file as an empty photo list.
	if p := strings.TrimSpace(data.Photo); p == "" || p == "[]" {
		return nil, fmt.Errorf("upload server accepted no photo")
	}
	return &data.UploadedPhoto, nil
}

// SaveWallPhoto stores an uploaded photo and returns it.
func (c *Client) SaveWallPhoto(ctx context.Context, photo UploadedPhoto) (*SavedPhoto, error) {
	saved, err := call[[]SavedPhoto](ctx, c, saveWallPhotoRequest{GroupID: c.GroupID, Photo: photo})
	if err != nil {
		return nil, err
	}
	if len(*saved) == 0 {
		return nil, fmt.Errorf("%s returned no photos", methodSaveWallPhoto)
	}
	return &(*saved)[0], nil
}

// PostToWall publishes message with photo attached on the community wall and
// returns the post id.
func (c *Client) PostToWall(ctx context.Context, photo SavedPhoto, message string) (int64, error) {
	res, err := call[wallPostResponse](ctx, c, wallPostRequest{
		OwnerID:    CommunityOwnerID(c.GroupID),
		FromGroup:  c.FromGroup,
		Attachment: photo.Attachment(),
		Message:    message,
	})
	if err != nil {
		return 0, err
	}
	return res.PostID, nil
}

func (c *Client) version() string {
	if c.Version == "" {
		return DefaultVersion
	}
	return c.Version
}

// call invokes an API method and decodes its envelope. Method failures come
// back as *APIError whatever the status, other transport failures as
// *transport.StatusError.
func call[T any](ctx context.Context, c *Client, r request) (*T, error) {
	form := r.values()
	form.Set("access_token", c.Token)
	form.Set("v", c.version())

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/"+r.method(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := transport.Do(c.HTTPClient, req)
	if err != nil {
		return nil, errors.Wrap(bodyError(err), r.method())
	}
	defer resp.Body.Close()

	var env envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, errors.Wrapf(err, "decode %s response", r.method())
	}
	res, err := env.result()
	if err != nil {
		return nil, errors.Wrap(err, r.method())
	}
	return res, nil
}
