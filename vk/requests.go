package vk

import (
	"net/url"
	"strconv"
)

const (
	methodGetWallUploadServer = "photos.getWallUploadServer"
	methodSaveWallPhoto       = "photos.saveWallPhoto"
	methodWallPost            = "wall.post"
)

// request renders the method-specific form fields of an API call. The
// client adds access_token and v.
type request interface {
	method() string
	values() url.Values
}

type getWallUploadServerRequest struct {
	GroupID int64
}

func (getWallUploadServerRequest) method() string { return methodGetWallUploadServer }

func (r getWallUploadServerRequest) values() url.Values {
	return url.Values{
		"group_id": {strconv.FormatInt(r.GroupID, 10)},
	}
}

type saveWallPhotoRequest struct {
	GroupID int64
	Photo   UploadedPhoto
}

func (saveWallPhotoRequest) method() string { return methodSaveWallPhoto }

func (r saveWallPhotoRequest) values() url.Values {
	return url.Values{
		"group_id": {strconv.FormatInt(r.GroupID, 10)},
		"photo":    {r.Photo.Photo},
		"server":   {string(r.Photo.Server)},
		"hash":     {r.Photo.Hash},
	}
}

type wallPostRequest struct {
	OwnerID    int64
	FromGroup  bool
	Attachment string
	Message    string
}

func (wallPostRequest) method() string { return methodWallPost }

func (r wallPostRequest) values() url.Values {
	fromGroup := "0"
	if r.FromGroup {
		fromGroup = "1"
	}
	return url.Values{
		"owner_id":    {strconv.FormatInt(r.OwnerID, 10)},
		"from_group":  {fromGroup},
		"attachments": {r.Attachment},
		"message":     {r.Message},
	}
}
