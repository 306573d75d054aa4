// Package archive mirrors downloaded strips to S3.
package archive

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/pkg/errors"
)

// Archive stores strip images in an S3 bucket.
type Archive struct {
	BucketName string
	Prefix     string
	Uploader   s3manageriface.UploaderAPI
}

// New returns an Archive using the default AWS credential chain.
func New(bucketName, prefix string) (*Archive, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, err
	}
	return &Archive{
		BucketName: bucketName,
		Prefix:     prefix,
		Uploader:   s3manager.NewUploader(sess),
	}, nil
}

// Key returns the object key for comic num stored from path.
func (a *Archive) Key(num int, path string) string {
	return fmt.Sprintf("%s%d%s", a.Prefix, num, filepath.Ext(path))
}

// Store uploads the file at path as comic num and returns its location.
func (a *Archive) Store(ctx context.Context, num int, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	upload, err := a.Uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(a.BucketName),
		Key:         aws.String(a.Key(num, path)),
		ContentType: aws.String(contentType),
		Body:        f,
	})
	if err != nil {
		return "", errors.Wrapf(err, "archive comic %d to bucket %q", num, a.BucketName)
	}

	return upload.Location, nil
}
