package util

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var unsafeObjectChars = regexp.MustCompile(`[^a-z0-9_\-]`)

// GCSBucket writes and lists objects in one bucket. A client is opened per
// call; the service archives a handful of files a day.
type GCSBucket struct {
	Name    string
	Options []option.ClientOption
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Name    string    `json:"name"`
	URL     string    `json:"url"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
}

func (b *GCSBucket) client(ctx context.Context) (*storage.Client, error) {
	if b == nil || strings.TrimSpace(b.Name) == "" {
		return nil, errors.New("gcs bucket is not configured")
	}
	return storage.NewClient(ctx, b.Options...)
}

// Upload stores data under objectName and returns its gs:// URL and size.
func (b *GCSBucket) Upload(ctx context.Context, objectName, contentType string, data []byte) (string, int64, error) {
	client, err := b.client(ctx)
	if err != nil {
		return "", 0, err
	}
	defer client.Close()

	w := client.Bucket(b.Name).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	n, err := w.Write(data)
	if err != nil {
		_ = w.Close()
		return "", 0, err
	}
	if err := w.Close(); err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("gs://%s/%s", b.Name, objectName), int64(n), nil
}

// List returns the objects under prefix in bucket order.
func (b *GCSBucket) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	client, err := b.client(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var out []ObjectInfo
	it := client.Bucket(b.Name).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		obj, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ObjectInfo{
			Name:    obj.Name,
			URL:     PublicGCSURL(b.Name, obj.Name),
			Size:    obj.Size,
			Created: obj.Created.UTC(),
		})
	}
	return out, nil
}

func SanitizePart(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafeObjectChars.ReplaceAllString(s, "")
	if s == "" {
		return "unknown"
	}
	return s
}

// TimestampedObject builds prefix/20060102T150405Z_<name>.<ext>.
func TimestampedObject(prefix string, at time.Time, name, ext string) string {
	return fmt.Sprintf("%s/%s_%s.%s",
		strings.TrimSuffix(prefix, "/"), at.UTC().Format("20060102T150405Z"), SanitizePart(name), ext)
}

func PublicGCSURL(bucket, objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectPath)
}
