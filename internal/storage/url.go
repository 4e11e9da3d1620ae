package storage

import (
	"net/url"
	"strings"

	"prism/internal/models"
)

const defaultRegion = "us-east-1"

// URLFor returns the public URL of key inside bucket.
// Region-specific hosts are used because virtual hosts do not work over
// https when the bucket name contains a dot.
func URLFor(bucket models.Bucket, key string) string {
	if bucket.Endpoint != "" {
		return strings.TrimRight(bucket.Endpoint, "/") + "/" + bucket.Name + "/" + escapeKey(key)
	}

	host := "s3.amazonaws.com"
	if bucket.Region != "" && bucket.Region != defaultRegion {
		host = "s3-" + bucket.Region + ".amazonaws.com"
	}
	return "https://" + host + "/" + bucket.Name + "/" + escapeKey(key)
}

// AccelPath is the internal location a fronting nginx maps back to the
// object store, e.g. /s3/s3.amazonaws.com/bucket/key
func AccelPath(objectURL string) string {
	trimmed := strings.TrimPrefix(objectURL, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	return "/s3/" + trimmed
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
