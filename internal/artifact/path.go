package artifact

import (
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultRoot is the blob namespace payloads are written under.
const DefaultRoot = "htmls"

const dayLayout = "2006-01-02"

// Partition returns the date-partitioned directory for t, e.g.
// "htmls/2024-05-01/". The date is always taken in UTC.
func Partition(root string, t time.Time) string {
	return path.Join(root, t.UTC().Format(dayLayout)) + "/"
}

// BlobPath returns where the payload of artifact id is stored.
func BlobPath(root string, t time.Time, id string) string {
	return Partition(root, t) + id + ".html"
}

// DetectVideo reports whether href points at a video page, identified by a
// non-empty "v" query parameter, and returns the video id.
func DetectVideo(href string) (bool, string) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return false, ""
	}
	v := u.Query().Get("v")
	if v == "" {
		return false, ""
	}
	return true, v
}
