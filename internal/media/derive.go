package media

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Cloudinary-style delivery URLs carry a version segment before the folder.
var versionSegment = regexp.MustCompile(`^v\d+$`)

// DeriveAssetID extracts "<folder>/<name>.<ext>" from the tail of a media URL.
// It is used for records that predate stored asset ids.
// Unrecognized shapes yield "".
func DeriveAssetID(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) < 2 {
		return ""
	}

	file := segments[len(segments)-1]
	folder := segments[len(segments)-2]

	if path.Ext(file) == "" || strings.HasPrefix(file, ".") {
		return ""
	}
	if versionSegment.MatchString(folder) || folder == "upload" {
		return ""
	}

	id := folder + "/" + file
	if _, _, err := splitAssetID(id); err != nil {
		return ""
	}
	return id
}
