package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)
	idPattern        = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,63}$`)
)

// DatasetSnapshotKey returns the object key of one stored dataset version.
func DatasetSnapshotKey(datasetName, datasetID string) (string, error) {
	slug := Slug(datasetName)
	if slug == "" {
		return "", fmt.Errorf("invalid dataset name: %q", datasetName)
	}
	if !idPattern.MatchString(datasetID) {
		return "", fmt.Errorf("invalid dataset id: %q", datasetID)
	}
	return path.Join("datasets", slug, datasetID+".parquet"), nil
}

// Slug lowercases name and collapses every run of characters outside
// [a-z0-9] to a single dash.
func Slug(name string) string {
	slug := slugInvalidChars.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 96 {
		slug = strings.TrimRight(slug[:96], "-")
	}
	return slug
}

// NormalizeKey joins key under prefix and rejects keys that escape it.
func NormalizeKey(prefix, key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/../") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	if prefix == "" {
		return cleaned, nil
	}
	return path.Join(prefix, cleaned), nil
}

func CleanPrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	prefix = path.Clean(prefix)
	if prefix == "." {
		return ""
	}
	return prefix
}
