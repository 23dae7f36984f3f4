package content

import (
	"fmt"
	"regexp"
	"strings"
)

const maxNameLength = 60

var nameSanitizer = regexp.MustCompile(`[^a-z0-9_-]`)

// SanitizeName reduces an arbitrary string to the storage-safe alphabet
// (lowercase alphanumerics, hyphen, underscore), bounded in length. The
// result needs no further escaping before being joined into an object path.
func SanitizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = nameSanitizer.ReplaceAllString(name, "")
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	if name == "" {
		name = "item"
	}
	return name
}

// AssetPath builds the deterministic object key for an item's binary asset.
func AssetPath(sourceID, itemID, extension string) string {
	return fmt.Sprintf("%s/%s.%s", SanitizeName(sourceID), SanitizeName(itemID), extension)
}
