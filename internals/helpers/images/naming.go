package images

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const DefaultExtension = "jpg"

// MakeName returns the opaque stem shared by every derivative of one logical image.
// There is no decode path: the stem only identifies, it does not describe.
func MakeName(secret, logicalKey string) string {
	sum := md5.Sum([]byte(secret + logicalKey))
	return hex.EncodeToString(sum[:])
}

// LogicalKey builds "{organization}-{theme}-{purpose}".
func LogicalKey(organizationName string, themeID int64, purpose string) string {
	return organizationName + "-" + strconv.FormatInt(themeID, 10) + "-" + purpose
}

// Filename renders "{name}_{WxH}.{ext}".
func Filename(name string, size Size, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = DefaultExtension
	}
	return fmt.Sprintf("%s_%s.%s", name, size.Pixels(), ext)
}

// Names maps each size's pixel label to its stored filename.
func Names(secret, logicalKey string, sizes []Size, ext string) map[string]string {
	name := MakeName(secret, logicalKey)
	out := make(map[string]string, len(sizes))
	for _, s := range sizes {
		out[s.Pixels()] = Filename(name, s, ext)
	}
	return out
}
