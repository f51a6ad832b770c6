package form

import (
	"fmt"
	"regexp"

	"github.com/gabriel-vasile/mimetype"
)

// MaxPosterSize is the maximum size of an uploaded poster image
const MaxPosterSize = 5 << 20

// AllowedPosterTypes lists the MIME types accepted for poster uploads
var AllowedPosterTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

var posterURLPattern = regexp.MustCompile(`(?i)^https?://\S+\.(jpg|jpeg|png|webp|gif)(\?\S*)?$`)

// Upload is a binary poster upload
type Upload struct {
	Filename string
	Content  []byte
}

// IsPosterURL checks if the string looks like the URL of an image in one of the supported formats
func IsPosterURL(s string) bool {
	return posterURLPattern.MatchString(s)
}

// ValidatePoster checks the poster value of a form. The value is either an upload or the URL of an image. An empty
// string means the value is valid
func ValidatePoster(value interface{}) string {
	switch v := value.(type) {
	case *Upload:
		if v == nil || len(v.Content) == 0 {
			return "Poster is required"
		}
		if len(v.Content) > MaxPosterSize {
			return fmt.Sprintf("Poster must not be larger than %d MB", MaxPosterSize>>20)
		}
		if !isAllowedType(v.Content) {
			return "Poster must be a JPEG, PNG, WebP or GIF image"
		}
	case string:
		if v == "" {
			return "Poster is required"
		}
		if !IsPosterURL(v) {
			return "Poster URL must point to a JPEG, PNG, WebP or GIF image"
		}
	default:
		return "Poster is required"
	}
	return ""
}

func isAllowedType(content []byte) bool {
	mt := mimetype.Detect(content)
	for _, t := range AllowedPosterTypes {
		if mt.Is(t) {
			return true
		}
	}
	return false
}
