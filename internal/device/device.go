package device

import (
	"strings"

	"github.com/timbocorrea/studylog/internal/models"

	"github.com/google/uuid"
)

// NewSessionID generates a client-side session identifier, stable for the
// lifetime of one viewing episode.
func NewSessionID() string {
	return uuid.NewString()
}

// Classify maps a user agent string to a coarse device class. Unknown or
// empty agents fall back to Desktop.
func Classify(userAgent string) models.DeviceClass {
	ua := strings.ToLower(userAgent)

	tablets := []string{"ipad", "tablet", "kindle", "silk", "playbook"}
	for _, marker := range tablets {
		if strings.Contains(ua, marker) {
			return models.DeviceTablet
		}
	}

	// Android tablets omit "mobile" from their agent string.
	if strings.Contains(ua, "android") && !strings.Contains(ua, "mobile") {
		return models.DeviceTablet
	}

	mobiles := []string{"mobile", "iphone", "ipod", "android", "blackberry", "windows phone", "opera mini"}
	for _, marker := range mobiles {
		if strings.Contains(ua, marker) {
			return models.DeviceMobile
		}
	}

	return models.DeviceDesktop
}
