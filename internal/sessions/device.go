package sessions

import (
	"strings"

	"github.com/mssola/useragent"
)

// DeviceFromUserAgent derives a coarse device snapshot from a User-Agent
// header. It only distinguishes what session listings display.
func DeviceFromUserAgent(header string) DeviceInfo {
	info := DeviceInfo{Type: DeviceDesktop, Browser: "Unknown", OS: "Unknown"}
	if strings.TrimSpace(header) == "" {
		return info
	}
	ua := useragent.New(header)
	osName := ua.OSInfo().Name
	platform := ua.Platform()

	switch {
	case platform == "iPad",
		strings.Contains(header, "Tablet"),
		strings.HasPrefix(osName, "Android") && !ua.Mobile():
		info.Type = DeviceTablet
	case ua.Mobile():
		info.Type = DeviceMobile
	}

	switch {
	case platform == "iPhone", platform == "iPad", platform == "iPod":
		info.OS = "iOS"
	case strings.HasPrefix(osName, "Android"):
		info.OS = "Android"
	case strings.HasPrefix(osName, "Windows"):
		info.OS = "Windows"
	case platform == "Macintosh":
		info.OS = "macOS"
	case strings.Contains(osName, "Linux"), platform == "X11", platform == "Linux":
		info.OS = "Linux"
	}

	if name, _ := ua.Browser(); name != "" {
		info.Browser = name
	}
	return info
}
