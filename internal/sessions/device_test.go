package sessions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceFromUserAgent(t *testing.T) {
	cases := []struct {
		ua   string
		want DeviceInfo
	}{
		{
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
			DeviceInfo{Type: DeviceMobile, Browser: "Safari", OS: "iOS"},
		},
		{
			"Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
			DeviceInfo{Type: DeviceTablet, Browser: "Safari", OS: "iOS"},
		},
		{
			"Mozilla/5.0 (Linux; Android 14; SM-X710) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			DeviceInfo{Type: DeviceTablet, Browser: "Chrome", OS: "Android"},
		},
		{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			DeviceInfo{Type: DeviceDesktop, Browser: "Chrome", OS: "Windows"},
		},
		{
			"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
			DeviceInfo{Type: DeviceDesktop, Browser: "Firefox", OS: "Linux"},
		},
		{
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
			DeviceInfo{Type: DeviceDesktop, Browser: "Safari", OS: "macOS"},
		},
		{
			"   ",
			DeviceInfo{Type: DeviceDesktop, Browser: "Unknown", OS: "Unknown"},
		},
		{
			"",
			DeviceInfo{Type: DeviceDesktop, Browser: "Unknown", OS: "Unknown"},
		},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeviceFromUserAgent(tc.ua), tc.ua)
	}
}
