// Save as: internal/config/environment.go
package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port          int
	ExternalProxy string // optional egress proxy for upstream fetches
	SafetyCheck   bool   // content-safety checking on streamed media
	CacheDir      string
	DownloadAudio bool // download-and-cache YouTube audio instead of resolving direct URLs
}

func GetConfig() Config {
	config := Config{
		Port:          8080, // default port
		SafetyCheck:   true,
		CacheDir:      "cache",
		DownloadAudio: true,
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}

	if proxy := os.Getenv("EXTERNAL_PROXY"); proxy != "" {
		config.ExternalProxy = proxy
	}

	if v := os.Getenv("DISABLE_SAFETY_CHECK"); v != "" {
		if disabled, err := strconv.ParseBool(v); err == nil {
			config.SafetyCheck = !disabled
		}
	}

	if dir := os.Getenv("CACHE_DIR"); dir != "" {
		config.CacheDir = dir
	}

	if v := os.Getenv("YOUTUBE_DOWNLOAD"); v != "" {
		if download, err := strconv.ParseBool(v); err == nil {
			config.DownloadAudio = download
		}
	}

	return config
}

func (c Config) GetAddress() string {
	return fmt.Sprintf(":%d", c.Port)
}
