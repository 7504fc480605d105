package config

import (
	"sync"
)

var (
	serverOnce   sync.Once
	serverConfig *ServerConfig
)

// ServerConfig holds the HTTP facade settings, including the response-size
// policy: conversions longer than InlineThreshold characters are cached and
// served back in SegmentSize slices.
type ServerConfig struct {
	Addr            string
	ProjectRoot     string
	PagesPerChunk   int
	MaxConcurrent   int
	SegmentSize     int
	InlineThreshold int
}

func GetServerConfig() *ServerConfig {
	serverOnce.Do(func() {
		loadEnv()

		serverConfig = &ServerConfig{
			Addr:            getEnv("SERVER_ADDR", ":8080"),
			ProjectRoot:     getEnv("PROJECT_ROOT", "."),
			PagesPerChunk:   getEnvInt("PAGES_PER_CHUNK", 40),
			MaxConcurrent:   getEnvInt("MAX_CONCURRENT_CHUNKS", 4),
			SegmentSize:     getEnvInt("SEGMENT_SIZE", 100000),
			InlineThreshold: getEnvInt("INLINE_THRESHOLD", 100000),
		}
	})
	return serverConfig
}
