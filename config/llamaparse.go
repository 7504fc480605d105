package config

import (
	"sync"
	"time"
)

var (
	llamaParseOnce   sync.Once
	llamaParseConfig *LlamaParseConfig
)

// LlamaParseConfig configures the LlamaParse cloud engine. SEC filings are
// text-based PDFs, so OCR stays off by default for speed.
type LlamaParseConfig struct {
	APIKey       string
	BaseURL      string
	ResultType   string
	Language     string
	DisableOCR   bool
	HideHeaders  bool
	HideFooters  bool
	PollInterval time.Duration
	Timeout      time.Duration
}

func GetLlamaParseConfig() *LlamaParseConfig {
	llamaParseOnce.Do(func() {
		loadEnv()

		llamaParseConfig = &LlamaParseConfig{
			APIKey:       getEnv("LLAMA_CLOUD_API_KEY", ""),
			BaseURL:      getEnv("LLAMA_CLOUD_BASE_URL", "https://api.cloud.llamaindex.ai"),
			ResultType:   getEnv("LLAMA_PARSE_RESULT_TYPE", "markdown"),
			Language:     getEnv("LLAMA_PARSE_LANGUAGE", "en"),
			DisableOCR:   getEnvBool("LLAMA_PARSE_DISABLE_OCR", true),
			HideHeaders:  getEnvBool("LLAMA_PARSE_HIDE_HEADERS", true),
			HideFooters:  getEnvBool("LLAMA_PARSE_HIDE_FOOTERS", true),
			PollInterval: getEnvDuration("LLAMA_PARSE_POLL_INTERVAL", 2*time.Second),
			Timeout:      getEnvDuration("LLAMA_PARSE_TIMEOUT", 10*time.Minute),
		}
	})
	return llamaParseConfig
}
