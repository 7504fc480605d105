package config

import (
	"sync"
	"time"
)

var (
	secOnce   sync.Once
	secConfig *SECConfig
)

// SECConfig configures the EDGAR client. SEC requires an identifying
// User-Agent and rate limiting between requests.
type SECConfig struct {
	UserAgent      string
	SubmissionsURL string
	ArchivesURL    string
	RequestDelay   time.Duration
	Timeout        time.Duration
}

func GetSECConfig() *SECConfig {
	secOnce.Do(func() {
		loadEnv()

		secConfig = &SECConfig{
			UserAgent:      getEnv("SEC_USER_AGENT", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"),
			SubmissionsURL: getEnv("SEC_SUBMISSIONS_URL", "https://data.sec.gov/submissions"),
			ArchivesURL:    getEnv("SEC_ARCHIVES_URL", "https://www.sec.gov/Archives/edgar/data"),
			RequestDelay:   getEnvDuration("SEC_REQUEST_DELAY", 500*time.Millisecond),
			Timeout:        getEnvDuration("SEC_REQUEST_TIMEOUT", 30*time.Second),
		}
	})
	return secConfig
}
