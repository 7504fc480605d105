package sec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/doongeon/good-filings/config"
	"github.com/doongeon/good-filings/pkg/logger"
)

// FilingTypes accepted by the EDGAR client.
var FilingTypes = map[string]bool{
	"8-K":     true,
	"10-Q":    true,
	"10-K":    true,
	"DEF 14A": true,
}

const (
	minYear = 2021
	maxYear = 2025
)

// FilingRequest identifies one filing to download.
type FilingRequest struct {
	CIK        string `json:"cik"`
	Year       int    `json:"year"`
	FilingType string `json:"filing_type"`
	OutputDir  string `json:"output_dir_path"`
}

// Filing is the downloaded primary document.
type Filing struct {
	CIK             int       `json:"cik"`
	AccessionNumber string    `json:"accessionNumber"`
	FilingType      string    `json:"filingType"`
	FilingDate      time.Time `json:"filingDate"`
	PrimaryDocument string    `json:"primaryDocument"`
	LocalPath       string    `json:"localPath"`
}

// submissions mirrors the columnar layout of the EDGAR submissions JSON: the
// i-th element of every column describes the same filing.
type submissions struct {
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			ReportDate      []string `json:"reportDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// Client downloads SEC filings from EDGAR with the polite delays the SEC
// requires between requests.
type Client struct {
	config     *config.SECConfig
	httpClient *http.Client
	logger     logger.Logger
}

func NewClient(cfg *config.SECConfig, log logger.Logger) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log,
	}
}

// Download fetches the most recent filing matching the request and saves its
// primary document under the requested output dir, returning the local path.
func (c *Client) Download(ctx context.Context, req FilingRequest) (*Filing, error) {
	if req.Year < minYear || req.Year > maxYear {
		return nil, fmt.Errorf("year must be between %d and %d", minYear, maxYear)
	}
	if !FilingTypes[req.FilingType] {
		return nil, fmt.Errorf("unsupported filing type: %s", req.FilingType)
	}

	cik, err := parseCIK(req.CIK)
	if err != nil {
		return nil, err
	}

	subs, err := c.fetchSubmissions(ctx, cik)
	if err != nil {
		return nil, err
	}

	filing, err := selectFiling(subs, cik, req.FilingType, req.Year)
	if err != nil {
		return nil, err
	}

	// Rate limiting between the submissions fetch and the document download.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.config.RequestDelay):
	}

	localPath, err := c.downloadDocument(ctx, filing, req.OutputDir)
	if err != nil {
		return nil, err
	}
	filing.LocalPath = localPath

	c.logger.Info("Filing downloaded",
		logger.Int("cik", filing.CIK),
		logger.String("filingType", filing.FilingType),
		logger.String("path", localPath),
	)

	return filing, nil
}

func (c *Client) fetchSubmissions(ctx context.Context, cik int) (*submissions, error) {
	url := fmt.Sprintf("%s/CIK%010d.json", c.config.SubmissionsURL, cik)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create submissions request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data from SEC server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SEC server returned status %d for CIK %d", resp.StatusCode, cik)
	}

	var subs submissions
	if err := json.NewDecoder(resp.Body).Decode(&subs); err != nil {
		return nil, fmt.Errorf("failed to decode submissions: %w", err)
	}

	return &subs, nil
}

func (c *Client) downloadDocument(ctx context.Context, filing *Filing, outputDir string) (string, error) {
	accession := strings.ReplaceAll(filing.AccessionNumber, "-", "")
	url := fmt.Sprintf("%s/%d/%s/%s", c.config.ArchivesURL, filing.CIK, accession, filing.PrimaryDocument)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("SEC server returned status %d for %s", resp.StatusCode, filing.PrimaryDocument)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	localPath := filepath.Join(outputDir, filing.PrimaryDocument)
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}

	return localPath, nil
}

// setHeaders applies the identification headers the SEC requires. Content
// negotiation is left to the transport so gzip responses are decompressed
// before they reach the decoder.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.config.UserAgent)
}

// selectFiling picks the most recent filing of the given form and year.
// Report date is preferred over filing date, matching how EDGAR assigns
// filings to fiscal periods.
func selectFiling(subs *submissions, cik int, filingType string, year int) (*Filing, error) {
	recent := subs.Filings.Recent

	var best *Filing
	for i := range recent.Form {
		if recent.Form[i] != filingType {
			continue
		}

		dateStr := ""
		if i < len(recent.ReportDate) {
			dateStr = recent.ReportDate[i]
		}
		if dateStr == "" && i < len(recent.FilingDate) {
			dateStr = recent.FilingDate[i]
		}

		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil || date.Year() != year {
			continue
		}

		if best == nil || date.After(best.FilingDate) {
			best = &Filing{
				CIK:             cik,
				AccessionNumber: recent.AccessionNumber[i],
				FilingType:      filingType,
				FilingDate:      date,
				PrimaryDocument: recent.PrimaryDocument[i],
			}
		}
	}

	if best == nil {
		return nil, fmt.Errorf("no filing found for CIK=%d, year=%d, filing_type=%s", cik, year, filingType)
	}

	return best, nil
}

// parseCIK accepts a CIK with or without leading zeros.
func parseCIK(raw string) (int, error) {
	trimmed := strings.TrimLeft(strings.TrimSpace(raw), "0")
	if trimmed == "" {
		trimmed = "0"
	}
	cik, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("CIK must be numeric: %s", raw)
	}
	return cik, nil
}

// ValidateOutputDir keeps downloads under the html folder. Callers check the
// raw request path before resolving it against the project root.
func ValidateOutputDir(dir string) error {
	normalized := strings.ReplaceAll(dir, "\\", "/")
	if normalized == "html" || strings.HasPrefix(normalized, "html/") {
		return nil
	}
	return fmt.Errorf(`output_dir_path must be "html" or "html/..." format`)
}
