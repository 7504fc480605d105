package sec

import (
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doongeon/good-filings/config"
	"github.com/doongeon/good-filings/pkg/logger"
)

const submissionsFixture = `{
  "filings": {
    "recent": {
      "accessionNumber": ["0001018724-24-000123", "0001018724-24-000050", "0001018724-23-000099"],
      "filingDate": ["2024-08-02", "2024-02-02", "2023-10-27"],
      "reportDate": ["2024-06-30", "2023-12-31", "2023-09-30"],
      "form": ["10-Q", "10-K", "10-Q"],
      "primaryDocument": ["amzn-20240630.htm", "amzn-20231231.htm", "amzn-20230930.htm"]
    }
  }
}`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.SECConfig{
		UserAgent:      "good-filings test suite",
		SubmissionsURL: srv.URL + "/submissions",
		ArchivesURL:    srv.URL + "/Archives/edgar/data",
		RequestDelay:   time.Millisecond,
		Timeout:        5 * time.Second,
	}
	return NewClient(cfg, logger.NewTestLogger()), srv
}

func edgarHandler(t *testing.T, document string) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/submissions/CIK0001018724.json", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		fmt.Fprint(w, submissionsFixture)
	})
	mux.HandleFunc("/Archives/edgar/data/1018724/000101872424000123/amzn-20240630.htm", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, document)
	})
	return mux
}

func TestDownload(t *testing.T) {
	client, _ := newTestClient(t, edgarHandler(t, "<html>10-Q body</html>"))

	outputDir := filepath.Join(t.TempDir(), "html", "amzn_2024_10_q")
	filing, err := client.Download(context.Background(), FilingRequest{
		CIK:        "0001018724",
		Year:       2024,
		FilingType: "10-Q",
		OutputDir:  outputDir,
	})
	require.NoError(t, err)

	assert.Equal(t, 1018724, filing.CIK)
	assert.Equal(t, "0001018724-24-000123", filing.AccessionNumber)
	assert.Equal(t, "10-Q", filing.FilingType)
	assert.Equal(t, "amzn-20240630.htm", filing.PrimaryDocument)

	body, err := os.ReadFile(filing.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "<html>10-Q body</html>", string(body))
}

// data.sec.gov serves gzip whenever the client offers it. The transport must
// be the one negotiating the encoding so the body is decompressed before the
// decoder and the document writer see it.
func TestDownload_GzipEncodedResponses(t *testing.T) {
	gzipBody := func(w http.ResponseWriter, body string) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		fmt.Fprint(gz, body)
		gz.Close()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/submissions/CIK0001018724.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "gzip")
		gzipBody(w, submissionsFixture)
	})
	mux.HandleFunc("/Archives/edgar/data/1018724/000101872424000123/amzn-20240630.htm", func(w http.ResponseWriter, r *http.Request) {
		gzipBody(w, "<html>10-Q body</html>")
	})

	client, _ := newTestClient(t, mux)

	filing, err := client.Download(context.Background(), FilingRequest{
		CIK:        "1018724",
		Year:       2024,
		FilingType: "10-Q",
		OutputDir:  filepath.Join(t.TempDir(), "html"),
	})
	require.NoError(t, err)

	body, err := os.ReadFile(filing.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "<html>10-Q body</html>", string(body))
}

func TestDownload_NoMatchingFiling(t *testing.T) {
	client, _ := newTestClient(t, edgarHandler(t, ""))

	_, err := client.Download(context.Background(), FilingRequest{
		CIK:        "1018724",
		Year:       2022,
		FilingType: "10-Q",
		OutputDir:  t.TempDir(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no filing found")
}

func TestDownload_Validation(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	_, err := client.Download(context.Background(), FilingRequest{
		CIK: "1018724", Year: 2019, FilingType: "10-Q", OutputDir: "html",
	})
	assert.ErrorContains(t, err, "year must be between")

	_, err = client.Download(context.Background(), FilingRequest{
		CIK: "1018724", Year: 2024, FilingType: "S-1", OutputDir: "html",
	})
	assert.ErrorContains(t, err, "unsupported filing type")

	_, err = client.Download(context.Background(), FilingRequest{
		CIK: "not-a-cik", Year: 2024, FilingType: "10-Q", OutputDir: "html",
	})
	assert.ErrorContains(t, err, "CIK must be numeric")
}

func TestSelectFiling_PrefersMostRecent(t *testing.T) {
	subs := &submissions{}
	recent := &subs.Filings.Recent
	recent.AccessionNumber = []string{"acc-1", "acc-2"}
	recent.Form = []string{"8-K", "8-K"}
	recent.FilingDate = []string{"2024-03-01", "2024-09-01"}
	recent.ReportDate = []string{"2024-03-01", "2024-09-01"}
	recent.PrimaryDocument = []string{"a.htm", "b.htm"}

	filing, err := selectFiling(subs, 42, "8-K", 2024)
	require.NoError(t, err)
	assert.Equal(t, "acc-2", filing.AccessionNumber)
}

func TestSelectFiling_FallsBackToFilingDate(t *testing.T) {
	subs := &submissions{}
	recent := &subs.Filings.Recent
	recent.AccessionNumber = []string{"acc-1"}
	recent.Form = []string{"8-K"}
	recent.FilingDate = []string{"2024-05-05"}
	recent.ReportDate = []string{""}
	recent.PrimaryDocument = []string{"a.htm"}

	filing, err := selectFiling(subs, 42, "8-K", 2024)
	require.NoError(t, err)
	assert.Equal(t, 2024, filing.FilingDate.Year())
}

func TestParseCIK(t *testing.T) {
	cik, err := parseCIK("0001018724")
	require.NoError(t, err)
	assert.Equal(t, 1018724, cik)

	cik, err = parseCIK("320193")
	require.NoError(t, err)
	assert.Equal(t, 320193, cik)

	_, err = parseCIK("apple")
	assert.Error(t, err)
}

func TestValidateOutputDir(t *testing.T) {
	assert.NoError(t, ValidateOutputDir("html"))
	assert.NoError(t, ValidateOutputDir("html/amzn_2024_8_k"))
	assert.NoError(t, ValidateOutputDir(`html\amzn_2024_8_k`))
	assert.Error(t, ValidateOutputDir("pdf/out"))
	assert.Error(t, ValidateOutputDir("/tmp/html"))
}
