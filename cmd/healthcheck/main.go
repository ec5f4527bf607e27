// Package main is a minimal HTTP health check binary for use in distroless
// containers. It exits 0 when the /health endpoint returns HTTP 200, and 1
// otherwise. A degraded service still answers 200 and passes. Compile with
// CGO_ENABLED=0 for a fully static binary.
package main

import (
	"net/http"
	"os"
	"scoutgate/internal/version"
	"time"
)

const defaultURL = "http://localhost:8080/health"

func main() {
	url := defaultURL
	if v := os.Getenv("SCOUTGATE_HEALTHCHECK_URL"); v != "" {
		url = v
	}
	if len(os.Args) > 1 {
		url = os.Args[1]
	}

	os.Exit(check(&http.Client{Timeout: 5 * time.Second}, url))
}

func check(client *http.Client, url string) int {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 1
	}
	req.Header.Set("User-Agent", version.GetInfo().UserAgent()+" healthcheck")

	resp, err := client.Do(req)
	if err != nil {
		return 1
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}
