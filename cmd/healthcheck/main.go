// Package main is a liveness probe for the tracking server, suitable as a
// container HEALTHCHECK. It GETs the health endpoint and exits 0 on a 2xx
// response, 1 otherwise.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	var (
		url     string
		timeout time.Duration
	)
	flag.StringVar(&url, "url", "http://localhost:5000/healthz", "health endpoint to probe")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	flag.Parse()

	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		os.Exit(0)
	}
	fmt.Fprintf(os.Stderr, "healthcheck failed: status %d\n", resp.StatusCode)
	os.Exit(1)
}
