// Command purge soft-deletes chat conversations through the admin API.
//
// Usage: go run ./scripts/purge [-reason text] <sessionId>...
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	reason := flag.String("reason", "purged by admin script", "delete reason recorded on each conversation")
	flag.Parse()
	ids := flag.Args()
	if len(ids) == 0 {
		fmt.Println("Usage: go run ./scripts/purge [-reason text] <sessionId>...")
		os.Exit(1)
	}

	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		fmt.Println("Error: ADMIN_JWT_SECRET environment variable not set")
		os.Exit(1)
	}
	apiURL := strings.TrimRight(os.Getenv("API_URL"), "/")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	token, err := adminToken(secret, time.Now())
	if err != nil {
		fmt.Printf("Error signing token: %v\n", err)
		os.Exit(1)
	}

	payload, _ := json.Marshal(map[string]any{"ids": ids, "reason": *reason})
	url := apiURL + "/admin/conversations/bulk-delete"
	fmt.Printf("Purging %d conversation(s) via %s\n", len(ids), url)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Error: HTTP %d\n", resp.StatusCode)
		fmt.Printf("Response: %s\n", string(body))
		os.Exit(1)
	}

	var result struct {
		Data struct {
			Results []struct {
				ID string `json:"id"`
			} `json:"results"`
			Errors []struct {
				ID    string `json:"id"`
				Error string `json:"error"`
			} `json:"errors"`
			SuccessCount int `json:"successCount"`
			ErrorCount   int `json:"errorCount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Printf("Response: %s\n", string(body))
		return
	}
	for _, r := range result.Data.Results {
		fmt.Printf("  deleted %s\n", r.ID)
	}
	for _, e := range result.Data.Errors {
		fmt.Printf("  failed  %s: %s\n", e.ID, e.Error)
	}
	fmt.Printf("Done: %d deleted, %d failed\n", result.Data.SuccessCount, result.Data.ErrorCount)
}

func adminToken(secret string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
