package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-rental/internal/agency"
	"github.com/ukydev/fleet-rental/internal/auth"
	"github.com/ukydev/fleet-rental/internal/source"
)

var authToken string

// seedReport mirrors the body returned by POST /fleet/lines.
type seedReport struct {
	agency.LoadReport
	PersistError string `json:"persist_error,omitempty"`
}

func authorizedPost(url string, contentType string, body *bytes.Buffer) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func login(apiURL, username, password string) (string, error) {
	data, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", err
	}
	resp, err := http.Post(apiURL+"/auth/login", "application/json", bytes.NewBuffer(data))
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	return out.Token, nil
}

func seed(apiURL string, src source.LineSource) (*seedReport, error) {
	lines, err := src.Lines()
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("no fleet lines to seed")
	}

	resp, err := authorizedPost(apiURL+"/fleet/lines", "text/plain", bytes.NewBufferString(requestBody(lines)))
	if err != nil {
		return nil, fmt.Errorf("post fleet lines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("seed failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var report seedReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode load report: %w", err)
	}
	return &report, nil
}

// requestBody puts every line back at its position in the file, so the
// server numbers failures by file line.
func requestBody(lines []source.Line) string {
	var sb strings.Builder
	next := 1
	for _, l := range lines {
		for ; next < l.No; next++ {
			sb.WriteString("\n")
		}
		sb.WriteString(l.Text)
		sb.WriteString("\n")
		next++
	}
	return sb.String()
}

// hashPassword prints the bcrypt hash to use as OPERATOR_PASSWORD_HASH.
func hashPassword(w io.Writer, password string) error {
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash" {
		if len(os.Args) != 3 {
			log.Fatal("Usage: seeder hash <password>")
		}
		if err := hashPassword(os.Stdout, os.Args[2]); err != nil {
			log.WithError(err).Fatal("Failed to hash password")
		}
		return
	}

	authToken = os.Getenv("SEED_AUTH_TOKEN")

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	fleetFile := os.Getenv("FLEET_FILE")
	if len(os.Args) > 1 {
		fleetFile = os.Args[1]
	}
	if fleetFile == "" {
		log.Fatal("Usage: seeder <fleet-file> (or set FLEET_FILE) | seeder hash <password>")
	}

	if authToken == "" && os.Getenv("SEED_USERNAME") != "" {
		token, err := login(apiURL, os.Getenv("SEED_USERNAME"), os.Getenv("SEED_PASSWORD"))
		if err != nil {
			log.WithError(err).Fatal("Failed to log in")
		}
		authToken = token
	}

	log.WithFields(log.Fields{
		"api_url": apiURL,
		"file":    fleetFile,
	}).Info("Seeding fleet")

	report, err := seed(apiURL, source.FromFile(fleetFile))
	if err != nil {
		log.WithError(err).Fatal("Failed to seed fleet")
	}

	for _, f := range report.Failures {
		log.WithFields(log.Fields{"line": f.Line, "text": f.Text}).Warn(f.Reason)
	}
	if report.PersistError != "" {
		log.WithField("error", report.PersistError).Warn("Server could not persist the new vehicles")
	}
	log.WithFields(log.Fields{
		"read":       report.Read,
		"added":      len(report.Added),
		"duplicates": report.Duplicates,
		"failed":     len(report.Failures),
	}).Info("Fleet seeded")
}
