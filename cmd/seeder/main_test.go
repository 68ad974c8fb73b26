package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-rental/internal/auth"
	"github.com/ukydev/fleet-rental/internal/models"
	"github.com/ukydev/fleet-rental/internal/source"
)

func TestSeed_Success(t *testing.T) {
	authToken = "seed-token"
	defer func() { authToken = "" }()

	var gotBody, gotAuth, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/fleet/lines", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"read":2,"added":[{"kind":"car","plate":"AAA111","brand":"SEAT","model":"IBIZA","daily_price":35.5,"seats":5}],"duplicates":0,"failures":[{"line":2,"text":"C,BAD","reason":"expected 6 fields"}]}`))
	}))
	defer server.Close()

	report, err := seed(server.URL+"/api", source.Static{"C,AAA111,Seat,Ibiza,35.5,5", "C,BAD"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer seed-token", gotAuth)
	assert.Equal(t, "text/plain", gotType)
	assert.Equal(t, "C,AAA111,Seat,Ibiza,35.5,5\nC,BAD\n", gotBody)
	assert.Equal(t, 2, report.Read)
	require.Len(t, report.Added, 1)
	assert.Equal(t, "AAA111", report.Added[0].Plate)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 2, report.Failures[0].Line)
}

func TestSeed_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
	}))
	defer server.Close()

	report, err := seed(server.URL, source.Static{"C,AAA111,Seat,Ibiza,35.5,5"})
	assert.Nil(t, report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "Insufficient permissions")
}

func TestSeed_NoLines(t *testing.T) {
	_, err := seed("http://unused", source.Static{"", "# comment"})
	assert.Error(t, err)
}

func TestRequestBody_KeepsFileLines(t *testing.T) {
	lines, err := source.FromReader(strings.NewReader("# header\nC,AAA111,Seat,Ibiza,35.5,5\n\nC,BAD\n")).Lines()
	require.NoError(t, err)

	body := requestBody(lines)
	assert.Equal(t, "\nC,AAA111,Seat,Ibiza,35.5,5\n\nC,BAD\n", body)

	renumbered, err := source.FromReader(strings.NewReader(body)).Lines()
	require.NoError(t, err)
	assert.Equal(t, lines, renumbered)
}

func TestHashPassword(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, hashPassword(&out, "counter-pass"))

	hash := strings.TrimSpace(out.String())
	service, err := auth.NewService("seeder-secret", time.Hour,
		models.Operator{Username: "desk", PasswordHash: hash, Role: models.RoleOperator})
	require.NoError(t, err)
	_, err = service.Login("desk", "counter-pass")
	assert.NoError(t, err)

	assert.Error(t, hashPassword(&out, ""))
}

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["password"] != "counter-pass" {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"token":"abc.def.ghi"}`))
	}))
	defer server.Close()

	token, err := login(server.URL, "desk", "counter-pass")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	_, err = login(server.URL, "desk", "wrong")
	assert.Error(t, err)
}
