package piston

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req executeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "python", req.Language)
		assert.Equal(t, "*", req.Version)
		require.Len(t, req.Files, 1)
		assert.Equal(t, "main.py", req.Files[0].Name)
		fmt.Fprint(w, `{"run":{"stdout":"hello\n","stderr":"","code":0}}`)
	}))
	defer server.Close()

	c := NewClient([]string{server.URL}, 5*time.Second)
	res, err := c.Execute(context.Background(), "python", []File{{Name: "main.py", Content: "print('hello')"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecute_endpointFallback(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"run":{"stdout":"ok","code":0}}`)
	}))
	defer good.Close()

	c := NewClient([]string{bad.URL, good.URL}, 5*time.Second)
	res, err := c.Execute(context.Background(), "go", []File{{Name: "main.go", Content: "package main"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Stdout)
}

func TestExecute_allEndpointsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient([]string{server.URL, server.URL}, time.Second)
	_, err := c.Execute(context.Background(), "python", []File{{Name: "a.py", Content: "x"}}, "")
	require.ErrorIs(t, err, ErrExecUnavailable)
}

func TestExecute_flatResponseShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"output":"flat out","error":"flat err","code":1}`)
	}))
	defer server.Close()

	c := NewClient([]string{server.URL}, time.Second)
	res, err := c.Execute(context.Background(), "python", []File{{Name: "a.py", Content: "x"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "flat out", res.Stdout)
	assert.Equal(t, "flat err", res.Stderr)
	assert.Equal(t, 1, res.ExitCode)
}

func TestExecute_validation(t *testing.T) {
	c := NewClient(nil, time.Second)
	_, err := c.Execute(context.Background(), "", []File{{Name: "a", Content: "b"}}, "")
	require.Error(t, err)
	_, err = c.Execute(context.Background(), "python", nil, "")
	require.Error(t, err)
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"main.py", "python"},
		{"APP.JS", "javascript"},
		{"lib/util.rs", "rust"},
		{"script.sh", "bash"},
		{"README.md", "text"},
		{"Makefile", ""},
		{"archive.unknownext", ""},
		{"trailingdot.", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.filename), tt.filename)
	}
}
