package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRepoSendsExpectedRequest(t *testing.T) {
	var got CreateRepoRequest
	var auth, method, path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient("s3cret")
	c.BaseURL = srv.URL

	require.NoError(t, c.CreateRepo(context.Background(), "notes", true))
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/user/repos", path)
	assert.Equal(t, "token s3cret", auth)
	assert.Equal(t, CreateRepoRequest{Name: "notes", Private: true, AutoInit: true}, got)
}

func TestCreateRepoReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"name already exists on this account"}`))
	}))
	defer srv.Close()

	c := NewClient("s3cret")
	c.BaseURL = srv.URL

	err := c.CreateRepo(context.Background(), "notes", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "already exists")
}

func TestCreateRepoRequiresToken(t *testing.T) {
	c := NewClient("")
	err := c.CreateRepo(context.Background(), "notes", false)
	require.Error(t, err)
}
