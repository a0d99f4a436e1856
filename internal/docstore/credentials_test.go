package docstore_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/print-admin/internal/docstore"
)

func writeServiceAccount(t *testing.T, tokenURI string) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	raw, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "proj-1",
		"private_key_id": "key-1",
		"private_key":    string(keyPEM),
		"client_email":   "admin@proj-1.iam.gserviceaccount.com",
		"client_id":      "1234567890",
		"token_uri":      tokenURI,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "service-account.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestLoadServiceAccount_Errors(t *testing.T) {
	_, err := docstore.LoadServiceAccount("")
	assert.ErrorIs(t, err, docstore.ErrConfiguration)

	_, err = docstore.LoadServiceAccount(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, docstore.ErrConfiguration)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	_, err = docstore.LoadServiceAccount(bad)
	assert.ErrorIs(t, err, docstore.ErrConfiguration)

	noProject := filepath.Join(t.TempDir(), "no-project.json")
	require.NoError(t, os.WriteFile(noProject, []byte(`{"client_email": "a@b"}`), 0o600))
	_, err = docstore.LoadServiceAccount(noProject)
	assert.ErrorIs(t, err, docstore.ErrConfiguration)
}

func TestTokenProvider_CachesToken(t *testing.T) {
	var hits atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token": "tok-1", "token_type": "Bearer", "expires_in": 3600}`)
	}))
	defer tokenSrv.Close()

	sa, err := docstore.LoadServiceAccount(writeServiceAccount(t, tokenSrv.URL))
	require.NoError(t, err)
	assert.Equal(t, "proj-1", sa.ProjectID)

	provider, err := docstore.NewTokenProvider(context.Background(), sa)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		tok, err := provider.Token()
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok.AccessToken)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestTokenProvider_RejectedExchangeIsConfiguration(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": "invalid_grant"}`)
	}))
	defer tokenSrv.Close()

	sa, err := docstore.LoadServiceAccount(writeServiceAccount(t, tokenSrv.URL))
	require.NoError(t, err)
	provider, err := docstore.NewTokenProvider(context.Background(), sa)
	require.NoError(t, err)

	_, err = provider.Token()
	assert.ErrorIs(t, err, docstore.ErrConfiguration)
}

func TestClient_WithTokenProvider(t *testing.T) {
	var tokenHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token": "tok-live", "token_type": "Bearer", "expires_in": 3600}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-live", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sa, err := docstore.LoadServiceAccount(writeServiceAccount(t, srv.URL+"/token"))
	require.NoError(t, err)
	provider, err := docstore.NewTokenProvider(context.Background(), sa)
	require.NoError(t, err)

	client, err := docstore.NewClient(docstore.Options{
		BaseURL:   srv.URL,
		ProjectID: sa.ProjectID,
		Timeout:   2 * time.Second,
		Tokens:    provider,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := client.ListCollection(context.Background(), "orders")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), tokenHits.Load())
}
