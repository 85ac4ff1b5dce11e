package salesforce

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ajitpratap0/sfbridge/pkg/clients"
	jsonpool "github.com/ajitpratap0/sfbridge/pkg/json"
	"github.com/ajitpratap0/sfbridge/pkg/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "00Dxx0000001gPL!AQ4AQFakeToken"

// fakeInstance is a minimal CRM REST endpoint. Handlers are keyed by path.
type fakeInstance struct {
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []*http.Request
	bodies   []string
}

func (f *fakeInstance) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, string(body))
	h, ok := f.handlers[r.URL.Path]
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+testToken {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`[{"message":"Session expired or invalid","errorCode":"INVALID_SESSION_ID"}]`))
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`[{"errorCode":"NOT_FOUND","message":"The requested resource does not exist"}]`))
		return
	}
	h(w, r)
}

func (f *fakeInstance) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newFakeInstance(t *testing.T, handlers map[string]http.HandlerFunc) (*fakeInstance, *Client, models.Credentials) {
	t.Helper()
	fake := &fakeInstance{handlers: handlers}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	httpClient := clients.NewHTTPClient(nil, zap.NewNop())
	t.Cleanup(func() { _ = httpClient.Close() })

	creds := models.Credentials{InstanceURL: server.URL, AccessToken: testToken}
	return fake, NewClient(httpClient, "v59.0", zap.NewNop()), creds
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, err := jsonpool.Marshal(v)
	require.NoError(t, err)
	_, _ = w.Write(data)
}

func background() context.Context {
	return context.Background()
}
