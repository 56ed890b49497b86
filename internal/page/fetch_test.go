package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchDocument(t *testing.T) {
	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.UserAgent()
		_, _ = w.Write([]byte(`<ul><li class="job-card-container">One</li><li class="job-card-container">Two</li></ul>`))
	}))
	defer srv.Close()

	doc, err := FetchDocument(context.Background(), srv.URL+"/jobs", time.Second, DefaultMarkers())
	require.NoError(t, err)

	listings, err := doc.FindByRole(context.Background(), nil, RoleListing)
	require.NoError(t, err)
	assert.Len(t, listings, 2)
	assert.Equal(t, DefaultUserAgent, userAgent)

	loc, err := doc.Location(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/jobs", loc)
}

func TestFetchDocument_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		url     string
		wantMsg string
	}{
		{name: "invalid URL", url: "not a url", wantMsg: "invalid URL"},
		{name: "bad status", url: srv.URL, wantMsg: "HTTP status 403"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FetchDocument(context.Background(), tt.url, 0, DefaultMarkers())
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "fetch", perr.Op)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
