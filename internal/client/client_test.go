package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, Timeout: 2 * time.Second, Token: "tok"}, nil)
}

func TestFetchRoleModules(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/roles/modules", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, 200, map[string]interface{}{
			"success": true,
			"data": []map[string]interface{}{
				{"role": map[string]string{"id": "r1", "name": "Teacher"}, "modules": map[string]bool{"fees": false, "exams": true}},
			},
			"available_modules": []string{"fees", "exams"},
		})
	})

	snap, err := c.FetchRoleModules(context.Background())

	require.NoError(t, err)
	require.Len(t, snap.Roles, 1)
	assert.Equal(t, "Teacher", snap.Roles[0].Role.Name)
	assert.True(t, snap.Roles[0].Modules["exams"])
	assert.Equal(t, []string{"fees", "exams"}, snap.AvailableModules)
}

func TestSaveRoleModulesSendsFullMap(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/roles/r1/modules", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		var body struct {
			Modules map[string]bool `json:"modules"`
		}
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Len(t, body.Modules, 3)
		writeJSON(w, 200, map[string]interface{}{
			"success": true,
			"message": "saved",
			"data":    map[string]interface{}{"role": map[string]string{"id": "r1"}, "modules": body.Modules},
		})
	})

	saved, err := c.SaveRoleModules(context.Background(), "r1", map[string]bool{"fees": true, "exams": false, "cbt": true})

	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"fees": true, "exams": false, "cbt": true}, saved)
}

func TestSaveRoleModulesWithoutEcho(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"success": true, "message": "ok"})
	})

	saved, err := c.SaveRoleModules(context.Background(), "r1", map[string]bool{"fees": true})

	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{status: 404, want: KindNotFound},
		{status: 403, want: KindForbidden},
		{status: 401, want: KindForbidden},
		{status: 400, want: KindInvalidPayload},
		{status: 422, want: KindInvalidPayload},
		{status: 500, want: KindServer},
		{status: 503, want: KindServer},
		{status: 409, want: KindUnknown},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]interface{}{"success": false, "error": "boom"})
			})

			err := c.UpdatePermissions(context.Background(), "r1", []Permission{{Module: "fees", Add: "all", View: "all", Update: "all", Delete: "none"}})

			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.Equal(t, "boom", MessageOf(err))
		})
	}
}

func TestUnsuccessfulEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"success": false, "message": "nope"})
	})

	err := c.UpdatePermissions(context.Background(), "r1", nil)

	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Equal(t, "nope", MessageOf(err))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()
	c := New(Options{BaseURL: url, Timeout: time.Second}, nil)

	_, err := c.FetchPermissions(context.Background())

	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	c := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)

	_, err := c.FetchRoleModules(context.Background())

	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestFetchPermissions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"roles": []map[string]string{{"id": "r1", "name": "Teacher"}},
				"permissions": map[string]interface{}{
					"r1": []map[string]string{{"module": "exams", "add": "owned", "view": "all", "update": "owned", "delete": "none"}},
				},
			},
		})
	})

	snap, err := c.FetchPermissions(context.Background())

	require.NoError(t, err)
	require.Len(t, snap.Permissions["r1"], 1)
	assert.Equal(t, "owned", snap.Permissions["r1"][0].Add)
}
