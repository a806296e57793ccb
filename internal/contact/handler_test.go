package contact

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry-go/internal/contact/entity"
)

func newTestMux(t *testing.T) (*http.ServeMux, int64) {
	t.Helper()
	svc, _, personID := newTestService(t)
	h := NewHandler(svc, entity.KindEmail, zap.NewNop().Sugar())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /persons/{id}/emails", h.Add)
	mux.HandleFunc("GET /persons/{id}/emails", h.List)
	mux.HandleFunc("PUT /persons/{id}/emails/{contactID}/primary", h.SetPrimary)
	mux.HandleFunc("DELETE /emails/{contactID}", h.Delete)
	return mux, personID
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHandler_AddListSetPrimaryDelete(t *testing.T) {
	mux, _ := newTestMux(t)

	w := do(mux, http.MethodPost, "/persons/1/emails", `{"value":"ana@x.com","primary":true}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var first entity.Contact
	require.NoError(t, json.NewDecoder(w.Body).Decode(&first))
	assert.True(t, first.IsPrimary)

	w = do(mux, http.MethodPost, "/persons/1/emails", `{"value":"ana@y.com"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var second entity.Contact
	require.NoError(t, json.NewDecoder(w.Body).Decode(&second))

	w = do(mux, http.MethodPut, "/persons/1/emails/"+itoa(second.ID)+"/primary", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(mux, http.MethodGet, "/persons/1/emails", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []entity.Contact
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.False(t, list[0].IsPrimary)
	assert.True(t, list[1].IsPrimary)

	w = do(mux, http.MethodDelete, "/emails/"+itoa(first.ID), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(mux, http.MethodDelete, "/emails/"+itoa(first.ID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Errors(t *testing.T) {
	mux, _ := newTestMux(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"bad json", http.MethodPost, "/persons/1/emails", `{`, http.StatusBadRequest, "invalid_argument"},
		{"bad email", http.MethodPost, "/persons/1/emails", `{"value":"nope"}`, http.StatusBadRequest, "invalid_email"},
		{"bad id", http.MethodPost, "/persons/abc/emails", `{"value":"a@b.com"}`, http.StatusBadRequest, "invalid_argument"},
		{"unknown person", http.MethodPost, "/persons/9/emails", `{"value":"a@b.com"}`, http.StatusNotFound, "not_found"},
		{"unknown person primary", http.MethodPut, "/persons/9/emails/1/primary", "", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(mux, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
