package person

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry-go/internal/memstore"
	"github.com/ovaphlow/pitchfork/service-registry-go/internal/person/entity"
)

func newHandlerMux(roles RoleAssigner) *http.ServeMux {
	store := memstore.New()
	reg := NewRegistry(store.Persons(), store.Contacts(), store, roles, nil, nil)
	h := NewHandler(reg, zap.NewNop().Sugar())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /summary", h.Summary)
	mux.HandleFunc("GET /persons", h.List)
	mux.HandleFunc("GET /persons/search", h.Search)
	mux.HandleFunc("POST /persons", h.Register)
	mux.HandleFunc("GET /persons/{id}", h.Get)
	mux.HandleFunc("PUT /persons/{id}/name", h.Rename)
	mux.HandleFunc("DELETE /persons/{id}", h.Delete)
	return mux
}

func serve(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

const anaJSON = `{"national_id":"111.444.777-35","name":"Ana","email":"ana@x.com","phone":"(11) 98765-4321"}`

func TestHandler_RegisterAndDetails(t *testing.T) {
	mux := newHandlerMux(FixedRoleAssigner(entity.RoleClient))

	w := serve(mux, http.MethodPost, "/persons", anaJSON)
	require.Equal(t, http.StatusCreated, w.Code)
	var created RegisterResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "11144477735", created.NationalID)
	assert.Equal(t, "111.444.777-35", created.Formatted)
	assert.Equal(t, "CLIENT", created.Role)

	w = serve(mux, http.MethodGet, "/persons/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var d entity.Details
	require.NoError(t, json.NewDecoder(w.Body).Decode(&d))
	require.NotNil(t, d.PrimaryPhone)
	assert.Equal(t, "(11) 98765-4321", d.PrimaryPhone.Value)

	w = serve(mux, http.MethodPost, "/persons", anaJSON)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandler_ListSearchSummary(t *testing.T) {
	mux := newHandlerMux(FixedRoleAssigner(entity.RoleClient))
	require.Equal(t, http.StatusCreated, serve(mux, http.MethodPost, "/persons", anaJSON).Code)

	w := serve(mux, http.MethodGet, "/persons?page=7", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page entity.Page
	require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
	assert.Equal(t, 1, page.Page)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].PrimaryEmail)
	assert.Equal(t, "ana@x.com", *page.Items[0].PrimaryEmail)

	w = serve(mux, http.MethodGet, "/persons/search?name=AN", "")
	require.Equal(t, http.StatusOK, w.Code)
	var found struct {
		Persons []entity.Overview `json:"persons"`
		Total   int64             `json:"total"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&found))
	assert.Len(t, found.Persons, 1)
	assert.Equal(t, int64(1), found.Total)

	w = serve(mux, http.MethodGet, "/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sum entity.Summary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&sum))
	assert.Equal(t, entity.Summary{Persons: 1, Emails: 1, Phones: 1}, sum)
}

func TestHandler_RenameAndDelete(t *testing.T) {
	mux := newHandlerMux(FixedRoleAssigner(entity.RoleClient))
	require.Equal(t, http.StatusCreated, serve(mux, http.MethodPost, "/persons", anaJSON).Code)

	assert.Equal(t, http.StatusNoContent, serve(mux, http.MethodPut, "/persons/1/name", `{"name":"Ana Maria"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodPut, "/persons/1/name", `{"name":" "}`).Code)
	assert.Equal(t, http.StatusNotFound, serve(mux, http.MethodPut, "/persons/5/name", `{"name":"X"}`).Code)

	assert.Equal(t, http.StatusNoContent, serve(mux, http.MethodDelete, "/persons/1", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(mux, http.MethodDelete, "/persons/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodDelete, "/persons/zero", "").Code)
}

func TestHandler_DeleteAdminForbidden(t *testing.T) {
	mux := newHandlerMux(FixedRoleAssigner(entity.RoleAdmin))
	require.Equal(t, http.StatusCreated, serve(mux, http.MethodPost, "/persons", anaJSON).Code)

	w := serve(mux, http.MethodDelete, "/persons/1", "")

	require.Equal(t, http.StatusForbidden, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "forbidden", body["error"])
}

func TestHandler_RegisterValidation(t *testing.T) {
	mux := newHandlerMux(FixedRoleAssigner(entity.RoleClient))

	w := serve(mux, http.MethodPost, "/persons", `{"national_id":"123","name":"Ana","email":"ana@x.com","phone":"11987654321"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "invalid_national_id", body["error"])

	assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodPost, "/persons", `not json`).Code)
}
