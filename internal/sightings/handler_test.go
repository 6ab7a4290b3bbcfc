package sightings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findthem/backend/internal/middleware"
)

func TestHandlerPublicCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newMemStore()
	caseID, _ := seededCase(store)
	h := NewHandler(NewService(store, nil, nil), nil)
	r := gin.New()
	r.Use(middleware.Session(nil, "auth-token"))
	r.POST("/sightings", h.Create)
	r.GET("/cases/:id/sightings", h.ListByCase)

	body, _ := json.Marshal(validInput(caseID))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sightings", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"pending"`)

	in := validInput(caseID)
	in.ConfidenceLevel = json.RawMessage(`6`)
	body, _ = json.Marshal(in)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/sightings", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "confidence_level")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cases/"+caseID.String()+"/sightings", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Central Station")
	assert.NotContains(t, w.Body.String(), "reporter_")
	assert.NotContains(t, w.Body.String(), "sam@example.org")
	assert.NotContains(t, w.Body.String(), "+1 555 0100")
}
