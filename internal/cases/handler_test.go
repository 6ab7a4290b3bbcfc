package cases

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findthem/backend/internal/middleware"
	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/response"
)

type tokens map[string]*models.Principal

func (t tokens) ResolveCurrentPrincipal(_ context.Context, token string) *models.Principal {
	return t[token]
}

type fixture struct {
	router *gin.Engine
	store  *memStore
	feed   *memFeed
	member *models.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := newMemStore()
	feed := &memFeed{}
	svc := NewService(store, nil, WithPhotoStore(&memPhotos{}), WithEmbeddingQueue(&memQueue{}), WithSightingFeed(feed))
	h := NewHandler(svc, feed, nil)
	member := orgPrincipal(models.RoleNGOMember)

	r := gin.New()
	r.Use(middleware.Session(tokens{"member": member, "public": {UserID: uuid.New(), Role: models.RolePublic}}, "auth-token"))
	r.GET("/cases", h.List)
	r.GET("/cases/:id", h.GetByID)
	managers := r.Group("", middleware.RequireRole(models.CaseManagerRoles...))
	managers.POST("/cases", h.Create)
	managers.PATCH("/cases/:id/status", h.UpdateStatus)
	managers.POST("/cases/:id/photos", h.UploadPhoto)
	managers.GET("/dashboard", h.Dashboard)
	return &fixture{router: r, store: store, feed: feed, member: member}
}

func (f *fixture) do(method, path, token string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "auth-token", Value: token})
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeCase(t *testing.T, w *httptest.ResponseRecorder) models.Case {
	t.Helper()
	var body struct {
		response.Body
		Data models.Case `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data
}

func TestHandlerCreateAndGet(t *testing.T) {
	f := newFixture(t)
	payload, _ := json.Marshal(janeDoe())

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/cases", "", payload, "application/json").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/cases", "public", payload, "application/json").Code)

	w := f.do(http.MethodPost, "/cases", "member", payload, "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeCase(t, w)
	assert.Equal(t, models.CaseActive, created.Status)
	assert.Equal(t, models.PriorityMedium, created.Priority)
	assert.NotEmpty(t, created.CaseNumber)

	f.feed.sightings = []*models.Sighting{{
		ID:            uuid.New(),
		CaseID:        created.ID,
		ReporterName:  "Sam",
		ReporterEmail: "sam@example.org",
		ReporterPhone: "+1 555 0100",
		Status:        models.SightingPending,
	}}
	w = f.do(http.MethodGet, "/cases/"+created.ID.String(), "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"child_name":"Jane Doe"`)
	assert.Contains(t, w.Body.String(), `"sightings":[{`)
	assert.NotContains(t, w.Body.String(), "reporter_")
	assert.NotContains(t, w.Body.String(), "sam@example.org")
	assert.NotContains(t, w.Body.String(), "+1 555 0100")

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/cases/nope", "", nil, "").Code)
}

func TestHandlerCreateMissingField(t *testing.T) {
	f := newFixture(t)
	in := janeDoe()
	in.LastSeenLocation = ""
	payload, _ := json.Marshal(in)
	w := f.do(http.MethodPost, "/cases", "member", payload, "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "last_seen_location")
}

func TestHandlerListQuery(t *testing.T) {
	f := newFixture(t)
	payload, _ := json.Marshal(janeDoe())
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/cases", "member", payload, "application/json").Code)
	}

	w := f.do(http.MethodGet, "/cases?status=active&limit=2", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []models.Case `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 2)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/cases?status=lost", "", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/cases?organization_id=x", "", nil, "").Code)

	w = f.do(http.MethodGet, "/cases?organization_id="+uuid.NewString(), "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}

func multipartPhoto(t *testing.T, contentType string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="photo"; filename="photo.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestHandlerUploadPhotoAndStatus(t *testing.T) {
	f := newFixture(t)
	payload, _ := json.Marshal(janeDoe())
	created := decodeCase(t, f.do(http.MethodPost, "/cases", "member", payload, "application/json"))
	path := "/cases/" + created.ID.String()

	body, ct := multipartPhoto(t, "image/png", []byte("\x89PNG\r\n\x1a\n...."))
	w := f.do(http.MethodPost, path+"/photos", "member", body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, decodeCase(t, w).PhotoURLs, 1)

	body, ct = multipartPhoto(t, "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, path+"/photos", "member", body, ct).Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, path+"/photos", "member", nil, "").Code)

	w = f.do(http.MethodPatch, path+"/status", "member", []byte(`{"status":"found"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CaseFound, decodeCase(t, w).Status)

	w = f.do(http.MethodGet, "/dashboard", "member", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"found":1`)
}
