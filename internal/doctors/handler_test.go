package doctors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubDirectory struct {
	got  []string
	docs []Doctor
	err  error
}

func (s *stubDirectory) MatchForSpecializations(_ context.Context, specs []string) ([]Doctor, error) {
	s.got = specs
	return s.docs, s.err
}

type stubFinder struct {
	location, spec string
	limit          int
	docs           []Doctor
	suggestions    []string
}

func (s *stubFinder) Nearby(_ context.Context, location, spec string, limit int) []Doctor {
	s.location, s.spec, s.limit = location, spec, limit
	return s.docs
}

func (s *stubFinder) SuggestLocations(_ context.Context, _ string, limit int) []string {
	s.limit = limit
	return s.suggestions
}

func serve(t *testing.T, dir Directory, finder Finder, target string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(dir, finder, zap.NewNop()))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandler_List(t *testing.T) {
	dir := &stubDirectory{docs: []Doctor{{Name: "Dr. Mehta", Source: SourceDirectory}}}
	rec := serve(t, dir, &stubFinder{}, "/doctors?specialization=Cardiologist")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Cardiologist"}, dir.got)
	var body listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Doctors, 1)
	assert.Equal(t, "Dr. Mehta", body.Doctors[0].Name)
}

func TestHandler_ListErrors(t *testing.T) {
	rec := serve(t, &stubDirectory{}, &stubFinder{}, "/doctors")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, &stubDirectory{err: errors.New("db down")}, &stubFinder{}, "/doctors?specialization=ENT")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_Nearby(t *testing.T) {
	finder := &stubFinder{}
	rec := serve(t, &stubDirectory{}, finder, "/doctors/nearby?location=Pune&specialization=cardio&limit=3")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pune", finder.location)
	assert.Equal(t, "cardio", finder.spec)
	assert.Equal(t, 3, finder.limit)
	assert.JSONEq(t, `{"doctors":[]}`, rec.Body.String())

	rec = serve(t, &stubDirectory{}, finder, "/doctors/nearby")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Suggest(t *testing.T) {
	finder := &stubFinder{suggestions: []string{"Pune, India"}}
	rec := serve(t, &stubDirectory{}, finder, "/locations/suggest?q=Pun&limit=abc")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8, finder.limit)
	assert.JSONEq(t, `{"suggestions":["Pune, India"]}`, rec.Body.String())
}
