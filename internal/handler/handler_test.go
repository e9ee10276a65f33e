package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/spacedesk/internal/auth"
	"github.com/sakif/spacedesk/internal/handler"
	"github.com/sakif/spacedesk/internal/repository/sqlite"
	"github.com/sakif/spacedesk/internal/service"
)

const testUserHeader = "X-Test-User"

type testAPI struct {
	db     *sqlite.DB
	router http.Handler
}

// newTestAPI wires real services over an in-memory database. The caller's
// identity comes from the X-Test-User header instead of a JWT.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	favorites := handler.NewFavoritesHandler(service.NewFavoritesService(db, logger), logger)
	collections := handler.NewCollectionsHandler(service.NewCollectionsService(db, logger), logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/public/collections", collections.PublicRoutes)
		r.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if id := r.Header.Get(testUserHeader); id != "" {
						r = r.WithContext(auth.WithUserID(r.Context(), id))
					}
					next.ServeHTTP(w, r)
				})
			})
			r.Route("/favorites", favorites.Routes)
			r.Route("/collections", collections.Routes)
		})
	})

	return &testAPI{db: db, router: r}
}

func (a *testAPI) do(t *testing.T, user, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	return decode[handler.ErrorResponse](t, rr)
}

func apodBody(itemID string) string {
	return `{"itemId":"` + itemID + `","itemType":"APOD","itemDate":"2024-01-01","data":{"title":"Pillars","url":"https://apod.nasa.gov/x.jpg"}}`
}
