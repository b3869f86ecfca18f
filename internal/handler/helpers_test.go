package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/lesson-api/internal/auth"
	"github.com/sakif/lesson-api/internal/repository/sqlite"
	"github.com/sakif/lesson-api/internal/service"
	"github.com/sakif/lesson-api/internal/storage"
)

// testEnv holds real services over an in-memory database and a temp
// upload dir. Handlers are called directly; path values are set by hand.
type testEnv struct {
	posts    *PostHandler
	users    *UserHandler
	students *StudentHandler
	root     *RootHandler
	store    *storage.Local
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(sqlite.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	postSvc := service.NewPostService(db, store, logger)
	userSvc := service.NewUserService(db, logger)
	studentSvc := service.NewStudentService(db, logger)

	return &testEnv{
		posts:    NewPostHandler(postSvc, logger, 1<<20),
		users:    NewUserHandler(userSvc, logger),
		students: NewStudentHandler(studentSvc, logger),
		root:     NewRootHandler(postSvc, userSvc, studentSvc, "admin", logger),
		store:    store,
	}
}

// call runs h against a request authenticated as "admin". pathValues are
// name/value pairs, e.g. "id", "42".
func call(t *testing.T, h http.HandlerFunc, req *http.Request, pathValues ...string) *httptest.ResponseRecorder {
	t.Helper()
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	req = req.WithContext(auth.ContextWithUsername(req.Context(), "admin"))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest builds a form with text fields and, if fileName is not
// empty, one image_file part.
func multipartRequest(t *testing.T, method, target string, fields map[string]string, fileName, fileBody string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("image_file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(fileBody))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

// requireError checks status and the standard error envelope.
func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, errType string) ErrorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	body := decodeBody[ErrorResponse](t, rec)
	require.Equal(t, errType, body.Error)
	require.Equal(t, body.Message, body.Detail)
	return body
}


func newRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

func getRequest(target string) *http.Request {
	return newRequest(http.MethodGet, target)
}
