package gzippedhttp

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipString(t *testing.T, input string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	_, err := gzipWriter.Write([]byte(input))
	require.NoError(t, err)
	require.NoError(t, gzipWriter.Close())

	return buf.Bytes()
}

func TestGzipResponse(t *testing.T) {
	tests := []struct {
		name           string
		contentType    string
		status         int
		body           string
		wantCompressed bool
	}{
		{name: "html page", contentType: "text/html; charset=utf-8", status: http.StatusOK, body: "<p>vault</p>", wantCompressed: true},
		{name: "json body", contentType: "application/json", status: http.StatusCreated, body: `{"id":"1"}`, wantCompressed: true},
		{name: "redirect", contentType: "text/html; charset=utf-8", status: http.StatusSeeOther, body: "", wantCompressed: false},
		{name: "no content", contentType: "", status: http.StatusNoContent, body: "", wantCompressed: false},
		{name: "plain text", contentType: "text/plain", status: http.StatusOK, body: "pong", wantCompressed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := GzipResponse(http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
				if tt.contentType != "" {
					response.Header().Set("Content-Type", tt.contentType)
				}
				response.WriteHeader(tt.status)
				if tt.body != "" {
					_, _ = response.Write([]byte(tt.body))
				}
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if !tt.wantCompressed {
				assert.Empty(t, rec.Header().Get("Content-Encoding"))
				assert.Equal(t, tt.body, rec.Body.String())
				return
			}

			assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
			reader, err := gzip.NewReader(rec.Body)
			require.NoError(t, err)
			body, err := io.ReadAll(reader)
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(body))
		})
	}
}

func TestGzipResponseWithoutAcceptEncoding(t *testing.T) {
	handler := GzipResponse(http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		response.Header().Set("Content-Type", "application/json")
		_, _ = response.Write([]byte(`{}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, `{}`, rec.Body.String())
}

func TestUngzipRequest(t *testing.T) {
	echo := UngzipRequest(http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		body, err := io.ReadAll(request.Body)
		if err != nil {
			response.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = response.Write(body)
	}))

	t.Run("gzipped form", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(gzipString(t, "email=a%40b.c&password=x")))
		req.Header.Set("Content-Encoding", "gzip")
		rec := httptest.NewRecorder()
		echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "email=a%40b.c&password=x", rec.Body.String())
	})

	t.Run("broken gzip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("plain"))
		req.Header.Set("Content-Encoding", "gzip")
		rec := httptest.NewRecorder()
		echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
