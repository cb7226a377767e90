package parser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"docuchat-go/internal/config"
	"docuchat-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFormat(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		mimeType string
		want     string
	}{
		{"pdf by mime", "report.bin", "application/pdf", "pdf"},
		{"docx by mime", "file", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "docx"},
		{"mime with params", "page", "text/html; charset=utf-8", "html"},
		{"mime wins over extension", "notes.txt", "application/pdf", "pdf"},
		{"extension fallback", "slides.pptx", "", "pptx"},
		{"markdown extension", "README.markdown", "", "md"},
		{"case insensitive extension", "REPORT.PDF", "", "pdf"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			format, err := ResolveFormat(tc.filename, tc.mimeType)
			require.NoError(t, err)
			assert.Equal(t, tc.want, format)
		})
	}
}

func TestResolveFormatUnsupported(t *testing.T) {
	_, err := ResolveFormat("archive.zip", "application/zip")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ResolveFormat("noextension", "")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func newTestClient(serverURL string) *Client {
	return NewClient(config.ParserConfig{ServerURL: serverURL, TimeoutSeconds: 5})
}

func TestParseSuccess(t *testing.T) {
	fileBytes := []byte("%PDF-1.7 fake content")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/parse", r.URL.Path)

		var req struct {
			FileContent string   `json:"fileContent"`
			Filename    string   `json:"filename"`
			Options     *Options `json:"options"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		decoded, err := base64.StdEncoding.DecodeString(req.FileContent)
		require.NoError(t, err)
		assert.Equal(t, fileBytes, decoded)
		assert.Equal(t, "report.pdf", req.Filename)
		require.NotNil(t, req.Options)
		assert.True(t, req.Options.ExtractTables)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"document": map[string]interface{}{
				"documentId": "remote-id",
				"metadata":   map[string]interface{}{"fileName": "report.pdf", "format": "pdf", "pageCount": 2},
				"blocks": []map[string]interface{}{
					{"id": "b0", "type": "paragraph", "content": "第一段", "pageNumber": 1, "position": 0},
					{"id": "b1", "type": "table", "content": "A | B", "pageNumber": 2, "position": 1},
				},
				"warnings": []map[string]interface{}{
					{"code": "OCR_SKIPPED", "message": "ocr disabled", "severity": "warning"},
				},
				"success": true,
			},
			"processingTimeMs": 42.0,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	doc, err := client.Parse(context.Background(), fileBytes, "report.pdf", "application/pdf", Options{ExtractTables: true})
	require.NoError(t, err)

	assert.True(t, doc.Success)
	assert.Equal(t, "pdf", doc.Metadata.Format)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, model.BlockParagraph, doc.Blocks[0].Type)
	assert.Equal(t, model.BlockTable, doc.Blocks[1].Type)
	require.Len(t, doc.Warnings, 1)
	assert.Equal(t, "OCR_SKIPPED", doc.Warnings[0].Code)
}

func TestParseRemoteFailureReturnsFailedDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "encrypted document",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	doc, err := client.Parse(context.Background(), []byte("x"), "secret.pdf", "application/pdf", Options{})
	require.NoError(t, err)

	assert.False(t, doc.Success)
	require.NotEmpty(t, doc.Warnings)
	assert.Equal(t, "PARSER_FAILED", doc.Warnings[0].Code)
	assert.Equal(t, "encrypted document", doc.Warnings[0].Message)
}

func TestParseRejectsUnsupportedFormatLocally(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Parse(context.Background(), []byte("x"), "archive.zip", "", Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.False(t, called)
}

func TestParseServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Parse(context.Background(), []byte("x"), "report.pdf", "application/pdf", Options{})
	assert.Error(t, err)
}

func TestAvailability(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/health", r.URL.Path)
			json.NewEncoder(w).Encode(Health{
				Status:           "ok",
				Parser:           "docling",
				SupportedFormats: []string{"pdf", "docx"},
				Ready:            true,
			})
		}))
		defer server.Close()

		avail := newTestClient(server.URL).Availability(context.Background())
		assert.True(t, avail.Available)
	})

	t.Run("loading model", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(Health{Status: "loading", Ready: false})
		}))
		defer server.Close()

		avail := newTestClient(server.URL).Availability(context.Background())
		assert.False(t, avail.Available)
		assert.NotEmpty(t, avail.Reason)
	})

	t.Run("unreachable", func(t *testing.T) {
		avail := newTestClient("http://127.0.0.1:1").Availability(context.Background())
		assert.False(t, avail.Available)
	})
}
