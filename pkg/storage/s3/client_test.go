package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3(t *testing.T) (*Client, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket.mu.Lock()
		defer bucket.mu.Unlock()
		key := strings.TrimPrefix(r.URL.Path, "/uninote-sheets/")
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			bucket.objects[key] = body
			bucket.types[key] = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			delete(bucket.objects, key)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)

	api := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	})
	return newWithAPI(api, "uninote-sheets", 5*time.Minute), bucket
}

func TestUploadAndDelete(t *testing.T) {
	client, bucket := newFakeS3(t)
	ctx := context.Background()

	require.NoError(t, client.Upload(ctx, "sheets/abc/file/1.pdf", bytes.NewReader([]byte("%PDF-1.4")), "application/pdf"))
	require.Equal(t, []byte("%PDF-1.4"), bucket.objects["sheets/abc/file/1.pdf"])
	require.Equal(t, "application/pdf", bucket.types["sheets/abc/file/1.pdf"])

	require.NoError(t, client.Delete(ctx, "sheets/abc/file/1.pdf"))
	require.Empty(t, bucket.objects)

	require.Error(t, client.Upload(ctx, "", bytes.NewReader(nil), "application/pdf"))
}

func TestPing(t *testing.T) {
	client, _ := newFakeS3(t)
	require.NoError(t, client.Ping(context.Background()))
}

func TestPresignGet(t *testing.T) {
	client, _ := newFakeS3(t)
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return fixed }

	link, err := client.PresignGet(context.Background(), "sheets/abc/file/1.pdf", "Linear Algebra.pdf")
	require.NoError(t, err)
	require.Equal(t, fixed.Add(5*time.Minute), link.ExpiresAt)

	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	require.Equal(t, "/uninote-sheets/sheets/abc/file/1.pdf", parsed.Path)
	q := parsed.Query()
	require.Equal(t, "300", q.Get("X-Amz-Expires"))
	require.NotEmpty(t, q.Get("X-Amz-Signature"))
	require.Contains(t, q.Get("response-content-disposition"), `filename="Linear Algebra.pdf"`)

	_, err = client.PresignGet(context.Background(), " ", "")
	require.Error(t, err)
}

func TestContentDispositionEscapesQuotes(t *testing.T) {
	got := contentDisposition(`a"b.pdf`)
	require.Contains(t, got, `filename="a_b.pdf"`)
	require.Contains(t, got, "filename*=UTF-8''a%22b.pdf")
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Linear Algebra: Final Review!": "linear-algebra-final-review",
		"  ECON 101 -- Midterm #2  ":    "econ-101-midterm-2",
		"Ünïcode only ✓":                "n-code-only",
		"***":                           "",
	}
	for in, want := range cases {
		require.Equal(t, want, Slug(in), in)
	}
}
