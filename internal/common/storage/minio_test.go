package storage

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeS3 serves the few path-style S3 calls the storage uses.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, err := readPayload(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.objects[path] = body
		w.Header().Set("ETag", `"etag-1"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		body, ok := f.objects[path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message><Key>`+key+`</Key><BucketName>`+bucket+`</BucketName></Error>`)
			}
			return
		}
		w.Header().Set("ETag", `"etag-1"`)
		w.Header().Set("Content-Type", "application/zstd")
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(body)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// readPayload returns the object bytes of a PUT, removing the aws-chunked
// framing the client uses for streaming signatures.
func readPayload(r *http.Request) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
		return io.ReadAll(r.Body)
	}
	return decodeAWSChunked(bufio.NewReader(r.Body))
}

func decodeAWSChunked(br *bufio.Reader) ([]byte, error) {
	var out []byte
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeHex, _, _ := strings.Cut(strings.TrimRight(line, "\r\n"), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out, nil
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		if _, err := br.Discard(2); err != nil {
			return nil, err
		}
	}
}

func newTestStorage(t *testing.T) (*MinIOStorage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	s, err := NewMinIOStorage(MinIOConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	return s, fake
}

func TestMinIOStorageRoundTrip(t *testing.T) {
	s, fake := newTestStorage(t)
	ctx := context.Background()

	if err := s.EnsureBucket(ctx, "reports"); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}
	if !fake.buckets["reports"] {
		t.Fatal("bucket was not created")
	}
	data := "compressed report"
	if err := s.PutObject(ctx, "reports", "runs/r1.json.zst", strings.NewReader(data), int64(len(data)), "application/zstd"); err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, err := s.GetObject(ctx, "reports", "runs/r1.json.zst")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil || string(got) != data {
		t.Fatalf("unexpected object %q, %v", got, err)
	}
	st, err := s.StatObject(ctx, "reports", "runs/r1.json.zst")
	if err != nil || st.SizeBytes != int64(len(data)) {
		t.Fatalf("unexpected stat %+v, %v", st, err)
	}
}

func TestMinIOStorageMissingObject(t *testing.T) {
	s, fake := newTestStorage(t)
	fake.buckets["reports"] = true
	rc, err := s.GetObject(context.Background(), "reports", "runs/none.json.zst")
	if err == nil {
		// the client may defer the request until the first read
		_, err = io.ReadAll(rc)
		rc.Close()
		if err == nil {
			t.Fatal("expected an error for a missing object")
		}
		return
	}
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestNewMinIOStorageValidation(t *testing.T) {
	cases := []MinIOConfig{
		{},
		{Endpoint: "localhost:9000"},
		{Endpoint: "localhost:9000", AccessKey: "a"},
	}
	for _, cfg := range cases {
		if _, err := NewMinIOStorage(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestDecodeAWSChunked(t *testing.T) {
	framed := "5;chunk-signature=aa\r\nhello\r\n6;chunk-signature=bb\r\n world\r\n0;chunk-signature=cc\r\n\r\n"
	got, err := decodeAWSChunked(bufio.NewReader(strings.NewReader(framed)))
	if err != nil || string(got) != "hello world" {
		t.Fatalf("unexpected payload %q, %v", got, err)
	}
}
