//go:build e2e

package store

import (
	"context"
	"os"
	"testing"
)

// Requires a reachable S3-compatible endpoint (COMMY_TEST_S3_BUCKET plus the
// standard AWS_* / AWS_ENDPOINT_URL environment variables the default
// credential chain already understands).

func testArchiver(t *testing.T) *Archiver {
	t.Helper()
	bucket := os.Getenv("COMMY_TEST_S3_BUCKET")
	if bucket == "" {
		t.Skip("COMMY_TEST_S3_BUCKET not set")
	}
	a, err := NewArchiver(context.Background(), "us-east-1", bucket, "commy-test/", nil)
	if err != nil {
		t.Fatalf("NewArchiver failed: %v", err)
	}
	return a
}

func TestArchiver_UploadSegmentSmall(t *testing.T) {
	a := testArchiver(t)
	err := a.UploadSegment(context.Background(), 1, 10, []byte(`[{"op":"test"}]`))
	if err != nil {
		t.Fatalf("UploadSegment failed: %v", err)
	}
}

func TestArchiver_UploadSegmentMultipart(t *testing.T) {
	a := testArchiver(t)
	payload := make([]byte, multipartThreshold+1024)
	err := a.UploadSegment(context.Background(), 11, 20, payload)
	if err != nil {
		t.Fatalf("UploadSegment (multipart) failed: %v", err)
	}
}
