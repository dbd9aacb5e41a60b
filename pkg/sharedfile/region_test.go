package sharedfile

import (
	"path/filepath"
	"testing"

	"github.com/commy-mesh/commy/pkg/model"
)

func TestCreateRegion_WritesValidHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.mmap")
	r, err := createRegion(path, 1024)
	if err != nil {
		t.Fatalf("createRegion failed: %v", err)
	}
	defer r.Close()

	if r.Capacity() != 1024 {
		t.Errorf("expected capacity 1024, got %d", r.Capacity())
	}
	if err := r.validateHeader(); err != nil {
		t.Errorf("expected valid header, got %v", err)
	}
}

func TestOpenRegion_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.mmap")
	r, err := createRegion(path, 64)
	if err != nil {
		t.Fatalf("createRegion failed: %v", err)
	}
	copy(r.Payload(), []byte("hello"))
	r.SetPayloadLength(5)
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r2, err := openRegion(path)
	if err != nil {
		t.Fatalf("openRegion failed: %v", err)
	}
	defer r2.Close()

	if string(r2.Payload()[:5]) != "hello" {
		t.Errorf("expected payload hello, got %q", r2.Payload()[:5])
	}
}

func TestOpenRegion_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.mmap")
	r, err := createRegion(path, 64)
	if err != nil {
		t.Fatalf("createRegion failed: %v", err)
	}
	copy(r.data[0:8], []byte("NOTVALID"))
	r.writeHeader(0, 0)
	// writeHeader restores the valid magic, so overwrite it again
	copy(r.data[0:8], []byte("NOTVALID"))
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err = openRegion(path)
	if err == nil {
		t.Fatal("expected IncompatibleFormat for bad magic")
	}
	var fault *model.Fault
	if f, ok := err.(*model.Fault); ok {
		fault = f
	}
	if fault == nil || fault.Kind() != model.KindIncompatibleFormat {
		t.Errorf("expected KindIncompatibleFormat, got %v", err)
	}
}

func TestOpenRegion_BadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.mmap")
	r, err := createRegion(path, 64)
	if err != nil {
		t.Fatalf("createRegion failed: %v", err)
	}
	r.data[8] = 0xFF
	r.data[9] = 0xFF
	r.writeHeader(0, 0)
	r.data[8] = 0xFF
	r.data[9] = 0xFF
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err = openRegion(path)
	if err == nil {
		t.Fatal("expected IncompatibleFormat for bad version")
	}
}

func TestOpenRegion_CorruptedCRC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.mmap")
	r, err := createRegion(path, 64)
	if err != nil {
		t.Fatalf("createRegion failed: %v", err)
	}
	// flip a header byte without recomputing the CRC
	r.data[10] ^= 0xFF
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err = openRegion(path)
	if err == nil {
		t.Fatal("expected Corrupted for CRC mismatch")
	}
	var fault *model.Fault
	if f, ok := err.(*model.Fault); ok {
		fault = f
	}
	if fault == nil || fault.Kind() != model.KindCorrupted {
		t.Errorf("expected KindCorrupted, got %v", err)
	}
}

func TestOpenRegion_ZeroPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.mmap")
	// a zero-payload region is exactly headerSize long
	r, err := createRegion(path, 0)
	if err != nil {
		t.Fatalf("createRegion failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if r2, err := openRegion(path); err != nil {
		t.Fatalf("zero-payload region should still open, got %v", err)
	} else {
		r2.Close()
	}
}
