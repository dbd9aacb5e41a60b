package sharedfile

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	"golang.org/x/sys/unix"

	"github.com/commy-mesh/commy/pkg/model"
)

// Fixed mapped-region header, per the wire format: 8-byte magic, 2-byte
// version, 2-byte flags, 4-byte reserved, 8-byte payload length, 4-byte
// CRC32C of the header excluding the CRC field itself, then 4 bytes of
// padding so the payload starts on an 8-byte boundary.
const (
	regionMagic      = "COMMYREG"
	regionVersion    = uint16(1)
	headerSize       = 32
	headerCRCOffset  = 24
	headerPadding    = 4
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

type regionHeader struct {
	Magic         [8]byte
	Version       uint16
	Flags         uint16
	Reserved      uint32
	PayloadLength uint64
	CRC           uint32
}

// Region is one memory-mapped backing file: a fixed header followed by a
// payload window of MaxSize bytes. All accesses before the payload window
// go through readHeader/writeHeader; payload access is via Payload().
type Region struct {
	file *os.File
	data []byte // mmap'd region, header + payload
	size uint64
}

// createRegion creates path, sizes it to headerSize+maxSize, memory-maps
// it, and writes an initialized header.
func createRegion(path string, maxSize uint64) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("sharedfile: create %s: %w", path, err)
	}

	total := headerSize + maxSize
	if err := f.Truncate(int64(total)); err != nil {
		f.Close()
		return nil, fmt.Errorf("sharedfile: truncate %s: %w", path, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(total), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sharedfile: mmap %s: %w", path, err)
	}

	r := &Region{file: f, data: data, size: total}
	r.writeHeader(maxSize, 0)
	return r, nil
}

// openRegion opens an existing mapped file at path and validates its
// header. Returns IncompatibleFormat on an unknown magic/version, or
// Corrupted on a CRC mismatch.
func openRegion(path string) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("sharedfile: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sharedfile: stat %s: %w", path, err)
	}
	size := uint64(info.Size())
	if size < headerSize {
		f.Close()
		return nil, model.NewFault(model.KindCorrupted, "sharedfile.open", model.ErrCorrupted).
			WithDetail("path", path).WithDetail("reason", "file shorter than header")
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sharedfile: mmap %s: %w", path, err)
	}

	r := &Region{file: f, data: data, size: size}
	if err := r.validateHeader(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Region) validateHeader() error {
	h := r.readHeader()
	if string(h.Magic[:]) != regionMagic {
		return model.NewFault(model.KindIncompatibleFormat, "sharedfile.open", model.ErrIncompatibleFormat).
			WithDetail("reason", "unknown magic")
	}
	if h.Version != regionVersion {
		return model.NewFault(model.KindIncompatibleFormat, "sharedfile.open", model.ErrIncompatibleFormat).
			WithDetail("reason", "unknown version").WithDetail("version", h.Version)
	}
	if crc32.Checksum(r.data[:headerCRCOffset], crcTable) != h.CRC {
		return model.NewFault(model.KindCorrupted, "sharedfile.open", model.ErrCorrupted).
			WithDetail("reason", "header CRC mismatch")
	}
	return nil
}

func (r *Region) readHeader() regionHeader {
	var h regionHeader
	copy(h.Magic[:], r.data[0:8])
	h.Version = binary.BigEndian.Uint16(r.data[8:10])
	h.Flags = binary.BigEndian.Uint16(r.data[10:12])
	h.Reserved = binary.BigEndian.Uint32(r.data[12:16])
	h.PayloadLength = binary.BigEndian.Uint64(r.data[16:24])
	h.CRC = binary.BigEndian.Uint32(r.data[24:28])
	return h
}

func (r *Region) writeHeader(payloadLength uint64, flags uint16) {
	copy(r.data[0:8], []byte(regionMagic))
	binary.BigEndian.PutUint16(r.data[8:10], regionVersion)
	binary.BigEndian.PutUint16(r.data[10:12], flags)
	binary.BigEndian.PutUint32(r.data[12:16], 0)
	binary.BigEndian.PutUint64(r.data[16:24], payloadLength)
	crc := crc32.Checksum(r.data[:headerCRCOffset], crcTable)
	binary.BigEndian.PutUint32(r.data[24:28], crc)
}

// Payload returns the writable payload window, after the header and its
// padding to an 8-byte boundary.
func (r *Region) Payload() []byte {
	return r.data[headerSize:]
}

// Capacity is the size of the payload window in bytes.
func (r *Region) Capacity() uint64 {
	return r.size - headerSize
}

// SetPayloadLength updates and re-checksums the header after a write.
func (r *Region) SetPayloadLength(n uint64) {
	h := r.readHeader()
	r.writeHeader(n, h.Flags)
}

// Sync flushes dirty pages to disk.
func (r *Region) Sync() error {
	return unix.Msync(r.data, unix.MS_ASYNC)
}

// Close unmaps and closes the backing file.
func (r *Region) Close() error {
	if r.data != nil {
		_ = unix.Msync(r.data, unix.MS_SYNC)
		if err := unix.Munmap(r.data); err != nil {
			return fmt.Errorf("sharedfile: munmap: %w", err)
		}
		r.data = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("sharedfile: close file: %w", err)
		}
		r.file = nil
	}
	return nil
}
