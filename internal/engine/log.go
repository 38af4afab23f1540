package engine

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/PikaLabs/blackwidow/fio"
	"github.com/PikaLabs/blackwidow/utils"
)

// record is one durability-log entry: a put or a delete of one key in
// one column family. The log format is engine-internal and unrelated to
// the bit-exact ADT byte layouts in SPEC_FULL.md §3.3 — those describe
// what's stored as a key/value pair; this describes how the engine
// persists arbitrary key/value pairs to survive a restart.
//
// Layout: crc32(4) | flags(1) | keyLen(4) | valueLen(4) | key | value
const recordHeaderSize = 4 + 1 + 4 + 4

const flagDelete = 1 << 0

func encodeRecord(key, value []byte, isDelete bool) []byte {
	buf := make([]byte, recordHeaderSize+len(key)+len(value))
	var flags byte
	if isDelete {
		flags = flagDelete
	}
	buf[4] = flags
	binary.BigEndian.PutUint32(buf[5:9], uint32(len(key)))
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(value)))
	copy(buf[recordHeaderSize:recordHeaderSize+len(key)], key)
	copy(buf[recordHeaderSize+len(key):], value)
	crc := utils.GenerateCrc(buf[4:])
	binary.BigEndian.PutUint32(buf[0:4], crc)
	return buf
}

// decodeRecordAt reads one record out of iom at offset, mirroring the
// teacher's model.DataFile.ReadRecordHeader/ReadRecord split but in one
// call since the engine log has no variable-length header to size
// first. Returns the record's total on-disk size so the caller can
// advance its offset.
func decodeRecordAt(iom fio.IOManager, offset int64) (key, value []byte, isDelete bool, size int64, err error) {
	header := make([]byte, recordHeaderSize)
	if _, err := iom.Read(header, offset); err != nil {
		return nil, nil, false, 0, err
	}
	crc := binary.BigEndian.Uint32(header[0:4])
	flags := header[4]
	keyLen := binary.BigEndian.Uint32(header[5:9])
	valueLen := binary.BigEndian.Uint32(header[9:13])

	body := make([]byte, keyLen+valueLen)
	if len(body) > 0 {
		if _, err := iom.Read(body, offset+recordHeaderSize); err != nil {
			return nil, nil, false, 0, ErrLogCorrupt
		}
	}
	if !utils.CheckCrc(crc, append(header[4:], body...)) {
		return nil, nil, false, 0, ErrLogCorrupt
	}
	return body[:keyLen], body[keyLen:], flags&flagDelete != 0, recordHeaderSize + int64(len(body)), nil
}

// logFile is the append-only durability journal for one column family,
// built on the teacher's fio.IOManager abstraction (model.DataFile's
// read-at-offset discipline) rather than a bare *os.File, so swapping in
// another IOManager implementation (mmap, for instance) needs no change
// here.
type logFile struct {
	path        string
	io          fio.IOManager
	writeOffset int64
}

func openLogFile(path string) (*logFile, error) {
	iom, err := fio.NewFIleIO(path)
	if err != nil {
		return nil, err
	}
	size, err := iom.Size()
	if err != nil {
		return nil, err
	}
	return &logFile{path: path, io: iom, writeOffset: size}, nil
}

func (lf *logFile) append(key, value []byte, isDelete bool) error {
	buf := encodeRecord(key, value, isDelete)
	n, err := lf.io.Write(buf)
	if err != nil {
		return err
	}
	lf.writeOffset += int64(n)
	return nil
}

func (lf *logFile) sync() error { return lf.io.Sync() }
func (lf *logFile) close() error { return lf.io.Close() }

// replay reads every record from the start of the log, calling fn for
// each one in order so the caller can rebuild its in-memory index.
func (lf *logFile) replay(fn func(key, value []byte, isDelete bool)) error {
	var offset int64
	for offset < lf.writeOffset {
		key, value, isDelete, size, err := decodeRecordAt(lf.io, offset)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		fn(key, value, isDelete)
		offset += size
	}
	return nil
}

// rewrite atomically replaces the log's contents with exactly the given
// live entries — used by compaction once a CF's btree has had dropped
// entries removed, so the on-disk log doesn't keep growing with
// tombstoned or superseded history. Mirrors the teacher's merge.go
// file-rewrite-then-rename approach.
func (lf *logFile) rewrite(entries func(func(key, value []byte))) error {
	tmpPath := lf.path + ".rewrite"
	tmp, err := fio.NewFIleIO(tmpPath)
	if err != nil {
		return err
	}
	entries(func(key, value []byte) {
		_, _ = tmp.Write(encodeRecord(key, value, false))
	})
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := lf.io.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, lf.path); err != nil {
		return err
	}
	iom, err := fio.NewFIleIO(lf.path)
	if err != nil {
		return err
	}
	size, err := iom.Size()
	if err != nil {
		return err
	}
	lf.io = iom
	lf.writeOffset = size
	return nil
}
