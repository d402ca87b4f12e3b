// Package segment reads and writes .dlix index snapshot files.
//
// Layout: a 64-byte header, the JSON posting blocks of every term, a JSON
// dictionary (term -> block offset/length/document frequency), a JSON
// document-stats block, and a 32-byte footer. The footer CRC32 covers every
// byte between header and footer and is verified when a segment is opened.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/index"
)

const (
	MagicBytes    uint32 = 0x444C4958
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
	Extension            = ".dlix"
)

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic       uint32
	Version     uint32
	TermCount   uint32
	DocCount    uint32
	DictOffset  int64
	DictSize    int64
	PostOffset  int64
	PostSize    int64
	StatsOffset int64
	StatsSize   int64
}

func (h SegmentHeader) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.StatsOffset))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.StatsSize))
	return b
}

func decodeHeader(b []byte) SegmentHeader {
	return SegmentHeader{
		Magic:       binary.LittleEndian.Uint32(b[0:4]),
		Version:     binary.LittleEndian.Uint32(b[4:8]),
		TermCount:   binary.LittleEndian.Uint32(b[8:12]),
		DocCount:    binary.LittleEndian.Uint32(b[12:16]),
		DictOffset:  int64(binary.LittleEndian.Uint64(b[16:24])),
		DictSize:    int64(binary.LittleEndian.Uint64(b[24:32])),
		PostOffset:  int64(binary.LittleEndian.Uint64(b[32:40])),
		PostSize:    int64(binary.LittleEndian.Uint64(b[40:48])),
		StatsOffset: int64(binary.LittleEndian.Uint64(b[48:56])),
		StatsSize:   int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}

// DictEntry maps a term to its postings offset, length, and document frequency
// in the segment file.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// Writer serialises index snapshots into new segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write creates a new segment holding entries and stats. It writes to a
// .tmp file, syncs, and renames, so readers only ever see complete files.
// An empty snapshot is valid: it records that every document was deindexed.
func (w *Writer) Write(entries []index.TermEntry, stats []index.DocumentStats) (string, error) {
	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	name := fmt.Sprintf("seg_%020d%s", time.Now().UnixNano(), Extension)
	finalPath := filepath.Join(w.dataDir, name)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	if err := writeSegment(f, entries, stats); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return name, nil
}

// countingWriter tracks the offset and checksum of everything after the
// header.
type countingWriter struct {
	w   io.Writer
	crc hash.Hash32
	n   int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.crc.Write(p[:n])
	c.n += int64(n)
	return n, err
}

func writeSegment(f *os.File, entries []index.TermEntry, stats []index.DocumentStats) error {
	header := SegmentHeader{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(entries)),
		DocCount:  uint32(len(stats)),
	}
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return fmt.Errorf("reserving header: %w", err)
	}
	body := &countingWriter{w: f, crc: crc32.NewIEEE(), n: int64(HeaderSize)}

	header.PostOffset = body.n
	dict := make([]DictEntry, 0, len(entries))
	postings := 0
	for _, entry := range entries {
		data, err := json.Marshal(entry.Postings)
		if err != nil {
			return fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		offset := body.n - header.PostOffset
		if _, err := body.Write(data); err != nil {
			return fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		docs := make(map[string]struct{}, len(entry.Postings))
		for _, p := range entry.Postings {
			docs[p.DocumentID] = struct{}{}
		}
		postings += len(entry.Postings)
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: offset,
			PostLen:    len(data),
			DocFreq:    len(docs),
		})
	}
	header.PostSize = body.n - header.PostOffset

	if err := writeBlock(body, dict, &header.DictOffset, &header.DictSize); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}
	if err := writeBlock(body, stats, &header.StatsOffset, &header.StatsSize); err != nil {
		return fmt.Errorf("writing document stats: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], body.crc.Sum32())
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(stats)))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(postings))
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	if _, err := f.WriteAt(header.encode(), 0); err != nil {
		return fmt.Errorf("updating header: %w", err)
	}
	return nil
}

func writeBlock(body *countingWriter, v any, offset, size *int64) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	*offset = body.n
	if _, err := body.Write(data); err != nil {
		return err
	}
	*size = int64(len(data))
	return nil
}
