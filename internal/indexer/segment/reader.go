package segment

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/index"
)

// ErrCorrupt reports a segment whose header, footer or checksum is invalid.
var ErrCorrupt = errors.New("corrupt segment")

// Reader serves term lookups from one segment file.
type Reader struct {
	file      *os.File
	filePath  string
	header    SegmentHeader
	dict      []DictEntry
	stats     []index.DocumentStats
	createdAt time.Time
}

// OpenReader opens path, validates the header and verifies the body checksum.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := open(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func open(f *os.File, path string) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	size := info.Size()
	if size < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrCorrupt, path, size)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, header.Version)
	}
	bodyEnd := size - int64(FooterSize)
	if header.StatsOffset+header.StatsSize != bodyEnd || header.DictOffset+header.DictSize > bodyEnd {
		return nil, fmt.Errorf("%w: block offsets out of range", ErrCorrupt)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, bodyEnd); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	crc := crc32.NewIEEE()
	if _, err := io.Copy(crc, io.NewSectionReader(f, int64(HeaderSize), bodyEnd-int64(HeaderSize))); err != nil {
		return nil, fmt.Errorf("checksumming segment: %w", err)
	}
	if want := binary.LittleEndian.Uint32(footer[0:4]); crc.Sum32() != want {
		return nil, fmt.Errorf("%w: checksum mismatch (got %08x, want %08x)", ErrCorrupt, crc.Sum32(), want)
	}

	var dict []DictEntry
	if err := readBlock(f, header.DictOffset, header.DictSize, &dict); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	var stats []index.DocumentStats
	if err := readBlock(f, header.StatsOffset, header.StatsSize, &stats); err != nil {
		return nil, fmt.Errorf("reading document stats: %w", err)
	}
	return &Reader{
		file:      f,
		filePath:  path,
		header:    header,
		dict:      dict,
		stats:     stats,
		createdAt: time.Unix(0, int64(binary.LittleEndian.Uint64(footer[8:16]))),
	}, nil
}

func readBlock(f *os.File, offset, size int64, v any) error {
	data := make([]byte, size)
	if _, err := f.ReadAt(data, offset); err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Search returns the postings of term, or nil when the term is absent.
func (r *Reader) Search(term string) (index.PostingList, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return nil, nil
	}
	return r.read(r.dict[idx])
}

func (r *Reader) read(entry DictEntry) (index.PostingList, error) {
	data := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(data, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings for %q: %w", entry.Term, err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(data, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings for %q: %w", entry.Term, err)
	}
	return postings, nil
}

// ReadAll loads every term entry and the document stats, for restoring an
// in-memory store.
func (r *Reader) ReadAll() ([]index.TermEntry, []index.DocumentStats, error) {
	entries := make([]index.TermEntry, 0, len(r.dict))
	for _, d := range r.dict {
		postings, err := r.read(d)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, index.TermEntry{Term: d.Term, Postings: postings})
	}
	return entries, r.stats, nil
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) CreatedAt() time.Time {
	return r.createdAt
}

func (r *Reader) Path() string {
	return r.filePath
}

func (r *Reader) Close() error {
	return r.file.Close()
}
