package importer

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"targetdb/pkg/domain"
)

// gzipMagic is the two-byte signature prefixing every gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// openFile opens path for reading, transparently decompressing gzip input.
// Detection is by content, not extension, so misnamed files still work.
func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	head, err := br.Peek(2)
	if err != nil && err != io.EOF {
		_ = f.Close()
		return nil, err
	}
	if bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		return &gzipFile{gz: gz, f: f}, nil
	}
	return &plainFile{r: br, f: f}, nil
}

type gzipFile struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipFile) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipFile) Close() error {
	gzErr := g.gz.Close()
	if err := g.f.Close(); err != nil {
		return err
	}
	return gzErr
}

type plainFile struct {
	r io.Reader
	f *os.File
}

func (p *plainFile) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *plainFile) Close() error { return p.f.Close() }

// newCSVReader configures a csv.Reader with the relaxed settings the
// import formats need: variable field counts and leading-space trimming.
func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false
	return cr
}

// readAll drains a CSV file into records, translating parse failures into
// a fatal ValidationError naming the file.
func readAll(path string) ([][]string, error) {
	rc, err := openFile(path)
	if err != nil {
		return nil, domain.ValidationError{File: path, Reason: err.Error(), Fatal: true}
	}
	defer rc.Close()
	records, err := newCSVReader(rc).ReadAll()
	if err != nil {
		return nil, domain.ValidationError{File: path, Reason: "csv parse: " + err.Error(), Fatal: true}
	}
	if len(records) == 0 {
		return nil, domain.ValidationError{File: path, Reason: "file is empty", Fatal: true}
	}
	return records, nil
}
