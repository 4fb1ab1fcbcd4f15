// Package workbook loads the drawing layer of BIFF8 (.xls) workbooks.
//
// A workbook stream is read record by record. The drawing group payload
// (MSODRAWINGGROUP and its CONTINUE records) and every sheet drawing
// (MSODRAWING, CONTINUE, OBJ and TXO records) are fed into escher decoders.
// Everything else in the stream is skipped.
package workbook

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/richardlehane/mscfb"
	"github.com/roboco-io/xlsdraw/internal/escher"
)

// 워크북 스트림 이름 (BIFF8, BIFF5)
var streamNames = []string{"Workbook", "Book"}

// Options contains loader configuration options.
type Options struct {
	Logger *slog.Logger // 진단 로그 (nil이면 버림)

	// SkipBrokenDrawings drops sheet drawings that fail to decode instead of
	// failing the whole workbook.
	SkipBrokenDrawings bool
}

// DefaultOptions returns default loader options.
func DefaultOptions() Options {
	return Options{
		Logger:             nil,
		SkipBrokenDrawings: false,
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Workbook is the drawing layer of a loaded workbook.
type Workbook struct {
	Group  *escher.Group // nil when the workbook has no drawings
	Sheets []*Sheet

	palette  []escher.RGB
	original []byte
}

// Open reads the workbook stream of an .xls compound file.
func Open(path string, opts Options) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("XLS 파일을 열 수 없습니다: %w", err)
	}
	defer f.Close()

	data, err := ReadStream(f)
	if err != nil {
		return nil, err
	}

	opts.logger().Debug("workbook stream loaded", "path", path, "bytes", len(data))
	return Parse(data, opts)
}

// ReadStream returns the workbook stream of an OLE2 compound file.
func ReadStream(r io.ReaderAt) ([]byte, error) {
	doc, err := mscfb.New(r)
	if err != nil {
		return nil, fmt.Errorf("OLE2 문서 파싱 실패: %w", err)
	}

	for _, name := range streamNames {
		for _, entry := range doc.File {
			if entry.Name == name {
				return io.ReadAll(entry)
			}
		}
	}
	return nil, fmt.Errorf("워크북 스트림을 찾을 수 없습니다")
}

// IsCompoundFile reports whether r starts with the OLE2 signature.
func IsCompoundFile(r io.ReaderAt) (bool, error) {
	buf := make([]byte, 8)
	n, err := r.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if n < len(oleMagic) {
		return false, nil
	}
	return bytes.Equal(buf[:len(oleMagic)], oleMagic), nil
}

var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Sheet returns the sheet with the given name.
func (w *Workbook) Sheet(name string) (*Sheet, bool) {
	for _, s := range w.Sheets {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Drawings returns the sheets that carry a drawing, in stream order.
func (w *Workbook) Drawings() []*Sheet {
	var out []*Sheet
	for _, s := range w.Sheets {
		if s.Drawing != nil {
			out = append(out, s)
		}
	}
	return out
}

// PaletteColor implements escher.Palette.
func (w *Workbook) PaletteColor(index int) (escher.RGB, bool) {
	if index < 0 || index >= len(w.palette) {
		return escher.RGB{}, false
	}
	return w.palette[index], true
}

// SaveDrawings writes the drawing group and every sheet drawing as BIFF
// records, in the order they were read.
func (w *Workbook) SaveDrawings(out io.Writer) error {
	if w.Group == nil {
		return nil
	}
	if err := w.Group.Save(out); err != nil {
		return fmt.Errorf("드로잉 그룹 저장 실패: %w", err)
	}
	for _, s := range w.Drawings() {
		if err := s.Drawing.Save(out); err != nil {
			return fmt.Errorf("시트 %q 드로잉 저장 실패: %w", s.Name, err)
		}
	}
	return nil
}

// Original returns the drawing records exactly as they were read, in the
// order SaveDrawings writes them.
func (w *Workbook) Original() []byte {
	var buf bytes.Buffer
	buf.Write(w.original)
	for _, s := range w.Drawings() {
		buf.Write(s.original)
	}
	return buf.Bytes()
}

// Close releases every record of the drawing layer.
func (w *Workbook) Close() {
	if w.Group != nil {
		w.Group.Destroy()
		w.Group = nil
	}
	for _, s := range w.Sheets {
		s.Drawing = nil
	}
}
