package workbook

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roboco-io/xlsdraw/internal/biff"
	"github.com/roboco-io/xlsdraw/internal/escher"
)

// frame is one open BOF..EOF substream.
type frame struct {
	globals bool
	sheet   *Sheet

	dec    *escher.Decoder
	broken bool
	raw    bytes.Buffer
}

type parser struct {
	opts Options
	log  *slog.Logger
	wb   *Workbook

	names    map[int]string
	groupDec *escher.Decoder
	groupRaw bytes.Buffer
	stack    []*frame
	prev     uint16 // 직전 레코드 태그 (CONTINUE 제외)
}

// Parse loads the drawing layer of a workbook stream.
func Parse(data []byte, opts Options) (*Workbook, error) {
	p := &parser{
		opts:  opts,
		log:   opts.logger(),
		wb:    &Workbook{palette: newPalette()},
		names: make(map[int]string),
	}

	r := biff.NewRecordReader(data)
	for {
		offset := r.Offset()
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("워크북 스트림 읽기 실패: %w", err)
		}
		if err := p.record(offset, rec); err != nil {
			p.abort()
			return nil, err
		}
	}

	if len(p.stack) > 0 {
		p.abort()
		return nil, fmt.Errorf("EOF 레코드 없이 스트림이 끝났습니다 (열린 서브스트림 %d개)", len(p.stack))
	}

	p.log.Debug("workbook parsed", "sheets", len(p.wb.Sheets), "drawings", len(p.wb.Drawings()))
	return p.wb, nil
}

func (p *parser) top() *frame {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

func (p *parser) record(offset int, rec *biff.Record) error {
	tag := rec.Tag
	defer func() {
		if tag != biff.TagContinue {
			p.prev = tag
		}
	}()

	switch tag {
	case biff.TagBOF:
		return p.beginSubstream(offset, rec)
	case biff.TagEOF:
		return p.endSubstream()
	}

	f := p.top()
	if f == nil {
		// 서브스트림 밖의 레코드는 무시
		return nil
	}

	switch tag {
	case biff.TagBoundSheet:
		if !f.globals {
			return nil
		}
		bs, err := parseBoundSheet(rec.Data)
		if err != nil {
			return err
		}
		p.names[bs.offset] = bs.name

	case biff.TagPalette:
		if f.globals {
			return applyPaletteRecord(p.wb.palette, rec.Data)
		}

	case biff.TagMsoDrawingGroup:
		if !f.globals {
			return fmt.Errorf("오프셋 %d: 전역 서브스트림 밖의 MSODRAWINGGROUP", offset)
		}
		return p.feedGroup(rec)

	case biff.TagMsoDrawing:
		return p.feedDrawing(f, offset, rec)

	case biff.TagObj, biff.TagTxo:
		return p.attachClient(f, rec)

	case biff.TagContinue:
		switch p.prev {
		case biff.TagMsoDrawingGroup:
			if f.globals {
				return p.feedGroup(rec)
			}
		case biff.TagMsoDrawing:
			return p.feedDrawing(f, offset, rec)
		case biff.TagObj, biff.TagTxo:
			return p.attachClient(f, rec)
		}
	}
	return nil
}

func (p *parser) beginSubstream(offset int, rec *biff.Record) error {
	if len(rec.Data) < 4 {
		return fmt.Errorf("오프셋 %d: BOF 레코드가 너무 짧습니다", offset)
	}
	dt := binary.LittleEndian.Uint16(rec.Data[2:])

	if dt == biff.SubstreamGlobals && len(p.stack) == 0 {
		p.stack = append(p.stack, &frame{globals: true})
		return nil
	}

	s := &Sheet{Name: p.names[offset], Kind: sheetKind(dt), Offset: offset}
	if parent := p.top(); parent != nil && !parent.globals {
		s.Parent = parent.sheet
	}
	p.wb.Sheets = append(p.wb.Sheets, s)
	p.stack = append(p.stack, &frame{sheet: s})
	return nil
}

func (p *parser) endSubstream() error {
	f := p.top()
	if f == nil {
		return fmt.Errorf("BOF 없이 EOF 레코드가 나타났습니다")
	}
	p.stack = p.stack[:len(p.stack)-1]

	if f.globals {
		return p.finishGroup()
	}
	return p.finishDrawing(f)
}

func (p *parser) feedGroup(rec *biff.Record) error {
	if p.groupDec == nil {
		p.groupDec = escher.NewGroupDecoder()
	}
	if err := p.groupDec.Feed(rec.Data); err != nil {
		return fmt.Errorf("드로잉 그룹 디코딩 실패: %w", err)
	}
	_, err := rec.WriteTo(&p.groupRaw)
	return err
}

func (p *parser) finishGroup() error {
	if p.groupDec == nil {
		return nil
	}
	g, err := escher.GroupFromDecoder(p.groupDec)
	if err != nil {
		return fmt.Errorf("드로잉 그룹 디코딩 실패: %w", err)
	}
	p.wb.Group = g
	p.wb.original = p.groupRaw.Bytes()
	p.log.Debug("drawing group loaded", "clusters", g.Dgg().ClusterCount())
	return nil
}

func (p *parser) feedDrawing(f *frame, offset int, rec *biff.Record) error {
	if f.globals || f.broken {
		return nil
	}
	if p.wb.Group == nil {
		return fmt.Errorf("오프셋 %d: 드로잉 그룹 없이 MSODRAWING 레코드가 나타났습니다", offset)
	}
	if f.dec == nil {
		f.dec = p.wb.Group.NewDrawingDecoder(f.sheet.Kind == SheetChart)
	}
	if _, err := rec.WriteTo(&f.raw); err != nil {
		return err
	}
	if err := f.dec.Feed(rec.Data); err != nil {
		return p.drawingFailed(f, err)
	}
	return nil
}

func (p *parser) attachClient(f *frame, rec *biff.Record) error {
	// 드로잉이 없는 시트의 OBJ 레코드는 무시
	if f.dec == nil || f.broken {
		return nil
	}
	if _, err := rec.WriteTo(&f.raw); err != nil {
		return err
	}
	if err := f.dec.AttachClientRecord(rec.Clone()); err != nil {
		return p.drawingFailed(f, err)
	}
	return nil
}

func (p *parser) finishDrawing(f *frame) error {
	if f.dec == nil || f.broken {
		return nil
	}
	d, err := p.wb.Group.DrawingFromDecoder(f.dec)
	if err != nil {
		return p.drawingFailed(f, err)
	}
	f.sheet.Drawing = d
	f.sheet.original = f.raw.Bytes()
	p.log.Debug("sheet drawing loaded", "sheet", f.sheet.Title(), "shapes", len(d.Shapes()))
	return nil
}

// drawingFailed either fails the workbook or drops the partial drawing of
// the sheet.
func (p *parser) drawingFailed(f *frame, err error) error {
	err = fmt.Errorf("시트 %q 드로잉 디코딩 실패: %w", f.sheet.Title(), err)
	if !p.opts.SkipBrokenDrawings || isInternal(err) {
		return err
	}
	p.log.Warn("dropping broken sheet drawing", "sheet", f.sheet.Title(), "error", err)
	if root := f.dec.Root(); root != nil {
		root.Destroy()
	}
	f.broken = true
	return nil
}

func isInternal(err error) bool {
	var ie *escher.InternalError
	return errors.As(err, &ie)
}

// abort releases everything decoded so far.
func (p *parser) abort() {
	for _, f := range p.stack {
		if f.dec != nil && !f.broken && f.dec.Root() != nil {
			f.dec.Root().Destroy()
		}
	}
	p.stack = nil
	p.wb.Close()
}
