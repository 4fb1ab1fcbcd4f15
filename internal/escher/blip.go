package escher

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zlib"
)

// BlipType is the image format discriminator of a catalog entry.
type BlipType uint8

// Image formats.
const (
	BlipError    BlipType = 0
	BlipUnknown  BlipType = 1
	BlipEMF      BlipType = 2
	BlipWMF      BlipType = 3
	BlipPICT     BlipType = 4
	BlipJPEG     BlipType = 5
	BlipPNG      BlipType = 6
	BlipDIB      BlipType = 7
	BlipTIFF     BlipType = 17
	BlipCMYKJPEG BlipType = 18
)

// ErrUnsupportedImage is returned when an image format cannot be exported.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Blip record instances with a single UID. The instance with the low bit set
// carries a second UID.
var blipInstances = map[BlipType]uint16{
	BlipEMF:      0x3D4,
	BlipWMF:      0x216,
	BlipPICT:     0x542,
	BlipJPEG:     0x46A,
	BlipPNG:      0x6E0,
	BlipDIB:      0x7A8,
	BlipTIFF:     0x6E4,
	BlipCMYKJPEG: 0x6E2,
}

const (
	uidSize              = 16
	metafileHeaderSize   = 34
	wmfPlaceableSize     = 22
	wmfPlaceableKey      = 0x9AC6CDD7
	pictHeaderSize       = 512
	bitmapFileHeaderSize = 14
	emuPerInch           = 914400
)

// String returns the format name.
func (t BlipType) String() string {
	switch t {
	case BlipEMF:
		return "EMF"
	case BlipWMF:
		return "WMF"
	case BlipPICT:
		return "PICT"
	case BlipJPEG:
		return "JPEG"
	case BlipPNG:
		return "PNG"
	case BlipDIB:
		return "DIB"
	case BlipTIFF:
		return "TIFF"
	case BlipCMYKJPEG:
		return "CMYKJPEG"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Ext returns the file extension of the exported image.
func (t BlipType) Ext() string {
	switch t {
	case BlipEMF:
		return ".emf"
	case BlipWMF:
		return ".wmf"
	case BlipPICT:
		return ".pict"
	case BlipJPEG, BlipCMYKJPEG:
		return ".jpg"
	case BlipPNG:
		return ".png"
	case BlipDIB:
		return ".bmp"
	case BlipTIFF:
		return ".tiff"
	default:
		return ".bin"
	}
}

// IsMetafile reports formats stored compressed with a metafile header.
func (t BlipType) IsMetafile() bool {
	return t == BlipEMF || t == BlipWMF || t == BlipPICT
}

func imageUID(t BlipType, data []byte) [uidSize]byte {
	var uid [uidSize]byte
	binary.LittleEndian.PutUint64(uid[0:], xxhash.Sum64(data))
	d := xxhash.New()
	_, _ = d.Write([]byte{byte(t)})
	_, _ = d.Write(data)
	binary.LittleEndian.PutUint64(uid[8:], d.Sum64())
	return uid
}

// NewBSE builds a catalog entry with one reference for an image file.
// Bitmap file headers and placeable metafile headers are stripped; metafiles
// are stored compressed.
func NewBSE(data []byte, t BlipType) (*BSE, error) {
	inst, ok := blipInstances[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, t)
	}

	var (
		blip []byte
		err  error
	)
	if t.IsMetafile() {
		blip, err = metafileBlip(t, data)
		if err != nil {
			return nil, err
		}
	} else {
		if t == BlipDIB && len(data) > bitmapFileHeaderSize && data[0] == 'B' && data[1] == 'M' {
			data = data[bitmapFileHeaderSize:]
		}
		uid := imageUID(t, data)
		blip = make([]byte, 0, uidSize+1+len(data))
		blip = append(blip, uid[:]...)
		blip = append(blip, 0xFF)
		blip = append(blip, data...)
	}

	bh := Header{Tag: TagBlipFirst + uint16(t), Instance: inst}
	rec := make([]byte, bseHeaderSize+HeaderSize+len(blip))
	bh.Put(rec[bseHeaderSize:], len(blip))
	copy(rec[bseHeaderSize+HeaderSize:], blip)

	mac := t
	if t == BlipEMF || t == BlipWMF {
		mac = BlipPICT
	}
	rec[bseOffWin32] = byte(t)
	rec[bseOffMacOS] = byte(mac)
	copy(rec[bseOffUID:], blip[:uidSize])
	binary.LittleEndian.PutUint16(rec[bseOffTag:], 0x00FF)
	binary.LittleEndian.PutUint32(rec[bseOffSize:], uint32(HeaderSize+len(blip)))
	binary.LittleEndian.PutUint32(rec[bseOffRef:], 1)

	return &BSE{DataRecord: *NewDataRecord(TagBSE, uint16(t), 2, rec)}, nil
}

func metafileBlip(t BlipType, data []byte) ([]byte, error) {
	var bounds Rect
	var size [2]int32
	switch t {
	case BlipWMF:
		if len(data) >= wmfPlaceableSize && binary.LittleEndian.Uint32(data) == wmfPlaceableKey {
			bounds = Rect{
				Left:   int32(int16(binary.LittleEndian.Uint16(data[6:]))),
				Top:    int32(int16(binary.LittleEndian.Uint16(data[8:]))),
				Right:  int32(int16(binary.LittleEndian.Uint16(data[10:]))),
				Bottom: int32(int16(binary.LittleEndian.Uint16(data[12:]))),
			}
			if inch := int64(binary.LittleEndian.Uint16(data[14:])); inch > 0 {
				size[0] = int32(int64(bounds.Right-bounds.Left) * emuPerInch / inch)
				size[1] = int32(int64(bounds.Bottom-bounds.Top) * emuPerInch / inch)
			}
			data = data[wmfPlaceableSize:]
		}
	case BlipEMF:
		if len(data) >= 40 {
			bounds = Rect{
				Left:   int32(binary.LittleEndian.Uint32(data[8:])),
				Top:    int32(binary.LittleEndian.Uint32(data[12:])),
				Right:  int32(binary.LittleEndian.Uint32(data[16:])),
				Bottom: int32(binary.LittleEndian.Uint32(data[20:])),
			}
			// rclFrame는 0.01mm 단위
			size[0] = (int32(binary.LittleEndian.Uint32(data[32:])) - int32(binary.LittleEndian.Uint32(data[24:]))) * 360
			size[1] = (int32(binary.LittleEndian.Uint32(data[36:])) - int32(binary.LittleEndian.Uint32(data[28:]))) * 360
		}
	case BlipPICT:
		if len(data) > pictHeaderSize+10 {
			data = data[pictHeaderSize:]
			bounds = Rect{
				Top:    int32(int16(binary.BigEndian.Uint16(data[2:]))),
				Left:   int32(int16(binary.BigEndian.Uint16(data[4:]))),
				Bottom: int32(int16(binary.BigEndian.Uint16(data[6:]))),
				Right:  int32(int16(binary.BigEndian.Uint16(data[8:]))),
			}
			size[0] = (bounds.Right - bounds.Left) * 12700
			size[1] = (bounds.Bottom - bounds.Top) * 12700
		}
	}

	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compress metafile: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress metafile: %w", err)
	}

	uid := imageUID(t, data)
	blip := make([]byte, uidSize+metafileHeaderSize, uidSize+metafileHeaderSize+z.Len())
	copy(blip, uid[:])
	h := blip[uidSize:]
	binary.LittleEndian.PutUint32(h[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(h[4:], uint32(bounds.Left))
	binary.LittleEndian.PutUint32(h[8:], uint32(bounds.Top))
	binary.LittleEndian.PutUint32(h[12:], uint32(bounds.Right))
	binary.LittleEndian.PutUint32(h[16:], uint32(bounds.Bottom))
	binary.LittleEndian.PutUint32(h[20:], uint32(size[0]))
	binary.LittleEndian.PutUint32(h[24:], uint32(size[1]))
	binary.LittleEndian.PutUint32(h[28:], uint32(z.Len()))
	h[32] = 0x00 // deflate
	h[33] = 0xFE
	return append(blip, z.Bytes()...), nil
}

// Blip returns the header and payload of the embedded blip record.
func (b *BSE) Blip() (Header, []byte, error) {
	p := b.Payload()
	n := int(b.u8(bseOffNameSize))
	if len(p) < n+HeaderSize {
		return Header{}, nil, newInvalidDataError("BSE at position %d has no embedded image", b.pos)
	}
	p = p[n:]
	h, err := ParseHeader(p)
	if err != nil {
		return Header{}, nil, err
	}
	if HeaderSize+h.Length > len(p) {
		return Header{}, nil, newInvalidDataError("embedded image declares %d bytes, have %d", h.Length, len(p)-HeaderSize)
	}
	return h, p[HeaderSize : HeaderSize+h.Length], nil
}

type metafileInfo struct {
	rawSize    int
	bounds     Rect
	sizeEMU    [2]int32
	compressed bool
}

// imageData returns the picture bytes of the embedded blip, decompressed.
func (b *BSE) imageData() ([]byte, *metafileInfo, error) {
	h, p, err := b.Blip()
	if err != nil {
		return nil, nil, err
	}
	skip := uidSize
	if h.Instance&1 != 0 {
		skip += uidSize
	}
	t := BlipType(h.Tag - TagBlipFirst)
	if !t.IsMetafile() {
		skip++ // tag byte
		if len(p) < skip {
			return nil, nil, newInvalidDataError("bitmap blip has %d bytes", len(p))
		}
		return p[skip:], nil, nil
	}

	if len(p) < skip+metafileHeaderSize {
		return nil, nil, newInvalidDataError("metafile blip has %d bytes", len(p))
	}
	mh := p[skip:]
	info := &metafileInfo{
		rawSize: int(binary.LittleEndian.Uint32(mh[0:])),
		bounds: Rect{
			Left:   int32(binary.LittleEndian.Uint32(mh[4:])),
			Top:    int32(binary.LittleEndian.Uint32(mh[8:])),
			Right:  int32(binary.LittleEndian.Uint32(mh[12:])),
			Bottom: int32(binary.LittleEndian.Uint32(mh[16:])),
		},
		sizeEMU:    [2]int32{int32(binary.LittleEndian.Uint32(mh[20:])), int32(binary.LittleEndian.Uint32(mh[24:]))},
		compressed: mh[32] == 0x00,
	}
	body := mh[metafileHeaderSize:]
	if saved := int(binary.LittleEndian.Uint32(mh[28:])); saved <= len(body) {
		body = body[:saved]
	}
	if !info.compressed {
		return body, info, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, newInvalidDataError("metafile blip: %v", err)
	}
	defer zr.Close()
	// 선언된 원본 크기보다 길게 풀리면 손상된 데이터
	out, err := io.ReadAll(io.LimitReader(zr, int64(info.rawSize)+1))
	if err != nil {
		return nil, nil, newInvalidDataError("metafile blip: %v", err)
	}
	if len(out) > info.rawSize {
		return nil, nil, newInvalidDataError("metafile blip inflates past its declared size %d", info.rawSize)
	}
	return out, info, nil
}

// ImageData returns the picture bytes as stored, decompressed.
func (b *BSE) ImageData() ([]byte, error) {
	data, _, err := b.imageData()
	return data, err
}

// ExportAsStandardImage writes the image as a standalone file of its format:
// bitmaps get a file header, placeable WMF and PICT files get their headers
// back.
func (b *BSE) ExportAsStandardImage(w io.Writer) error {
	h, _, err := b.Blip()
	if err != nil {
		return err
	}
	data, info, err := b.imageData()
	if err != nil {
		return err
	}

	switch t := BlipType(h.Tag - TagBlipFirst); t {
	case BlipEMF, BlipJPEG, BlipCMYKJPEG, BlipPNG, BlipTIFF:
		_, err = w.Write(data)
	case BlipDIB:
		err = writeBitmapFile(w, data)
	case BlipWMF:
		err = writeWMFFile(w, data, info)
	case BlipPICT:
		if _, err = w.Write(make([]byte, pictHeaderSize)); err == nil {
			_, err = w.Write(data)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedImage, t)
	}
	return err
}

// bitmapPixelOffset returns the offset of the pixel data in a DIB: info
// header, color masks and palette.
func bitmapPixelOffset(dib []byte) (int, error) {
	if len(dib) < 12 {
		return 0, newInvalidDataError("DIB header has %d bytes", len(dib))
	}
	hdrSize := int(binary.LittleEndian.Uint32(dib))
	if hdrSize == 12 {
		// BITMAPCOREHEADER: RGBTRIPLE 팔레트
		bits := int(binary.LittleEndian.Uint16(dib[10:]))
		entries := 0
		if bits <= 8 {
			entries = 1 << bits
		}
		return hdrSize + 3*entries, nil
	}
	if hdrSize < 40 || len(dib) < 40 {
		return 0, newInvalidDataError("DIB header size %d", hdrSize)
	}
	bits := int(binary.LittleEndian.Uint16(dib[14:]))
	compression := binary.LittleEndian.Uint32(dib[16:])
	used := int(binary.LittleEndian.Uint32(dib[32:]))
	off := hdrSize
	if hdrSize == 40 && (compression == 3 || compression == 6) {
		off += 12
		if compression == 6 {
			off += 4
		}
	}
	if used == 0 && bits <= 8 {
		used = 1 << bits
	}
	return off + 4*used, nil
}

func writeBitmapFile(w io.Writer, dib []byte) error {
	off, err := bitmapPixelOffset(dib)
	if err != nil {
		return err
	}
	var fh [bitmapFileHeaderSize]byte
	fh[0], fh[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(fh[2:], uint32(bitmapFileHeaderSize+len(dib)))
	binary.LittleEndian.PutUint32(fh[10:], uint32(bitmapFileHeaderSize+off))
	if _, err := w.Write(fh[:]); err != nil {
		return err
	}
	_, err = w.Write(dib)
	return err
}

func writeWMFFile(w io.Writer, data []byte, info *metafileInfo) error {
	var ph [wmfPlaceableSize]byte
	binary.LittleEndian.PutUint32(ph[0:], wmfPlaceableKey)
	bounds := Rect{}
	inch := 1440
	if info != nil {
		bounds = info.bounds
		if width := bounds.Right - bounds.Left; width > 0 && info.sizeEMU[0] > 0 {
			inch = int(math.Round(float64(width) * emuPerInch / float64(info.sizeEMU[0])))
		}
	}
	binary.LittleEndian.PutUint16(ph[6:], uint16(int16(bounds.Left)))
	binary.LittleEndian.PutUint16(ph[8:], uint16(int16(bounds.Top)))
	binary.LittleEndian.PutUint16(ph[10:], uint16(int16(bounds.Right)))
	binary.LittleEndian.PutUint16(ph[12:], uint16(int16(bounds.Bottom)))
	binary.LittleEndian.PutUint16(ph[14:], uint16(inch))
	var sum uint16
	for i := 0; i < 20; i += 2 {
		sum ^= binary.LittleEndian.Uint16(ph[i:])
	}
	binary.LittleEndian.PutUint16(ph[20:], sum)
	if _, err := w.Write(ph[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}
