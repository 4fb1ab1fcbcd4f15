package ir

// ImageBlock represents an image catalog entry.
type ImageBlock struct {
	Position int    `json:"position"`       // 1부터 시작하는 카탈로그 위치
	Format   string `json:"format"`         // PNG, JPEG, EMF, ...
	Ext      string `json:"ext,omitempty"`  // 내보낼 파일 확장자
	UID      string `json:"uid"`            // hex
	RefCount uint32 `json:"ref_count"`      // 참조 수
	Size     int    `json:"size"`           // bytes
	Name     string `json:"name,omitempty"` // 원본 파일 이름
	Path     string `json:"path,omitempty"` // extracted file path
	Data     []byte `json:"-"`              // raw image data (not serialized)
}

// NewImage creates a new image block at the given catalog position.
func NewImage(pos int) *ImageBlock {
	return &ImageBlock{
		Position: pos,
	}
}

// HasData returns true if the image has raw data loaded.
func (img *ImageBlock) HasData() bool {
	return len(img.Data) > 0
}
