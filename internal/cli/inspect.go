package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/roboco-io/xlsdraw/internal/config"
	"github.com/roboco-io/xlsdraw/internal/escher"
	"github.com/roboco-io/xlsdraw/internal/ir"
	"github.com/roboco-io/xlsdraw/internal/workbook"
	"github.com/spf13/cobra"
)

var (
	inspectOutput      string
	inspectFormat      string
	inspectPrettyPrint bool
	inspectSkipBroken  bool
	inspectPath        string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "드로잉 레이어 검사",
	Long: `XLS 워크북의 드로잉 그룹, 시트별 도형 트리, 이미지 카탈로그를 출력합니다.

출력 형식은 JSON 또는 텍스트(트리)를 지원합니다.
--path로 한 시트의 도형 하나만 선택할 수 있습니다.

경로 문법:
  @이름     이름으로 찾기
  #1025     도형 ID로 찾기
  /1/2      패트리아크 기준 절대 경로
  1/2       앵커 목록 기준 상대 경로

예시:
  xlsdraw inspect book.xls
  xlsdraw inspect book.xls --format json -o drawing.json
  xlsdraw inspect book.xls --path "Sheet1!@Logo"`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectOutput, "output", "o", "", "출력 파일 경로 (기본: stdout)")
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "", "출력 형식 (json, text; 기본: 설정값)")
	inspectCmd.Flags().BoolVar(&inspectPrettyPrint, "pretty", true, "JSON 들여쓰기 적용")
	inspectCmd.Flags().BoolVar(&inspectSkipBroken, "skip-broken", false, "손상된 시트 드로잉 건너뛰기")
	inspectCmd.Flags().StringVar(&inspectPath, "path", "", "선택할 도형 (시트!경로)")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	wb, err := openWorkbook(cmd, args[0], cfg, inspectSkipBroken)
	if err != nil {
		return err
	}
	defer wb.Close()

	doc := wb.Dump(args[0])
	if inspectPath != "" {
		if doc, err = selectShape(doc, inspectPath, wb); err != nil {
			return err
		}
	}

	format := inspectFormat
	if format == "" {
		format = cfg.Output.Format
	}
	pretty := inspectPrettyPrint
	if !cmd.Flags().Changed("pretty") {
		pretty = cfg.Output.Pretty
	}

	output, err := formatOutput(doc, format, pretty)
	if err != nil {
		return fmt.Errorf("출력 포맷팅 실패: %w", err)
	}

	if inspectOutput == "" {
		fmt.Fprint(cmd.OutOrStdout(), output)
		return nil
	}
	if err := os.WriteFile(inspectOutput, []byte(output), 0644); err != nil {
		return fmt.Errorf("파일 저장 실패: %w", err)
	}
	if !rootQuiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "검사 결과 저장: %s\n", inspectOutput)
	}
	return nil
}

func formatOutput(doc *ir.Document, format string, pretty bool) (string, error) {
	switch format {
	case config.FormatJSON:
		var data []byte
		var err error
		if pretty {
			data, err = json.MarshalIndent(doc, "", "  ")
		} else {
			data, err = json.Marshal(doc)
		}
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil

	case config.FormatText:
		var buf bytes.Buffer
		if err := doc.WriteText(&buf); err != nil {
			return "", err
		}
		return buf.String(), nil

	default:
		return "", fmt.Errorf("지원하지 않는 출력 형식: %s", format)
	}
}

// selectShape narrows the document to one shape addressed as "sheet!path".
func selectShape(doc *ir.Document, sel string, wb *workbook.Workbook) (*ir.Document, error) {
	name, path, ok := strings.Cut(sel, "!")
	if !ok {
		return nil, fmt.Errorf("도형 선택은 '시트!경로' 형식이어야 합니다: %s", sel)
	}
	s, ok := wb.Sheet(name)
	if !ok {
		return nil, fmt.Errorf("시트를 찾을 수 없습니다: %s", name)
	}
	if s.Drawing == nil {
		return nil, fmt.Errorf("시트 %q에 드로잉이 없습니다", name)
	}

	c, err := s.Drawing.Find(path)
	if err != nil {
		return nil, fmt.Errorf("도형을 찾을 수 없습니다: %w", err)
	}
	sp, ok := escher.ShapeRecord(c)
	if !ok {
		return nil, fmt.Errorf("%s: 도형 레코드가 없습니다", path)
	}

	out := ir.NewDocument()
	out.Metadata = doc.Metadata
	out.Images = doc.Images
	for _, sheet := range doc.Sheets {
		if sheet.Name != name {
			continue
		}
		if found := findShape(sheet.Shapes, sp.ShapeID()); found != nil {
			out.AddSheet(&ir.Sheet{
				Name:       sheet.Name,
				Kind:       sheet.Kind,
				DrawingID:  sheet.DrawingID,
				ShapeCount: sheet.ShapeCount,
				Shapes:     []*ir.Shape{found},
			})
			return out, nil
		}
	}
	return nil, fmt.Errorf("도형 #%d을 덤프에서 찾을 수 없습니다", sp.ShapeID())
}

func findShape(shapes []*ir.Shape, id uint32) *ir.Shape {
	for _, s := range shapes {
		if s.ID == id {
			return s
		}
		if found := findShape(s.Children, id); found != nil {
			return found
		}
	}
	return nil
}
