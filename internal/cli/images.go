package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/roboco-io/xlsdraw/internal/escher"
	"github.com/roboco-io/xlsdraw/internal/workbook"
	"github.com/spf13/cobra"
)

var (
	imagesDir        string
	imagesList       bool
	imagesSkipBroken bool
)

var imagesCmd = &cobra.Command{
	Use:   "images <file>",
	Short: "포함된 이미지 내보내기",
	Long: `드로잉 그룹의 이미지 카탈로그(BStore)에 있는 이미지를 표준 파일 형식으로
내보냅니다. 메타파일은 압축을 풀고 WMF placeable 헤더, PICT 헤더,
BMP 파일 헤더를 복원합니다.

예시:
  xlsdraw images book.xls
  xlsdraw images book.xls -d ./out
  xlsdraw images book.xls --list`,
	Args: cobra.ExactArgs(1),
	RunE: runImages,
}

func init() {
	imagesCmd.Flags().StringVarP(&imagesDir, "dir", "d", "", "이미지 저장 디렉토리 (기본: 설정값)")
	imagesCmd.Flags().BoolVarP(&imagesList, "list", "l", false, "내보내지 않고 목록만 출력")
	imagesCmd.Flags().BoolVar(&imagesSkipBroken, "skip-broken", false, "손상된 시트 드로잉 건너뛰기")

	rootCmd.AddCommand(imagesCmd)
}

func runImages(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	wb, err := openWorkbook(cmd, args[0], cfg, imagesSkipBroken)
	if err != nil {
		return err
	}
	defer wb.Close()

	store := imageStore(wb)
	if store == nil || store.Count() == 0 {
		if !rootQuiet {
			fmt.Fprintln(cmd.ErrOrStderr(), "이미지가 없습니다")
		}
		return nil
	}

	if imagesList {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "위치\t형식\t크기\t참조\t이름")
		for _, b := range store.Entries() {
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", b.Position(), b.BlipType(), len(b.Payload()), b.RefCount(), b.Name())
		}
		return w.Flush()
	}

	dir := imagesDir
	if dir == "" {
		dir = cfg.Images.Dir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("디렉토리 생성 실패: %w", err)
	}

	exported := 0
	for _, b := range store.Entries() {
		path := filepath.Join(dir, imageFileName(b))
		if err := exportImage(store, b.Position(), path); err != nil {
			if !rootQuiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "이미지 %d 건너뜀: %v\n", b.Position(), err)
			}
			continue
		}
		exported++
		if verbose() {
			fmt.Fprintf(cmd.ErrOrStderr(), "저장: %s\n", path)
		}
	}

	if !rootQuiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "이미지 %d/%d개 내보냄: %s\n", exported, store.Count(), dir)
	}
	return nil
}

func imageStore(wb *workbook.Workbook) *escher.BStore {
	if wb.Group == nil {
		return nil
	}
	return wb.Group.Cache.BStore()
}

func imageFileName(b *escher.BSE) string {
	return fmt.Sprintf("image%03d%s", b.Position(), b.BlipType().Ext())
}

func exportImage(store *escher.BStore, pos int, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := store.Export(pos, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
