// Package cli implements the xlsdraw command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roboco-io/xlsdraw/internal/config"
	"github.com/roboco-io/xlsdraw/internal/workbook"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	rootConfigPath string
	rootVerbose    bool
	rootQuiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "xlsdraw",
	Short: "XLS 워크북의 드로잉 레이어 검사 도구",
	Long: `xlsdraw는 BIFF8(.xls) 워크북의 드로잉 레코드(도형, 이미지, 앵커)를
읽고 검사하고 다시 직렬화합니다.

하위 명령:
  inspect    도형 트리와 이미지 카탈로그 출력
  images     포함된 이미지 내보내기
  roundtrip  드로잉 레코드를 다시 저장하여 원본과 비교
  config     설정 관리`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "버전 정보 표시",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "xlsdraw %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "설정 파일 경로 (기본: ~/.xlsdraw/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "상세 출력")
	rootCmd.PersistentFlags().BoolVarP(&rootQuiet, "quiet", "q", false, "조용한 모드")

	rootCmd.AddCommand(versionCmd)
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newConfigLoader() (*config.Loader, error) {
	return config.Resolve(rootConfigPath)
}

func loadConfig() (*config.Config, error) {
	loader, err := newConfigLoader()
	if err != nil {
		return nil, fmt.Errorf("설정 로더 초기화 실패: %w", err)
	}
	cfg, err := loader.LoadValid()
	if err != nil {
		return nil, fmt.Errorf("설정 로드 실패: %w", err)
	}
	return cfg, nil
}

func verbose() bool {
	return !rootQuiet && (rootVerbose || config.Verbose())
}

// newLogger builds the diagnostics logger handed to the workbook loader.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level, _ := config.ParseLevel(cfg.Load.LogLevel)
	switch {
	case rootQuiet:
		level = slog.LevelError
	case verbose():
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openWorkbook loads the drawing layer of an .xls file.
func openWorkbook(cmd *cobra.Command, path string, cfg *config.Config, skipBroken bool) (*workbook.Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("파일을 찾을 수 없습니다: %s", path)
		}
		return nil, err
	}
	ok, err := workbook.IsCompoundFile(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("OLE2 복합 문서가 아닙니다 (xlsx는 지원하지 않음): %s", path)
	}

	if verbose() {
		fmt.Fprintf(cmd.ErrOrStderr(), "입력 파일: %s\n", path)
	}

	opts := workbook.Options{
		Logger:             newLogger(cmd.ErrOrStderr(), cfg),
		SkipBrokenDrawings: skipBroken || cfg.Load.SkipBrokenDrawings,
	}
	wb, err := workbook.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("워크북 로드 실패: %w", err)
	}

	if verbose() {
		fmt.Fprintf(cmd.ErrOrStderr(), "로드 완료: 시트 %d개, 드로잉 %d개\n", len(wb.Sheets), len(wb.Drawings()))
	}
	return wb, nil
}
