package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/roboco-io/xlsdraw/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "설정 관리",
	Long: `xlsdraw 설정을 관리합니다.

설정 파일 위치: ~/.xlsdraw/config.yaml

하위 명령:
  show    현재 설정 표시
  init    기본 설정 파일 생성
  set     설정 값 변경
  path    설정 파일 경로 표시`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "현재 설정 표시",
	Long: `현재 적용된 설정을 표시합니다.

설정 파일이 없으면 기본값이 표시됩니다.`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "기본 설정 파일 생성",
	Long: `기본 설정 파일을 ~/.xlsdraw/config.yaml에 생성합니다.

이미 설정 파일이 있는 경우 오류가 발생합니다.
기존 파일을 덮어쓰려면 --force 플래그를 사용하세요.`,
	RunE: runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "설정 값 변경",
	Long: `설정 값을 변경합니다.

지원하는 키:
  output.format               inspect 출력 형식 (json, text)
  output.pretty               JSON 들여쓰기 (true, false)
  images.dir                  이미지 저장 디렉토리
  load.skip_broken_drawings   손상된 시트 드로잉 건너뛰기 (true, false)
  load.log_level              진단 로그 수준 (debug, info, warn, error)

예시:
  xlsdraw config set output.format json
  xlsdraw config set load.skip_broken_drawings true`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "설정 파일 경로 표시",
	Run: func(cmd *cobra.Command, args []string) {
		loader, err := newConfigLoader()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "오류: %v\n", err)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), loader.ConfigPath())
	},
}

var configForce bool

var configKeys = []string{
	"output.format",
	"output.pretty",
	"images.dir",
	"load.skip_broken_drawings",
	"load.log_level",
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "기존 설정 파일 덮어쓰기")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	loader, err := newConfigLoader()
	if err != nil {
		return fmt.Errorf("설정 로더 초기화 실패: %w", err)
	}

	cfg, err := loader.LoadRaw()
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}

	if loader.Exists() {
		fmt.Fprintf(cmd.OutOrStdout(), "설정 파일: %s (%s)\n\n", loader.ConfigPath(), loader.Source())
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "설정 파일: (기본값 사용)\n\n")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("설정 출력 실패: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	fmt.Fprintln(cmd.OutOrStdout(), "환경 변수:")
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	envVars := []struct {
		key   string
		desc  string
		value string
	}{
		{config.EnvConfigPath, "설정 파일 경로", os.Getenv(config.EnvConfigPath)},
		{config.EnvVerbose, "상세 출력", os.Getenv(config.EnvVerbose)},
	}
	for _, ev := range envVars {
		status := "(미설정)"
		if ev.value != "" {
			status = ev.value
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\n", ev.key, ev.desc, status)
	}
	return w.Flush()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	loader, err := newConfigLoader()
	if err != nil {
		return fmt.Errorf("설정 로더 초기화 실패: %w", err)
	}

	if loader.Exists() && !configForce {
		return fmt.Errorf("설정 파일이 이미 존재합니다: %s\n덮어쓰려면 --force 플래그를 사용하세요", loader.ConfigPath())
	}

	if err := loader.Save(config.DefaultConfig()); err != nil {
		return fmt.Errorf("설정 파일 생성 실패: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "설정 파일 생성됨: %s\n", loader.ConfigPath())
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	loader, err := newConfigLoader()
	if err != nil {
		return fmt.Errorf("설정 로더 초기화 실패: %w", err)
	}

	cfg, err := loader.LoadRaw()
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}

	if err := setConfigValue(cfg, key, value); err != nil {
		return err
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("설정 저장 실패: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "설정 변경됨: %s = %s\n", key, value)
	return nil
}

func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "output.format":
		validFormats := []string{config.FormatJSON, config.FormatText}
		if !contains(validFormats, value) {
			return fmt.Errorf("유효하지 않은 출력 형식: %s (지원: %s)", value, strings.Join(validFormats, ", "))
		}
		cfg.Output.Format = value

	case "output.pretty":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("유효하지 않은 값: %s (true, false)", value)
		}
		cfg.Output.Pretty = b

	case "images.dir":
		if value == "" {
			return fmt.Errorf("이미지 디렉토리가 비어 있습니다")
		}
		cfg.Images.Dir = value

	case "load.skip_broken_drawings":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("유효하지 않은 값: %s (true, false)", value)
		}
		cfg.Load.SkipBrokenDrawings = b

	case "load.log_level":
		if _, err := config.ParseLevel(value); err != nil {
			return fmt.Errorf("유효하지 않은 로그 수준: %s (지원: debug, info, warn, error)", value)
		}
		cfg.Load.LogLevel = strings.ToLower(value)

	default:
		return fmt.Errorf("알 수 없는 설정 키: %s\n지원하는 키: %s", key, strings.Join(configKeys, ", "))
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
