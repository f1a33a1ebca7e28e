package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv 清空所有会影响配置的环境变量（测试结束后自动恢复）。
func clearEnv(t *testing.T) {
	t.Helper()
	names := []string{PathEnvVar}
	for k := range envKeys {
		names = append(names, strings.ToUpper(k))
	}
	for _, n := range names {
		t.Setenv(n, "")
		_ = os.Unsetenv(n)
	}
}

func TestLoadEffective_MissingOpenAIKey(t *testing.T) {
	clearEnv(t)

	_, err := LoadEffective(t.TempDir(), CLIArgs{})
	if Code(err) != ErrCodeMissingKey {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeMissingKey, err, Code(err))
	}
}

func TestLoadEffective_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")

	eff, err := LoadEffective(t.TempDir(), CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.MaxWatchedPages != DefaultMaxWatchedPages || eff.RequestTimeout != DefaultRequestTimeout || eff.OMDbTimeout != DefaultOMDbTimeout {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
	if eff.LetterboxdURL != DefaultLetterboxdURL || eff.OMDbURL != DefaultOMDbURL || eff.OpenAIModel != DefaultOpenAIModel || eff.Addr != DefaultAddr {
		t.Fatalf("默认地址不符合预期：%+v", eff)
	}
	if eff.Log.Level != "info" || eff.Log.Format != "console" || eff.Source != "" {
		t.Fatalf("默认日志/来源不符合预期：%+v", eff)
	}
	if eff.OMDbAPIKey != "" {
		t.Fatalf("未配置 OMDb key 时应为空（降级为占位），实际 %q", eff.OMDbAPIKey)
	}
}

func TestLoadEffective_LayerPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), []byte(`
letterboxd:
  max_watched_pages: 7
openai:
  api_key: sk-file
  model: file-model
http:
  request_timeout: 30s
server:
  addr: ":9000"
log:
  format: json
`))
	writeFile(t, filepath.Join(dir, DotEnvName), []byte("OPENAI_API_KEY=sk-dotenv\nBOXREC_OPENAI_MODEL=dotenv-model\nOMDB_API_KEY=omdb-dotenv\nUNRELATED=1\n"))
	t.Setenv("BOXREC_OPENAI_MODEL", "env-model")

	eff, err := LoadEffective(dir, CLIArgs{Addr: "127.0.0.1:7000"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Source != filepath.Join(dir, FileName) {
		t.Fatalf("期望记录配置文件来源，实际 %q", eff.Source)
	}
	if eff.MaxWatchedPages != 7 || eff.RequestTimeout != 30*time.Second || eff.Log.Format != "json" {
		t.Fatalf("配置文件字段未生效：%+v", eff)
	}
	if eff.OpenAIAPIKey != "sk-dotenv" || eff.OMDbAPIKey != "omdb-dotenv" {
		t.Fatalf(".env 应覆盖配置文件：%+v", eff)
	}
	if eff.OpenAIModel != "env-model" {
		t.Fatalf("环境变量应覆盖 .env：%q", eff.OpenAIModel)
	}
	if eff.Addr != "127.0.0.1:7000" {
		t.Fatalf("CLI 应覆盖配置文件：%q", eff.Addr)
	}
}

func TestLoadEffective_EmptyEnvDoesNotOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), []byte("openai:\n  api_key: sk-file\n"))
	t.Setenv("OPENAI_API_KEY", "")

	eff, err := LoadEffective(dir, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.OpenAIAPIKey != "sk-file" {
		t.Fatalf("空环境变量不应覆盖配置文件：%q", eff.OpenAIAPIKey)
	}
}

func TestLoadEffective_ConfigPathEnv(t *testing.T) {
	clearEnv(t)
	p := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, p, []byte("openai:\n  api_key: sk-custom\n"))
	t.Setenv(PathEnvVar, p)

	eff, err := LoadEffective(t.TempDir(), CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.OpenAIAPIKey != "sk-custom" || eff.Source != p {
		t.Fatalf("应读取 %s 指定的文件：%+v", PathEnvVar, eff)
	}

	t.Setenv(PathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadEffective(t.TempDir(), CLIArgs{}); Code(err) != ErrCodeInvalid {
		t.Fatalf("显式指定的文件不存在应报 %q，实际 %v", ErrCodeInvalid, err)
	}
}

func TestLoadEffective_MaxPagesClamp(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk")

	cases := []struct {
		env  string
		cli  *int
		want int
	}{
		{env: "500", want: MaxWatchedPagesLimit},
		{env: "-3", want: 1},
		{env: "0", want: DefaultMaxWatchedPages},
		{env: "5", cli: intPtr(2), want: 2},
	}
	for _, tc := range cases {
		t.Setenv("BOXREC_MAX_WATCHED_PAGES", tc.env)
		cli := CLIArgs{}
		if tc.cli != nil {
			cli.MaxWatchedPages, cli.MaxWatchedPagesSet = *tc.cli, true
		}
		eff, err := LoadEffective(t.TempDir(), cli)
		if err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		if eff.MaxWatchedPages != tc.want {
			t.Fatalf("env=%s 期望 %d，实际 %d", tc.env, tc.want, eff.MaxWatchedPages)
		}
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := map[string]string{
		"BOXREC_LETTERBOXD_URL": "ftp://letterboxd.com",
		"BOXREC_OMDB_URL":       "not a url",
		"BOXREC_PROXY_URL":      "gopher://proxy:1",
		"LOG_FORMAT":            "xml",
		"LOG_LEVEL":             "loud",
	}
	for name, val := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("OPENAI_API_KEY", "sk")
			t.Setenv(name, val)

			_, err := LoadEffective(t.TempDir(), CLIArgs{})
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v", ErrCodeInvalid, err)
			}
		})
	}
}

func TestLoadEffective_BadYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), []byte("openai: [unclosed\n"))

	_, err := LoadEffective(dir, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v", ErrCodeInvalid, err)
	}
}

func TestLoadEffective_NonPositiveTimeoutMeansDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk")
	t.Setenv("BOXREC_REQUEST_TIMEOUT", "0s")

	eff, err := LoadEffective(t.TempDir(), CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.RequestTimeout != DefaultRequestTimeout {
		t.Fatalf("期望默认超时，实际 %v", eff.RequestTimeout)
	}
}

func intPtr(v int) *int { return &v }

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
