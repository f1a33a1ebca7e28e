// Package config 合并默认值、配置文件、.env 与环境变量，产出 EffectiveConfig。
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/John-Robertt/BoxRec/internal/domain"
)

const (
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingKey 表示缺少必需的 API key。
	ErrCodeMissingKey = domain.ErrCodeConfigMissingKey
)

const (
	// FileName 是工作目录下的可选配置文件。
	FileName = "boxrec.yaml"
	// DotEnvName 是工作目录下的可选 .env 文件。
	DotEnvName = ".env"
	// PathEnvVar 可指定配置文件路径（优先于 FileName）。
	PathEnvVar = "BOXREC_CONFIG"

	DefaultRequestTimeout  = 15 * time.Second
	DefaultOMDbTimeout     = 10 * time.Second
	DefaultMaxWatchedPages = 20
	MaxWatchedPagesLimit   = 100
	DefaultAddr            = "127.0.0.1:8080"
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultLetterboxdURL   = "https://letterboxd.com"
	DefaultOMDbURL         = "http://www.omdbapi.com/"
)

// Config 是分层合并时使用的结构（koanf 标签即 YAML 键路径）。
type Config struct {
	Letterboxd LetterboxdConfig `koanf:"letterboxd"`
	OMDb       OMDbConfig       `koanf:"omdb"`
	OpenAI     OpenAIConfig     `koanf:"openai"`
	HTTP       HTTPConfig       `koanf:"http"`
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
}

type LetterboxdConfig struct {
	URL             string `koanf:"url"`
	MaxWatchedPages int    `koanf:"max_watched_pages"`
}

type OMDbConfig struct {
	APIKey  string        `koanf:"api_key"`
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

type OpenAIConfig struct {
	APIKey string `koanf:"api_key"`
	// URL 为空时使用官方地址。
	URL   string `koanf:"url"`
	Model string `koanf:"model"`
}

type HTTPConfig struct {
	RequestTimeout time.Duration `koanf:"request_timeout"`
	ProxyURL       string        `koanf:"proxy_url"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CLIArgs 是 CLI 能覆盖的少量字段；*Set 记录“是否显式指定”。
type CLIArgs struct {
	Addr string

	MaxWatchedPages    int
	MaxWatchedPagesSet bool
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// Source 是实际读取的配置文件（未使用配置文件时为空）。
	Source string

	LetterboxdURL   string
	MaxWatchedPages int

	OMDbAPIKey  string
	OMDbURL     string
	OMDbTimeout time.Duration

	OpenAIAPIKey string
	OpenAIURL    string
	OpenAIModel  string

	RequestTimeout time.Duration
	ProxyURL       string

	Addr string
	Log  LogConfig
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string // 配置文件路径（可能为空）
	Key  string // 出错的配置键（可能为空）
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Path != "" {
		fmt.Fprintf(&b, "：配置文件 %q", e.Path)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, "：%s", e.Key)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, "：%v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func defaults() Config {
	return Config{
		Letterboxd: LetterboxdConfig{URL: DefaultLetterboxdURL, MaxWatchedPages: DefaultMaxWatchedPages},
		OMDb:       OMDbConfig{URL: DefaultOMDbURL, Timeout: DefaultOMDbTimeout},
		OpenAI:     OpenAIConfig{Model: DefaultOpenAIModel},
		HTTP:       HTTPConfig{RequestTimeout: DefaultRequestTimeout},
		Server:     ServerConfig{Addr: DefaultAddr},
		Log:        LogConfig{Level: "info", Format: "console"},
	}
}

// envKeys 把环境变量名（小写）映射为配置键；未列出的变量一律忽略。
var envKeys = map[string]string{
	"omdb_api_key":             "omdb.api_key",
	"boxrec_omdb_url":          "omdb.url",
	"boxrec_omdb_timeout":      "omdb.timeout",
	"openai_api_key":           "openai.api_key",
	"boxrec_openai_url":        "openai.url",
	"boxrec_openai_model":      "openai.model",
	"boxrec_letterboxd_url":    "letterboxd.url",
	"boxrec_max_watched_pages": "letterboxd.max_watched_pages",
	"boxrec_request_timeout":   "http.request_timeout",
	"boxrec_proxy_url":         "http.proxy_url",
	"boxrec_addr":              "server.addr",
	"log_level":                "log.level",
	"log_format":               "log.format",
}

func envTransform(key string) string {
	return envKeys[strings.ToLower(strings.TrimSpace(key))]
}

// envValue 与 envTransform 相同，但忽略空值（导出为空的变量不覆盖配置文件）。
func envValue(key, value string) (string, any) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	return envTransform(key), value
}

// LoadEffective 按固定优先级合并配置（低 -> 高）：
// 1) 内置默认值
// 2) 配置文件：$BOXREC_CONFIG，否则 <dir>/boxrec.yaml（可选）
// 3) <dir>/.env（可选）
// 4) 进程环境变量
// 5) CLI 参数
func LoadEffective(dir string, cli CLIArgs) (EffectiveConfig, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: err}
	}

	cfgPath, err := findConfigFile(dir)
	if err != nil {
		return EffectiveConfig{}, err
	}
	if cfgPath != "" {
		if err := k.Load(file.Provider(cfgPath), yaml.Parser()); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}

	if err := loadDotEnv(k, filepath.Join(dir, DotEnvName)); err != nil {
		return EffectiveConfig{}, err
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: err}
	}

	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	return merge(c, cli, cfgPath)
}

func findConfigFile(dir string) (string, error) {
	if p := strings.TrimSpace(os.Getenv(PathEnvVar)); p != "" {
		// 显式指定的配置文件必须存在。
		if _, err := os.Stat(p); err != nil {
			return "", &Error{Code: ErrCodeInvalid, Path: p, Key: PathEnvVar, Err: err}
		}
		return p, nil
	}
	p := filepath.Join(dir, FileName)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", &Error{Code: ErrCodeInvalid, Path: p, Err: err}
	}
	return p, nil
}

// loadDotEnv 读取 .env 并按环境变量同样的映射规则写入 k（不修改进程环境）。
func loadDotEnv(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	dk := koanf.New("::")
	if err := dk.Load(file.Provider(path), dotenv.Parser()); err != nil {
		return &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	for name, v := range dk.All() {
		if key, _ := envValue(name, fmt.Sprint(v)); key != "" {
			if err := k.Set(key, v); err != nil {
				return &Error{Code: ErrCodeInvalid, Path: path, Key: name, Err: err}
			}
		}
	}
	return nil
}

func merge(c Config, cli CLIArgs, cfgPath string) (EffectiveConfig, error) {
	invalid := func(key string, err error) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Key: key, Err: err}
	}

	pages := c.Letterboxd.MaxWatchedPages
	if cli.MaxWatchedPagesSet {
		pages = cli.MaxWatchedPages
	}
	// 0 表示使用默认；超出 [1, 100] 截断。
	switch {
	case pages == 0:
		pages = DefaultMaxWatchedPages
	case pages < 1:
		pages = 1
	case pages > MaxWatchedPagesLimit:
		pages = MaxWatchedPagesLimit
	}

	timeout := c.HTTP.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	omdbTimeout := c.OMDb.Timeout
	if omdbTimeout <= 0 {
		omdbTimeout = DefaultOMDbTimeout
	}

	lbURL := strings.TrimRight(strings.TrimSpace(c.Letterboxd.URL), "/")
	if lbURL == "" {
		lbURL = DefaultLetterboxdURL
	}
	if err := validateHTTPURL(lbURL); err != nil {
		return invalid("letterboxd.url", err)
	}
	omdbURL := strings.TrimSpace(c.OMDb.URL)
	if omdbURL == "" {
		omdbURL = DefaultOMDbURL
	}
	if err := validateHTTPURL(omdbURL); err != nil {
		return invalid("omdb.url", err)
	}
	openaiURL := strings.TrimSpace(c.OpenAI.URL)
	if openaiURL != "" {
		if err := validateHTTPURL(openaiURL); err != nil {
			return invalid("openai.url", err)
		}
	}

	proxyURL := strings.TrimSpace(c.HTTP.ProxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Host == "" {
			return invalid("http.proxy_url", fmt.Errorf("无效：%q", proxyURL))
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return invalid("http.proxy_url", fmt.Errorf("不支持的协议：%q", u.Scheme))
		}
	}

	logCfg := LogConfig{
		Level:  strings.ToLower(strings.TrimSpace(c.Log.Level)),
		Format: strings.ToLower(strings.TrimSpace(c.Log.Format)),
	}
	switch logCfg.Level {
	case "":
		logCfg.Level = "info"
	case "trace", "debug", "info", "warn", "warning", "error", "off", "disabled":
	default:
		return invalid("log.level", fmt.Errorf("未知级别：%q", c.Log.Level))
	}
	switch logCfg.Format {
	case "":
		logCfg.Format = "console"
	case "console", "json":
	default:
		return invalid("log.format", fmt.Errorf("只能是 console 或 json，实际是 %q", c.Log.Format))
	}

	addr := strings.TrimSpace(c.Server.Addr)
	if a := strings.TrimSpace(cli.Addr); a != "" {
		addr = a
	}
	if addr == "" {
		addr = DefaultAddr
	}

	model := strings.TrimSpace(c.OpenAI.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}

	openaiKey := strings.TrimSpace(c.OpenAI.APIKey)
	if openaiKey == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingKey, Path: cfgPath, Key: "OPENAI_API_KEY", Err: errors.New("未设置")}
	}

	return EffectiveConfig{
		Source:          cfgPath,
		LetterboxdURL:   lbURL,
		MaxWatchedPages: pages,
		OMDbAPIKey:      strings.TrimSpace(c.OMDb.APIKey),
		OMDbURL:         omdbURL,
		OMDbTimeout:     omdbTimeout,
		OpenAIAPIKey:    openaiKey,
		OpenAIURL:       openaiURL,
		OpenAIModel:     model,
		RequestTimeout:  timeout,
		ProxyURL:        proxyURL,
		Addr:            addr,
		Log:             logCfg,
	}, nil
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("无效：%q", s)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("必须是 http/https：%q", s)
	}
	return nil
}
