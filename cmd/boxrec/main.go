package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/John-Robertt/BoxRec/internal/app"
	"github.com/John-Robertt/BoxRec/internal/app/recommend"
	"github.com/John-Robertt/BoxRec/internal/config"
	"github.com/John-Robertt/BoxRec/internal/domain"
	"github.com/John-Robertt/BoxRec/internal/logging"
	"github.com/John-Robertt/BoxRec/internal/server"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(os.Stdout)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newCLI()
	var code int
	switch args[0] {
	case "recommend":
		code = c.recommendCmd(ctx, args[1:])
	case "serve":
		code = c.serveCmd(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage(os.Stderr)
		code = 2
	}
	if code != 0 {
		stop()
		os.Exit(code)
	}
}

// cli 收拢进程级 I/O，便于在测试里替换。
type cli struct {
	stdout, stderr       io.Writer
	stdoutTTY, stderrTTY bool
	dir                  string

	newDeps func(config.EffectiveConfig) (recommend.Deps, error)
}

func newCLI() *cli {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	return &cli{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		stdoutTTY: isTTY(os.Stdout),
		stderrTTY: isTTY(os.Stderr),
		dir:       dir,
		newDeps:   app.NewDeps,
	}
}

func (c *cli) recommendCmd(ctx context.Context, args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRecommendUsage(c.stdout)
			return 0
		}
	}

	ra, err := parseRecommendArgs(args)
	if err != nil {
		fmt.Fprintf(c.stderr, "参数错误：%v\n\n", err)
		printRecommendUsage(c.stderr)
		return 2
	}

	eff, err := config.LoadEffective(c.dir, config.CLIArgs{
		MaxWatchedPages:    ra.MaxPages,
		MaxWatchedPagesSet: ra.MaxPagesSet,
	})
	if err != nil {
		c.emitError(config.Code(err), err.Error())
		return 1
	}
	logging.Init(logging.Options{Level: eff.Log.Level, Format: eff.Log.Format, Writer: c.stderr})

	deps, err := c.newDeps(eff)
	if err != nil {
		c.emitError(config.Code(err), err.Error())
		return 1
	}

	var obs recommend.Observer
	if w, ok := c.progressWriter(); ok {
		ui := newProgressUI(w)
		ui.PrintConfig(eff)
		defer ui.Close()
		obs = ui
	}

	res, err := recommend.ExecuteWithObserver(ctx, deps, recommend.Request{
		Username:      ra.Username,
		FilterWatched: ra.FilterWatched,
	}, obs)
	if err != nil {
		var e *recommend.Error
		if !errors.As(err, &e) {
			c.emitError("internal", err.Error())
			return 1
		}
		c.emitError(e.Reason, e.Message())
		if e.Reason == domain.ReasonInvalidUsername {
			return 2
		}
		return 1
	}

	c.emitResult(res)
	return 0
}

func (c *cli) serveCmd(ctx context.Context, args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printServeUsage(c.stdout)
			return 0
		}
	}

	addr, err := parseServeArgs(args)
	if err != nil {
		fmt.Fprintf(c.stderr, "参数错误：%v\n\n", err)
		printServeUsage(c.stderr)
		return 2
	}

	eff, err := config.LoadEffective(c.dir, config.CLIArgs{Addr: addr})
	if err != nil {
		fmt.Fprintf(c.stderr, "配置错误：%v\n", err)
		return 1
	}
	logging.Init(logging.Options{Level: eff.Log.Level, Format: eff.Log.Format, Writer: c.stderr})

	deps, err := c.newDeps(eff)
	if err != nil {
		fmt.Fprintf(c.stderr, "初始化失败：%v\n", err)
		return 1
	}

	if err := server.ListenAndServe(ctx, eff.Addr, server.New(deps).Handler()); err != nil {
		fmt.Fprintf(c.stderr, "服务异常退出：%v\n", err)
		return 1
	}
	return 0
}

type recommendArgs struct {
	Username      string
	FilterWatched bool
	MaxPages      int
	MaxPagesSet   bool
}

func parseRecommendArgs(args []string) (recommendArgs, error) {
	ra := recommendArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--filter-watched":
			ra.FilterWatched = true
		case strings.HasPrefix(a, "--filter-watched="):
			v := strings.TrimPrefix(a, "--filter-watched=")
			switch v {
			case "true":
				ra.FilterWatched = true
			case "false":
				ra.FilterWatched = false
			default:
				return recommendArgs{}, fmt.Errorf("--filter-watched 只能是 true 或 false，实际是 %q", v)
			}
		case a == "--max-pages":
			if i+1 >= len(args) {
				return recommendArgs{}, fmt.Errorf("--max-pages 需要一个值")
			}
			i++
			if err := ra.setMaxPages(args[i]); err != nil {
				return recommendArgs{}, err
			}
		case strings.HasPrefix(a, "--max-pages="):
			if err := ra.setMaxPages(strings.TrimPrefix(a, "--max-pages=")); err != nil {
				return recommendArgs{}, err
			}
		case strings.HasPrefix(a, "-"):
			return recommendArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.Username != "" {
				return recommendArgs{}, fmt.Errorf("重复的 username：%q 与 %q", ra.Username, a)
			}
			ra.Username = a
		}
	}

	if strings.TrimSpace(ra.Username) == "" {
		return recommendArgs{}, fmt.Errorf("缺少 username")
	}
	return ra, nil
}

func (ra *recommendArgs) setMaxPages(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return fmt.Errorf("--max-pages 必须是正整数，实际是 %q", v)
	}
	ra.MaxPages, ra.MaxPagesSet = n, true
	return nil
}

func parseServeArgs(args []string) (string, error) {
	addr := ""
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--addr":
			if i+1 >= len(args) {
				return "", fmt.Errorf("--addr 需要一个值")
			}
			i++
			addr = args[i]
		case strings.HasPrefix(a, "--addr="):
			addr = strings.TrimPrefix(a, "--addr=")
		default:
			return "", fmt.Errorf("未知参数 %q", a)
		}
	}
	if addr != "" && !strings.Contains(addr, ":") {
		return "", fmt.Errorf("--addr 必须形如 host:port，实际是 %q", addr)
	}
	return addr, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  boxrec recommend <username> [--filter-watched[=true|false]] [--max-pages N]
  boxrec serve [--addr host:port]

命令：
  recommend  为 Letterboxd 用户生成 6 部推荐影片
  serve      启动 JSON HTTP API（POST /api/recommend）

使用 "boxrec <命令> --help" 查看详细说明。
`)
}

func printRecommendUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  boxrec recommend <username> [--filter-watched[=true|false]] [--max-pages N]

参数：
  --filter-watched  抓取观看记录并排除已看过的影片（不足 6 部时用已看过的补位并标记 seen）
  --max-pages       观看记录最多抓取的页数（默认读配置，内置默认 20，上限 100）
  -h, --help        显示帮助

环境变量：
  OPENAI_API_KEY（必需）、OMDB_API_KEY（可选，未设置时只返回标题）
`)
}

func printServeUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  boxrec serve [--addr host:port]

参数：
  --addr      监听地址（默认读配置 server.addr / BOXREC_ADDR，内置默认 127.0.0.1:8080）
  -h, --help  显示帮助
`)
}

type errorOutput struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// emitError：stdout 非 TTY 时输出一个错误 JSON；人类可读信息始终写 stderr。
func (c *cli) emitError(code, msg string) {
	if code == "" {
		code = "internal"
	}
	if !c.stdoutTTY {
		var out errorOutput
		out.Error.Code, out.Error.Message = code, msg
		_ = json.NewEncoder(c.stdout).Encode(out)
	}
	fmt.Fprintf(c.stderr, "失败：%s: %s\n", code, msg)
}

func (c *cli) emitResult(res domain.Result) {
	if c.stdoutTTY {
		printResult(c.stdout, res)
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 Result JSON（日志/摘要走 stderr）。
	_ = json.NewEncoder(c.stdout).Encode(res)
	fmt.Fprintf(c.stderr, "完成：recommendations=%d backfilled=%d watched=%d pool=%d\n",
		len(res.Recommendations), res.Backfilled, res.WatchedCount, res.PoolSize,
	)
}

func printResult(w io.Writer, res domain.Result) {
	fav := make([]string, 0, len(res.Favorites))
	for _, m := range res.Favorites {
		fav = append(fav, m.Title)
	}
	fmt.Fprintf(w, "%s 的最爱：%s\n", res.Username, strings.Join(fav, ", "))
	fmt.Fprintln(w, "推荐：")
	for i, r := range res.Recommendations {
		line := fmt.Sprintf("  %d. %s", i+1, r.Title)
		if r.Year != "" {
			line += " (" + r.Year + ")"
		}
		if r.Genre != "" {
			line += "  " + r.Genre
		}
		if r.IMDbID != "" {
			line += "  https://www.imdb.com/title/" + r.IMDbID + "/"
		}
		if r.Seen {
			line += "  [已看过，补位]"
		}
		fmt.Fprintln(w, line)
	}
	if res.FilterWatched {
		fmt.Fprintf(w, "观看记录：%d 部；候选池：%d 部；补位：%d 部\n", res.WatchedCount, res.PoolSize, res.Backfilled)
	}
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// progressWriter：进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
func (c *cli) progressWriter() (io.Writer, bool) {
	if c.stderrTTY {
		return c.stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if c.stdoutTTY {
		return c.stdout, true
	}
	return nil, false
}
