// Package app 把 EffectiveConfig 组装为流水线依赖（CLI 与 HTTP 服务共用）。
package app

import (
	"fmt"

	"github.com/John-Robertt/BoxRec/internal/app/recommend"
	"github.com/John-Robertt/BoxRec/internal/config"
	"github.com/John-Robertt/BoxRec/internal/infra/httpx"
	"github.com/John-Robertt/BoxRec/internal/llm/openai"
	"github.com/John-Robertt/BoxRec/internal/logging"
	"github.com/John-Robertt/BoxRec/internal/meta"
	"github.com/John-Robertt/BoxRec/internal/meta/omdb"
	"github.com/John-Robertt/BoxRec/internal/provider/letterboxd"
)

// NewDeps 按配置构造抓取/补全/生成三个协作者。
//
// 未配置 OMDb key 时不报错：补全降级为占位记录（只有标题）。
func NewDeps(eff config.EffectiveConfig) (recommend.Deps, error) {
	scrape, err := httpx.NewScrapeClient(eff.ProxyURL, eff.RequestTimeout)
	if err != nil {
		return recommend.Deps{}, &config.Error{Code: config.ErrCodeInvalid, Key: "http.proxy_url", Err: fmt.Errorf("构造抓取 client 失败：%w", err)}
	}
	api, err := httpx.NewAPIClient(eff.ProxyURL, eff.RequestTimeout)
	if err != nil {
		return recommend.Deps{}, &config.Error{Code: config.ErrCodeInvalid, Key: "http.proxy_url", Err: fmt.Errorf("构造 API client 失败：%w", err)}
	}

	var resolver meta.Resolver = meta.None{}
	if eff.OMDbAPIKey != "" {
		omdbHTTP, err := httpx.NewAPIClient(eff.ProxyURL, eff.OMDbTimeout)
		if err != nil {
			return recommend.Deps{}, &config.Error{Code: config.ErrCodeInvalid, Key: "http.proxy_url", Err: err}
		}
		resolver = omdb.New(eff.OMDbURL, eff.OMDbAPIKey, omdbHTTP)
	} else {
		logging.Named("app").Warn().Msg("OMDB_API_KEY 未设置，元数据补全将只返回标题")
	}

	return recommend.Deps{
		Profile:  letterboxd.Site{BaseURL: eff.LetterboxdURL, Client: scrape},
		Resolver: resolver,
		Generator: openai.New(openai.Options{
			APIKey:  eff.OpenAIAPIKey,
			BaseURL: eff.OpenAIURL,
			Model:   eff.OpenAIModel,
			HTTP:    api,
		}),
		MaxWatchedPages: eff.MaxWatchedPages,
	}, nil
}
