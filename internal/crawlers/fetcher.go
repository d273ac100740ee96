package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"github.com/sunbid/tendercrawl/internal/models"
	"github.com/sunbid/tendercrawl/internal/utils"
)

// PageFetcher 轻量页面获取接口
// DetailResolver与Orchestrator通过它发起HTTP请求
type PageFetcher interface {
	// Fetch 获取页面内容,网络错误/超时/HTTP错误状态一律映射为OK=false
	Fetch(ctx context.Context, pageURL string) models.FetchResult
	// FetchAPI 以JSON形式调用接口,返回解析后的对象
	FetchAPI(ctx context.Context, apiURL string, params map[string]string) (map[string]interface{}, bool)
}

// Fetcher 轻量HTTP获取器(基于Colly)
// 不主动限速,调用方通过共享Pacer控制请求节奏
type Fetcher struct {
	config         models.CrawlConfig
	headerProvider models.HeaderProvider
	pacer          *Pacer
	client         *http.Client
}

// NewFetcher 创建HTTP获取器
func NewFetcher(config models.CrawlConfig, headerProvider models.HeaderProvider, pacer *Pacer) *Fetcher {
	// 跳过证书验证,目标站点偶发证书链不完整
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		},
		Timeout: time.Duration(config.FetchTimeout) * time.Second,
	}

	return &Fetcher{
		config:         config,
		headerProvider: headerProvider,
		pacer:          pacer,
		client:         httpClient,
	}
}

// newCollector 创建一次性collector
// 每次请求独立创建,避免Colly内部的访问历史干扰重复抓取
func (f *Fetcher) newCollector() *colly.Collector {
	c := colly.NewCollector()
	c.IgnoreRobotsTxt = true // 站点为SPA,robots对渲染入口无意义
	c.SetClient(f.client)
	c.SetRequestTimeout(time.Duration(f.config.FetchTimeout) * time.Second)

	c.OnRequest(func(r *colly.Request) {
		if f.headerProvider == nil {
			return
		}
		headers, err := f.headerProvider.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
			return
		}
		for name, value := range headers {
			r.Headers.Set(name, value)
		}
	})

	return c
}

// Fetch 获取页面内容
// HTTP错误状态不作为error抛出,统一映射为OK=false
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) models.FetchResult {
	result := models.FetchResult{Mode: models.ModeFast}

	if err := f.pacer.Wait(ctx); err != nil {
		utils.Debugf("[FETCH_MODE=requests] 请求被取消: %s", pageURL)
		return result
	}

	utils.Infof("[FETCH_MODE=requests] 获取页面: %s", pageURL)

	body, status, err := f.doRequest(pageURL)
	if err != nil {
		utils.Warnf("[FETCH_MODE=requests] 获取页面失败 %s: %v", pageURL, err)
		return result
	}
	if status != http.StatusOK {
		utils.Warnf("[FETCH_MODE=requests] 请求失败: %s, 状态码: %d", pageURL, status)
		return result
	}

	result.HTML = string(body)
	result.OK = true
	utils.Infof("[FETCH_MODE=requests] 成功获取 HTML (%d 字符)", len(result.HTML))
	return result
}

// FetchAPI 调用JSON接口
// Content-Type不是JSON时仍尝试解析响应体(站点接口偶尔返回text/html)
func (f *Fetcher) FetchAPI(ctx context.Context, apiURL string, params map[string]string) (map[string]interface{}, bool) {
	if err := f.pacer.Wait(ctx); err != nil {
		return nil, false
	}

	fullURL := apiURL
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		sep := "?"
		if strings.Contains(apiURL, "?") {
			sep = "&"
		}
		fullURL = apiURL + sep + values.Encode()
	}

	body, status, err := f.doRequest(fullURL)
	if err != nil || status != http.StatusOK {
		utils.Debugf("[FETCH_MODE=requests] API 调用失败 %s: 状态码=%d, err=%v", fullURL, status, err)
		return nil, false
	}

	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false
	}
	return data, true
}

// doRequest 执行单次请求,返回解压后的响应体与状态码
func (f *Fetcher) doRequest(pageURL string) ([]byte, int, error) {
	c := f.newCollector()

	var (
		body      []byte
		status    int
		encoding  string
		reqErr    error
		responded bool
	)

	c.OnResponse(func(r *colly.Response) {
		responded = true
		status = r.StatusCode
		encoding = r.Headers.Get("Content-Encoding")
		body = r.Body
	})

	// 非2xx状态进入OnError,但响应体仍然可用
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			responded = true
			status = r.StatusCode
			if r.Headers != nil {
				encoding = r.Headers.Get("Content-Encoding")
			}
			body = r.Body
			return
		}
		reqErr = err
	})

	if err := c.Visit(pageURL); err != nil && reqErr == nil && !responded {
		reqErr = err
	}
	c.Wait()

	if reqErr != nil {
		return nil, 0, reqErr
	}
	if !responded {
		return nil, 0, fmt.Errorf("未收到响应")
	}

	decompressed, err := decompressResponse(encoding, body)
	if err != nil {
		utils.Warnf("解压响应失败 [%s] (编码=%s): %v", pageURL, encoding, err)
		// 解压失败时回退为原始body
		decompressed = body
	}
	return decompressed, status, nil
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
