package crawlers

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sunbid/tendercrawl/internal/models"
)

// staticHeaders 测试用头部提供者
type staticHeaders map[string]string

func (h staticHeaders) GetHeaders() (map[string]string, error) {
	return h, nil
}

func testCrawlConfig() models.CrawlConfig {
	return models.CrawlConfig{
		Delay:            0,
		FetchTimeout:     5,
		RenderTimeoutMs:  5000,
		RenderRetries:    0,
		MinContentLength: 10,
		MaxPages:         1,
		MaxWorkers:       1,
	}
}

func newTestFetcher(headers map[string]string) *Fetcher {
	return NewFetcher(testCrawlConfig(), staticHeaders(headers), NewPacer(0))
}

func TestFetcher_成功获取(t *testing.T) {
	page := "<html><body>" + strings.Repeat("内容", 100) + "</body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	result := newTestFetcher(nil).Fetch(context.Background(), server.URL)
	if !result.OK {
		t.Fatalf("OK = false, want true")
	}
	if result.Mode != models.ModeFast {
		t.Errorf("Mode = %q, want requests", result.Mode)
	}
	if result.HTML != page {
		t.Errorf("内容不一致, len = %d, want %d", len(result.HTML), len(page))
	}
}

func TestFetcher_HTTP错误状态(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"服务端错误500", http.StatusInternalServerError},
		{"页面不存在404", http.StatusNotFound},
		{"禁止访问403", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("error page"))
			}))
			defer server.Close()

			result := newTestFetcher(nil).Fetch(context.Background(), server.URL)
			if result.OK {
				t.Errorf("状态码%d应映射为OK=false", tt.status)
			}
		})
	}
}

func TestFetcher_连接失败(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 立即关闭,制造连接拒绝

	result := newTestFetcher(nil).Fetch(context.Background(), server.URL)
	if result.OK {
		t.Errorf("连接失败应映射为OK=false")
	}
}

func TestFetcher_自定义头部透传(t *testing.T) {
	var gotUA, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte("<html>ok page content</html>"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(map[string]string{
		"User-Agent": "TestAgent/1.0",
		"Referer":    "https://bid.example.cn/consult/notice",
	})
	fetcher.Fetch(context.Background(), server.URL)

	if gotUA != "TestAgent/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotReferer != "https://bid.example.cn/consult/notice" {
		t.Errorf("Referer = %q", gotReferer)
	}
}

func TestFetcher_gzip解压(t *testing.T) {
	page := "<html><body>" + strings.Repeat("压缩内容", 200) + "</body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte(page))
		gz.Close()
	}))
	defer server.Close()

	// 手动声明Accept-Encoding,关闭transport自动解压,走自己的解压路径
	fetcher := newTestFetcher(map[string]string{"Accept-Encoding": "gzip, deflate, br"})
	result := fetcher.Fetch(context.Background(), server.URL)

	if !result.OK {
		t.Fatalf("OK = false")
	}
	if result.HTML != page {
		t.Errorf("gzip解压后内容不一致, len = %d, want %d", len(result.HTML), len(page))
	}
}

func TestFetcher_FetchAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" || r.URL.Query().Get("pageSize") != "20" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"list":[{"title":"公告A","url":"/n/1"}]}}`))
	}))
	defer server.Close()

	data, ok := newTestFetcher(nil).FetchAPI(context.Background(), server.URL,
		map[string]string{"page": "1", "pageSize": "20"})
	if !ok {
		t.Fatalf("ok = false")
	}
	items := ParseAPIResponse(data, "https://bid.example.cn")
	if len(items) != 1 || items[0].Title != "公告A" {
		t.Errorf("API响应解析错误: %+v", items)
	}
}

func TestFetcher_FetchAPI非JSON响应(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	if _, ok := newTestFetcher(nil).FetchAPI(context.Background(), server.URL, nil); ok {
		t.Errorf("非JSON响应应返回ok=false")
	}
}

func TestDecompressResponse(t *testing.T) {
	original := []byte("原始响应内容")

	var gzBuf bytes.Buffer
	gz := gzip.NewWriter(&gzBuf)
	gz.Write(original)
	gz.Close()

	tests := []struct {
		name     string
		encoding string
		body     []byte
		want     []byte
	}{
		{"无压缩", "", original, original},
		{"gzip", "gzip", gzBuf.Bytes(), original},
		{"未知编码原样返回", "zstd", original, original},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decompressResponse(tt.encoding, tt.body)
			if err != nil {
				t.Fatalf("decompressResponse() error = %v", err)
			}
			if string(got) != string(tt.want) {
				t.Errorf("内容 = %q, want %q", got, tt.want)
			}
		})
	}
}
