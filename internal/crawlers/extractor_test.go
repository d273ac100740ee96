package crawlers

import (
	"strings"
	"testing"

	"github.com/sunbid/tendercrawl/internal/models"
)

func TestExtractIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		fragment   string
		wantID     string
		wantMethod models.ExtractionMethod
	}{
		{
			name:       "data-id属性",
			fragment:   `<tr data-id="10086"><td><a href="/n/1">公告一</a></td></tr>`,
			wantID:     "10086",
			wantMethod: models.MethodDataAttr,
		},
		{
			name:       "后代节点上的data-item-id",
			fragment:   `<tr><td data-item-id="N-2024-001"><a href="#">公告二</a></td></tr>`,
			wantID:     "N-2024-001",
			wantMethod: models.MethodDataAttr,
		},
		{
			name:       "data-notice-id属性",
			fragment:   `<div class="notice-item" data-notice-id="abc123">公告三</div>`,
			wantID:     "abc123",
			wantMethod: models.MethodDataAttr,
		},
		{
			name:       "onclick单字符串参数",
			fragment:   `<tr><td onclick="showDetail('55991')">公告四</td></tr>`,
			wantID:     "55991",
			wantMethod: models.MethodOnclickArg,
		},
		{
			name:       "onclick双引号参数",
			fragment:   `<tr onclick='openNotice("77002")'><td>公告五</td></tr>`,
			wantID:     "77002",
			wantMethod: models.MethodOnclickArg,
		},
		{
			name:       "隐藏input字段",
			fragment:   `<tr><td>公告六</td><input type="hidden" value="hid-33"></tr>`,
			wantID:     "hid-33",
			wantMethod: models.MethodHiddenField,
		},
		{
			name:       "data属性优先于onclick",
			fragment:   `<tr data-id="first" onclick="show('second')"><td>公告七</td></tr>`,
			wantID:     "first",
			wantMethod: models.MethodDataAttr,
		},
		{
			name:       "onclick优先于隐藏字段",
			fragment:   `<tr onclick="show('click-id')"><input type="hidden" value="hid-id"><td>公告八</td></tr>`,
			wantID:     "click-id",
			wantMethod: models.MethodOnclickArg,
		},
		{
			name:       "无任何标识",
			fragment:   `<tr><td><a href="/n/9">公告九</a></td></tr>`,
			wantID:     "",
			wantMethod: models.MethodNone,
		},
		{
			name:       "空白data-id视为未命中",
			fragment:   `<tr data-id="  "><td>公告十</td></tr>`,
			wantID:     "",
			wantMethod: models.MethodNone,
		},
		{
			name:       "onclick无字符串参数",
			fragment:   `<tr onclick="refresh()"><td>公告十一</td></tr>`,
			wantID:     "",
			wantMethod: models.MethodNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractIdentifier(tt.fragment)
			if got.SourceItemID != tt.wantID {
				t.Errorf("SourceItemID = %q, want %q", got.SourceItemID, tt.wantID)
			}
			if got.Method != tt.wantMethod {
				t.Errorf("Method = %q, want %q", got.Method, tt.wantMethod)
			}
		})
	}
}

func TestExtractIdentifier_确定性(t *testing.T) {
	fragment := `<tr data-id="x9"><td onclick="show('y1')">标题</td></tr>`
	first := ExtractIdentifier(fragment)
	for i := 0; i < 10; i++ {
		got := ExtractIdentifier(fragment)
		if got != first {
			t.Fatalf("第%d次提取结果不一致: %+v != %+v", i, got, first)
		}
	}
}

func TestExtractIdentifier_表格行片段往返(t *testing.T) {
	// 行片段经列表解析再提取,行根节点上的属性不能丢失
	html := `<table>
		<tr data-id="10086"><td><a href="/n/1">公告一</a></td></tr>
		<tr onclick="showDetail('55991')"><td>公告二</td></tr>
	</table>`

	items := ParseNoticeList(html, "https://bid.example.cn")
	if len(items) != 2 {
		t.Fatalf("条目数 = %d, want 2", len(items))
	}

	first := ExtractIdentifier(items[0].RawFragment)
	if first.SourceItemID != "10086" || first.Method != models.MethodDataAttr {
		t.Errorf("行上data-id丢失: id=%q method=%q", first.SourceItemID, first.Method)
	}

	second := ExtractIdentifier(items[1].RawFragment)
	if second.SourceItemID != "55991" || second.Method != models.MethodOnclickArg {
		t.Errorf("行上onclick丢失: id=%q method=%q", second.SourceItemID, second.Method)
	}
}

func TestParseNoticeList(t *testing.T) {
	html := `<html><body><table>
		<tr><th>标题</th><th>日期</th></tr>
		<tr data-id="1001"><td><a href="/consult/notice/1001">水电站机电安装招标公告</a></td><td>2026-08-20</td></tr>
		<tr><td><a href="https://other.example.com/n/2">输水管线施工招标</a></td><td>2026/08/21</td></tr>
	</table></body></html>`

	items := ParseNoticeList(html, "https://bid.powerchina.cn")
	if len(items) != 2 {
		t.Fatalf("条目数 = %d, want 2", len(items))
	}

	if items[0].Title != "水电站机电安装招标公告" {
		t.Errorf("标题 = %q", items[0].Title)
	}
	if items[0].ListURL != "https://bid.powerchina.cn/consult/notice/1001" {
		t.Errorf("相对链接未补全: %q", items[0].ListURL)
	}
	if items[0].PublishedAt == nil || items[0].PublishedAt.Format("2006-01-02") != "2026-08-20" {
		t.Errorf("日期解析错误: %v", items[0].PublishedAt)
	}
	if !strings.Contains(items[0].RawFragment, `data-id="1001"`) {
		t.Errorf("RawFragment未保留原始属性: %q", items[0].RawFragment)
	}

	if items[1].ListURL != "https://other.example.com/n/2" {
		t.Errorf("绝对链接被改写: %q", items[1].ListURL)
	}
	if items[1].PublishedAt == nil || items[1].PublishedAt.Format("2006-01-02") != "2026-08-21" {
		t.Errorf("斜杠日期解析错误: %v", items[1].PublishedAt)
	}
}

func TestParseNoticeList_无链接行(t *testing.T) {
	html := `<table>
		<tr><th>标题</th><th>日期</th></tr>
		<tr><td>纯JS交互公告</td><td>2026-08-22</td></tr>
	</table>`

	items := ParseNoticeList(html, "https://example.com")
	if len(items) != 1 {
		t.Fatalf("条目数 = %d, want 1 (表头行跳过,无链接行保留)", len(items))
	}
	if items[0].Title != "纯JS交互公告" {
		t.Errorf("标题 = %q (日期应被剔除)", items[0].Title)
	}
	if items[0].ListURL != "" {
		t.Errorf("无链接行不应有URL: %q", items[0].ListURL)
	}
	if items[0].PublishedAt == nil {
		t.Errorf("日期仍应从行内解析")
	}
}

func TestParseNoticeList_列表容器兜底(t *testing.T) {
	html := `<div class="list">
		<div class="notice-item"><a href="/n/1">公告甲</a></div>
		<div class="notice-item"><a href="/n/2">公告乙</a></div>
	</div>`

	items := ParseNoticeList(html, "https://example.com")
	if len(items) != 2 {
		t.Fatalf("条目数 = %d, want 2", len(items))
	}
	if items[0].Title != "公告甲" || items[1].Title != "公告乙" {
		t.Errorf("标题解析错误: %+v", items)
	}
}

func TestParseNoticeList_空页面(t *testing.T) {
	if items := ParseNoticeList("<html><body></body></html>", "https://example.com"); len(items) != 0 {
		t.Errorf("空页面应返回0条, got %d", len(items))
	}
}

func TestParseAPIResponse(t *testing.T) {
	tests := []struct {
		name      string
		data      map[string]interface{}
		wantCount int
		wantTitle string
		wantURL   string
	}{
		{
			name: "data数组信封",
			data: map[string]interface{}{
				"data": []interface{}{
					map[string]interface{}{"title": "公告A", "url": "/n/1"},
				},
			},
			wantCount: 1,
			wantTitle: "公告A",
			wantURL:   "https://bid.example.cn/n/1",
		},
		{
			name: "data.list信封",
			data: map[string]interface{}{
				"data": map[string]interface{}{
					"list": []interface{}{
						map[string]interface{}{"noticeTitle": "公告B", "detailUrl": "https://x.cn/n/2"},
					},
				},
			},
			wantCount: 1,
			wantTitle: "公告B",
			wantURL:   "https://x.cn/n/2",
		},
		{
			name: "data.records信封",
			data: map[string]interface{}{
				"data": map[string]interface{}{
					"records": []interface{}{
						map[string]interface{}{"name": "公告C", "link": "/n/3"},
					},
				},
			},
			wantCount: 1,
			wantTitle: "公告C",
			wantURL:   "https://bid.example.cn/n/3",
		},
		{
			name: "仅ID时按详情路径拼URL",
			data: map[string]interface{}{
				"list": []interface{}{
					map[string]interface{}{"title": "公告D", "noticeId": "9527"},
				},
			},
			wantCount: 1,
			wantTitle: "公告D",
			wantURL:   "https://bid.example.cn/consult/notice/9527",
		},
		{
			name:      "无条目数组",
			data:      map[string]interface{}{"code": float64(0), "msg": "ok"},
			wantCount: 0,
		},
		{
			name: "缺标题的条目被跳过",
			data: map[string]interface{}{
				"data": []interface{}{
					map[string]interface{}{"url": "/n/5"},
					map[string]interface{}{"title": "公告E", "url": "/n/6"},
				},
			},
			wantCount: 1,
			wantTitle: "公告E",
			wantURL:   "https://bid.example.cn/n/6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := ParseAPIResponse(tt.data, "https://bid.example.cn")
			if len(items) != tt.wantCount {
				t.Fatalf("条目数 = %d, want %d", len(items), tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}
			if items[0].Title != tt.wantTitle {
				t.Errorf("标题 = %q, want %q", items[0].Title, tt.wantTitle)
			}
			if items[0].ListURL != tt.wantURL {
				t.Errorf("URL = %q, want %q", items[0].ListURL, tt.wantURL)
			}
		})
	}
}

func TestParseAPIResponse_日期与内容(t *testing.T) {
	data := map[string]interface{}{
		"data": []interface{}{
			map[string]interface{}{
				"title":       "公告F",
				"url":         "/n/7",
				"publishDate": "2026-08-15 10:30:00",
				"content":     "<p>正文片段</p>",
			},
		},
	}
	items := ParseAPIResponse(data, "https://bid.example.cn")
	if len(items) != 1 {
		t.Fatalf("条目数 = %d", len(items))
	}
	if items[0].PublishedAt == nil || items[0].PublishedAt.Format("2006-01-02") != "2026-08-15" {
		t.Errorf("带时间的日期应截断解析: %v", items[0].PublishedAt)
	}
	if items[0].HTMLOrText != "<p>正文片段</p>" {
		t.Errorf("content字段未保留: %q", items[0].HTMLOrText)
	}
}

func TestExtractRawText(t *testing.T) {
	html := `<html><head><title>页面标题</title></head><body>
		<nav>导航</nav>
		<script>var x = 1;</script>
		<div class="notice-content">
			<h1 class="title">某水电站招标公告</h1>
			<p>项目地点:四川省甘孜州</p>
			<p>投标截止时间:2026年9月10日</p>
		</div>
		<footer>页脚</footer>
	</body></html>`

	text := ExtractRawText(html)
	if strings.Contains(text, "var x") {
		t.Errorf("脚本内容未剥离: %q", text)
	}
	if strings.Contains(text, "导航") || strings.Contains(text, "页脚") {
		t.Errorf("导航/页脚未剥离: %q", text)
	}
	if !strings.Contains(text, "项目地点:四川省甘孜州") {
		t.Errorf("正文丢失: %q", text)
	}
	if !strings.Contains(text, "\n") {
		t.Errorf("段落间应保留换行: %q", text)
	}
}

func TestExtractRawText_无内容容器(t *testing.T) {
	html := `<html><body><p>裸正文</p></body></html>`
	if text := ExtractRawText(html); !strings.Contains(text, "裸正文") {
		t.Errorf("body兜底失败: %q", text)
	}
}

func TestExtractDetailTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"class带title的h2", `<h2 class="notice-title">标题甲</h2>`, "标题甲"},
		{"普通h1兜底", `<h1>标题乙</h1>`, "标题乙"},
		{"title标签兜底", `<html><head><title>标题丙</title></head><body></body></html>`, "标题丙"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractDetailTitle(tt.html); got != tt.want {
				t.Errorf("ExtractDetailTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractFields(t *testing.T) {
	text := "项目地点:云南省昆明市\n投标截止时间为2026年9月10日前"
	fields := ExtractFields(text)
	if fields["location"] != "云南省昆明市" {
		t.Errorf("location = %q", fields["location"])
	}
	if fields["deadline"] != "2026年9月10日" {
		t.Errorf("deadline = %q", fields["deadline"])
	}

	if fields := ExtractFields("无关内容"); len(fields) != 0 {
		t.Errorf("无匹配时应返回空map: %v", fields)
	}
}
