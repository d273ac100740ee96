package crawlers

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sunbid/tendercrawl/internal/models"
	"github.com/sunbid/tendercrawl/internal/utils"
)

// 列表项ID的候选data属性,按优先级排列
var idDataAttrs = []string{"data-id", "data-item-id", "data-notice-id"}

// 内联点击事件中单个字符串参数的模式,如 showDetail('12345')
var onclickArgPattern = regexp.MustCompile(`\w+\(\s*['"]([^'"]+)['"]\s*\)`)

// 列表/正文中的日期模式
var datePattern = regexp.MustCompile(`(\d{4}[-/]\d{1,2}[-/]\d{1,2})`)

// 表格行片段的根标签特征
// HTML5解析器在body上下文中会丢弃孤立的tr/td/th标签,连带丢掉行上的属性,
// 这类片段须先补全table上下文再解析
var rowFragmentPattern = regexp.MustCompile(`(?i)^\s*<(tr|td|th)[\s/>]`)

// idHeuristic 单个ID提取启发式
// 每个启发式相互独立,返回空串表示未命中
type idHeuristic struct {
	method  models.ExtractionMethod
	extract func(doc *goquery.Document) string
}

// ID提取启发式列表,固定优先级,首个命中者胜出
var idHeuristics = []idHeuristic{
	{models.MethodDataAttr, extractFromDataAttr},
	{models.MethodOnclickArg, extractFromOnclick},
	{models.MethodHiddenField, extractFromHiddenField},
}

// ExtractIdentifier 从列表项HTML片段提取源站ID
// 按固定顺序尝试: data属性 → 点击事件参数 → 隐藏字段
// 全部未命中返回Method=none,这是预期内的结果,不是错误
func ExtractIdentifier(fragment string) models.ItemIdentifier {
	if rowFragmentPattern.MatchString(fragment) {
		fragment = "<table><tbody>" + fragment + "</tbody></table>"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return models.ItemIdentifier{Method: models.MethodNone}
	}

	for _, h := range idHeuristics {
		if id := h.extract(doc); id != "" {
			return models.ItemIdentifier{SourceItemID: id, Method: h.method}
		}
	}
	return models.ItemIdentifier{Method: models.MethodNone}
}

// extractFromDataAttr 查找片段根节点或任意后代上的data-id类属性
func extractFromDataAttr(doc *goquery.Document) string {
	var found string
	doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range idDataAttrs {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				found = strings.TrimSpace(v)
				return false
			}
		}
		return true
	})
	return found
}

// extractFromOnclick 从内联点击事件中捕获单字符串参数
func extractFromOnclick(doc *goquery.Document) string {
	var found string
	doc.Find("[onclick]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		handler, _ := s.Attr("onclick")
		if m := onclickArgPattern.FindStringSubmatch(handler); m != nil {
			found = m[1]
			return false
		}
		return true
	})
	return found
}

// extractFromHiddenField 读取片段内嵌套的隐藏input字段值
func extractFromHiddenField(doc *goquery.Document) string {
	var found string
	doc.Find(`input[type=hidden]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("value"); ok && strings.TrimSpace(v) != "" {
			found = strings.TrimSpace(v)
			return false
		}
		return true
	})
	return found
}

// ParseNoticeList 解析公告列表页HTML
// 先找表格行,找不到再尝试常见的列表容器class
func ParseNoticeList(html, baseURL string) []models.ListItem {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		utils.Warnf("解析列表页HTML失败: %v", err)
		return nil
	}

	items := parseRows(doc.Find("tr"), baseURL)
	if len(items) == 0 {
		items = parseRows(doc.Find(".notice-item, .list-item, [class*=notice]"), baseURL)
	}
	return items
}

// parseRows 从行集合解析公告条目
func parseRows(rows *goquery.Selection, baseURL string) []models.ListItem {
	var items []models.ListItem

	rows.Each(func(_ int, row *goquery.Selection) {
		// 表头行跳过
		if row.Find("th").Length() > 0 {
			return
		}

		link := row.Find("a[href]").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			// 无链接的行(纯JS交互的条目)从行文本兜底,剔除日期部分
			text := row.Text()
			if m := datePattern.FindStringSubmatch(text); m != nil {
				text = strings.Replace(text, m[1], "", 1)
			}
			title = strings.TrimSpace(text)
		}
		if title == "" {
			return
		}

		item := models.ListItem{Title: title}

		if href, ok := link.Attr("href"); ok {
			item.ListURL = resolveURL(baseURL, href)
		}

		// 行内查找日期
		if m := datePattern.FindStringSubmatch(row.Text()); m != nil {
			item.PublishedAt = parseDate(m[1])
		}

		if fragment, err := goquery.OuterHtml(row); err == nil {
			item.RawFragment = fragment
		}

		items = append(items, item)
	})

	return items
}

// API响应中各字段的别名,站点不同接口返回的字段名不一致
var (
	titleAliases = []string{"title", "noticeTitle", "name"}
	urlAliases   = []string{"url", "link", "detailUrl"}
	dateAliases  = []string{"publishDate", "createTime", "date", "publishTime"}
	idAliases    = []string{"id", "noticeId", "tenderId"}
)

// ParseAPIResponse 解析列表API响应
// 兼容 data / data.list / data.records / list / records 几种信封结构
func ParseAPIResponse(data map[string]interface{}, baseURL string) []models.ListItem {
	items := extractEnvelopeItems(data)
	if items == nil {
		return nil
	}

	var notices []models.ListItem
	for _, raw := range items {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		item := models.ListItem{
			Title: firstStringField(entry, titleAliases),
		}
		if item.Title == "" {
			continue
		}

		if u := firstStringField(entry, urlAliases); u != "" {
			item.ListURL = resolveURL(baseURL, u)
		}
		if d := firstStringField(entry, dateAliases); d != "" {
			item.PublishedAt = parseDate(truncate(d, 10))
		}
		if content := firstStringField(entry, []string{"content", "summary"}); content != "" {
			item.HTMLOrText = content
		}

		// 无URL但有ID时,按站点详情路径拼出URL
		if item.ListURL == "" {
			if id := firstStringField(entry, idAliases); id != "" {
				item.ListURL = resolveURL(baseURL, "/consult/notice/"+id)
			}
		}

		if item.ListURL == "" {
			continue
		}
		notices = append(notices, item)
	}
	return notices
}

// extractEnvelopeItems 从信封结构中取出条目数组
func extractEnvelopeItems(data map[string]interface{}) []interface{} {
	if v, ok := data["data"]; ok {
		switch d := v.(type) {
		case []interface{}:
			return d
		case map[string]interface{}:
			if list, ok := d["list"].([]interface{}); ok {
				return list
			}
			if records, ok := d["records"].([]interface{}); ok {
				return records
			}
		}
	}
	if list, ok := data["list"].([]interface{}); ok {
		return list
	}
	if records, ok := data["records"].([]interface{}); ok {
		return records
	}
	return nil
}

// firstStringField 按别名顺序取第一个非空字符串字段
func firstStringField(entry map[string]interface{}, aliases []string) string {
	for _, key := range aliases {
		if v, ok := entry[key]; ok {
			switch s := v.(type) {
			case string:
				if strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			case float64:
				return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", s), "0"), ".")
			}
		}
	}
	return ""
}

// parseDate 解析日期字符串,支持 2006-01-02 与 2006/01/02
func parseDate(s string) *time.Time {
	for _, layout := range []string{"2006-01-02", "2006/1/2", "2006/01/02", "2006-1-2"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// resolveURL 将相对链接补全为绝对URL
func resolveURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// truncate 截断字符串
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// 正文标题/内容容器的class特征
var (
	titleClassPattern   = regexp.MustCompile(`(?i)title|head`)
	contentClassPattern = regexp.MustCompile(`(?i)content|detail|main|body`)
)

// ExtractRawText 从详情页HTML提取纯文本正文
// 优先取class带content/detail/main/body的容器,剥离脚本、样式与导航
func ExtractRawText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	content := findByClassPattern(doc, "div,article,section", contentClassPattern)
	if content == nil {
		body := doc.Find("body")
		if body.Length() == 0 {
			return strings.TrimSpace(doc.Text())
		}
		content = body
	}

	content.Find("script,style,nav,header,footer").Remove()
	return nodeText(content)
}

// ExtractDetailTitle 从详情页HTML提取标题,取不到时返回空串
func ExtractDetailTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	if t := findByClassPattern(doc, "h1,h2,h3", titleClassPattern); t != nil {
		return strings.TrimSpace(t.Text())
	}
	if h := doc.Find("h1").First(); h.Length() > 0 {
		return strings.TrimSpace(h.Text())
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// findByClassPattern 查找class匹配模式的第一个元素
func findByClassPattern(doc *goquery.Document, selector string, pattern *regexp.Regexp) *goquery.Selection {
	var found *goquery.Selection
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if class, ok := s.Attr("class"); ok && pattern.MatchString(class) {
			found = s
			return false
		}
		return true
	})
	return found
}

// nodeText 按文本节点逐行拼接,近似原始页面的换行结构
func nodeText(s *goquery.Selection) string {
	var lines []string
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			if t := strings.TrimSpace(c.Text()); t != "" {
				lines = append(lines, t)
			}
			return
		}
		if sub := nodeText(c); sub != "" {
			lines = append(lines, sub)
		}
	})
	return strings.Join(lines, "\n")
}

// 正文关键字段的提取模式
var (
	deadlinePattern = regexp.MustCompile(`(?:截止|截标)[^\d]{0,10}(\d{4}[-/年]\d{1,2}[-/月]\d{1,2}日?)`)
	locationPattern = regexp.MustCompile(`(?:项目地点|工程地点|建设地点)[:：]\s*([^\s,，。;；]+)`)
)

// ExtractFields 从正文提取结构化字段(尽力而为,站点变更时可能为空)
func ExtractFields(rawText string) map[string]string {
	fields := make(map[string]string)
	if m := deadlinePattern.FindStringSubmatch(rawText); m != nil {
		fields["deadline"] = m[1]
	}
	if m := locationPattern.FindStringSubmatch(rawText); m != nil {
		fields["location"] = m[1]
	}
	return fields
}
