package content

import (
	"regexp"
	"strings"
)

var (
	nonSlugChars   = regexp.MustCompile(`[^a-z0-9\-]`)
	nonAlnum       = regexp.MustCompile(`[^a-zA-Z0-9]`)
	dashRuns       = regexp.MustCompile(`-+`)
	htmlTags       = regexp.MustCompile(`<[^>]*>`)
	firstImageAttr = regexp.MustCompile(`<img[^>]+src=["'](.*?)["']`)
)

const excerptLength = 150

// Slugify 把标题转换为 URL slug：小写，空格变 '-'，去掉其他字符
func Slugify(text string) string {
	s := strings.ReplaceAll(strings.ToLower(text), " ", "-")
	s = nonSlugChars.ReplaceAllString(s, "")
	s = dashRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// GenerateExcerpt 去掉 HTML 标签后截取前 150 个字符，在单词边界处截断
func GenerateExcerpt(html string) string {
	plain := htmlTags.ReplaceAllString(html, "")
	runes := []rune(plain)
	if len(runes) <= excerptLength {
		return plain
	}
	cut := string(runes[:excerptLength])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

// ExtractFirstImage 返回 HTML 中第一张图片的 src
func ExtractFirstImage(html string) string {
	m := firstImageAttr.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return m[1]
}

// GenerateEventID 由活动名称与日期（YYYY-MM-DD）生成 ID：
// 名称小写后非字母数字替换为 '-'，合并连续 '-'，截取前 30 个字符并去掉首尾 '-'，
// 再拼接去掉 '-' 的日期。
func GenerateEventID(name, eventDate string) string {
	part := nonAlnum.ReplaceAllString(strings.ToLower(name), "-")
	part = dashRuns.ReplaceAllString(part, "-")
	if len(part) > 30 {
		part = part[:30]
	}
	part = strings.Trim(part, "-")
	return part + "-" + strings.ReplaceAll(eventDate, "-", "")
}
