// Package present 职位展示用的格式化函数。
package present

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// FormatSalary 格式化薪资区间：$a - $b / From $a / Up to $b / Competitive。
func FormatSalary(start, end *int) string {
	switch {
	case start != nil && *start > 0 && end != nil && *end > 0:
		return fmt.Sprintf("$%s - $%s", groupThousands(*start), groupThousands(*end))
	case start != nil && *start > 0:
		return "From $" + groupThousands(*start)
	case end != nil && *end > 0:
		return "Up to $" + groupThousands(*end)
	default:
		return "Competitive"
	}
}

func groupThousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// Truncate 超过 n 个字符时截断并追加 "..."。
func Truncate(text string, n int) string {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}

// RelativeTime 返回相对时间描述。
func RelativeTime(t, now time.Time) string {
	days := int(now.Sub(t).Hours() / 24)
	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		return fmt.Sprintf("%d weeks ago", days/7)
	default:
		return fmt.Sprintf("%d months ago", days/30)
	}
}

// Excerpt 把 HTML 描述转换为纯文本并截断到 n 个字符，script/style 内容被丢弃。
func Excerpt(raw string, n int) string {
	z := html.NewTokenizer(strings.NewReader(raw))
	var parts []string
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return Truncate(strings.Join(strings.Fields(strings.Join(parts, " ")), " "), n)
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				parts = append(parts, string(z.Text()))
			}
		}
	}
}
