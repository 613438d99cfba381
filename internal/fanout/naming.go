package fanout

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultFilePrefix 默认输出文件名前缀
const DefaultFilePrefix = "Schreiben"

// maxSegmentLength 文件名单段的最大长度
const maxSegmentLength = 60

var (
	unsafeChars      = regexp.MustCompile(`[^a-zA-Z0-9\-.]+`)
	umlautReplacer   = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "Ä", "Ae", "Ö", "Oe", "Ü", "Ue", "ß", "ss")
	repeatedUnderbar = regexp.MustCompile(`_{2,}`)
)

// FileName 生成 <前缀>_<委托人案号>_<债权人>_<债权人案号>_<序号>.docx，空的段被省略
func FileName(prefix, clientRef, creditor, creditorRef string, position int) string {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultFilePrefix
	}
	var segments []string
	for _, s := range []string{prefix, clientRef, creditor, creditorRef} {
		if cleaned := sanitizeSegment(s); cleaned != "" {
			segments = append(segments, cleaned)
		}
	}
	segments = append(segments, strconv.Itoa(position))
	return strings.Join(segments, "_") + ".docx"
}

func sanitizeSegment(s string) string {
	s = umlautReplacer.Replace(strings.TrimSpace(s))
	s = unsafeChars.ReplaceAllString(s, "_")
	s = repeatedUnderbar.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_.")
	if len(s) > maxSegmentLength {
		s = strings.TrimRight(s[:maxSegmentLength], "_.")
	}
	return s
}
