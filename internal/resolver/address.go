package resolver

import (
	"regexp"
	"strings"
)

var (
	// "Steindamm 71, 20099 Hamburg"
	addressPattern = regexp.MustCompile(`^(.+?),?\s*(\d{5})\s+(.+)$`)
	commaPattern   = regexp.MustCompile(`,\s*`)
)

// FormatAddress 把单行地址拆成 街道 / 邮编 城市 两行
func FormatAddress(address string) string {
	cleaned := strings.Join(strings.Fields(address), " ")
	cleaned = commaPattern.ReplaceAllString(cleaned, ", ")
	cleaned = strings.TrimSpace(cleaned)

	if m := addressPattern.FindStringSubmatch(cleaned); m != nil {
		return strings.TrimSpace(m[1]) + "\n" + m[2] + " " + m[3]
	}
	return cleaned
}

// StripName 去掉地址开头重复的收件人名称
func StripName(address, name string) string {
	address = strings.TrimSpace(address)
	name = strings.TrimSpace(name)
	if address == "" || name == "" {
		return address
	}

	if i := strings.IndexByte(address, '\n'); i >= 0 && strings.TrimSpace(address[:i]) == name {
		return strings.TrimLeft(strings.TrimSpace(address[i+1:]), "\n,- ")
	}
	if len(address) > len(name) && strings.EqualFold(address[:len(name)], name) {
		rest := address[len(name):]
		trimmed := strings.TrimLeft(rest, " \n,-")
		if trimmed != rest {
			return strings.TrimSpace(trimmed)
		}
	}
	return address
}

// ComposeAddress 从街道、邮编、城市拼出单行地址
func ComposeAddress(street, postalCode, city string) string {
	var parts []string
	if s := strings.TrimSpace(street); s != "" {
		parts = append(parts, s)
	}
	if pc := strings.TrimSpace(strings.TrimSpace(postalCode) + " " + strings.TrimSpace(city)); pc != "" {
		parts = append(parts, pc)
	}
	return strings.Join(parts, ", ")
}
