package utils

import "strings"

// botSignatures are matched case-insensitively against the user agent.
// Anything matching is a crawler and never counts as a visit.
var botSignatures = []string{
	"bot",
	"crawl",
	"spider",
	"search",
	"facebook",
	"google",
	"yahoo",
	"bing",
}

// IsBot reports whether the user agent looks like an automated client.
// An empty user agent is treated as a bot.
func IsBot(userAgent string) bool {
	if userAgent == "" {
		return true
	}

	ua := strings.ToLower(userAgent)
	for _, signature := range botSignatures {
		if strings.Contains(ua, signature) {
			return true
		}
	}
	return false
}
