// Package analytics keeps a privacy-first log of site searches. Queries are
// stored with a salted hash of the client IP, never the address itself, and
// are pruned after a retention period.
package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"
)

// Event is one search served by the site.
type Event struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Region    string    `json:"region,omitempty"`
	Rating    string    `json:"rating,omitempty"`
	Tag       string    `json:"tag,omitempty"`
	Category  string    `json:"category,omitempty"`
	Results   int       `json:"results"`
	Status    string    `json:"status"` // success or error
	Source    string    `json:"source"` // api, page or cli
	IPHash    string    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// PopularQuery is a query and how often it was searched.
type PopularQuery struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

const maxQueryLen = 200

// NormalizeQuery lowercases q, collapses inner whitespace and caps its length
// so equal searches group together.
func NormalizeQuery(q string) string {
	q = strings.Join(strings.Fields(strings.ToLower(q)), " ")
	if utf8.RuneCountInString(q) > maxQueryLen {
		q = string([]rune(q)[:maxQueryLen])
	}
	return q
}

// hashIP creates a salted SHA-256 hash of an IP address.
func hashIP(salt, ip string) string {
	h := sha256.New()
	h.Write([]byte(salt + ip))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// IsBot checks if the User-Agent is likely a bot/crawler.
func IsBot(ua string) bool {
	ua = strings.ToLower(ua)
	bots := []string{
		"bot", "crawler", "spider", "crawl", "slurp", "scrape",
		"googlebot", "bingbot", "yandex", "baidu", "duckduckbot",
		"facebookexternalhit", "twitterbot", "linkedinbot",
		"ahrefsbot", "semrushbot", "mj12bot", "dotbot",
	}
	for _, bot := range bots {
		if strings.Contains(ua, bot) {
			return true
		}
	}
	return false
}
