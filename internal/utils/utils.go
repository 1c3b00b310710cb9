package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxErrorBody = 64 * 1024

// DescribeErrorBody turns the body of a failed HTTP response into a short
// message. Google front ends answer with either a JSON error envelope or an
// HTML page, so both are handled.
func DescribeErrorBody(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		return resp.Status
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "json"):
		var envelope struct {
			Error struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
			if envelope.Error.Status != "" {
				return fmt.Sprintf("%s: %s", envelope.Error.Status, envelope.Error.Message)
			}
			return envelope.Error.Message
		}
	case strings.Contains(contentType, "html"):
		if msg := htmlMessage(body); msg != "" {
			return msg
		}
	}

	return truncate(strings.TrimSpace(string(body)), 200)
}

func htmlMessage(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	var detail string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text != "" && !strings.Contains(text, "That’s an error") {
			detail = text
			return false
		}
		return true
	})

	switch {
	case title != "" && detail != "":
		return truncate(title+": "+detail, 200)
	case title != "":
		return title
	default:
		return truncate(detail, 200)
	}
}

// truncate keeps at most n bytes of s without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func FormatBytes(n int64) string {
	switch {
	case n >= 1024*1024*1024:
		return fmt.Sprintf("%.1f GB", float64(n)/(1024*1024*1024))
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func FormatSpeed(bps float64) string {
	switch {
	case bps >= 1024*1024:
		return fmt.Sprintf("%.1f MB/s", bps/(1024*1024))
	case bps >= 1024:
		return fmt.Sprintf("%.1f KB/s", bps/1024)
	default:
		return fmt.Sprintf("%.1f B/s", bps)
	}
}
