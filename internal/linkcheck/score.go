package linkcheck

import (
	"net/url"
	"strings"

	"example.com/quest/internal/domain"
)

var shortenerHosts = map[string]struct{}{
	"bit.ly":      {},
	"tinyurl.com": {},
	"t.co":        {},
	"goo.gl":      {},
	"is.gd":       {},
	"cutt.ly":     {},
	"rebrand.ly":  {},
	"shorturl.at": {},
	"rb.gy":       {},
}

// collabDomain describes a recognized collaboration host: a small score bonus
// plus a contextual tip nudging the participant toward shareable proof.
type collabDomain struct {
	suffix string
	bonus  int
	tip    string
	signal string
}

var collabDomains = []collabDomain{
	{"docs.google.com", 8, "Google Docs links are great proof; make sure sharing is set to 'anyone with the link'.", "collab:google-docs"},
	{"drive.google.com", 8, "Check the Drive file is shared so reviewers can open it.", "collab:google-drive"},
	{"linkedin.com", 8, "LinkedIn posts are strong public proof of outreach.", "collab:linkedin"},
	{"notion.so", 6, "Publish the Notion page so it opens without login.", "collab:notion"},
	{"notion.site", 6, "Publish the Notion page so it opens without login.", "collab:notion"},
	{"github.com", 6, "Link to a specific commit or README so reviewers see your work.", "collab:github"},
	{"gitlab.com", 6, "Link to a specific commit or README so reviewers see your work.", "collab:gitlab"},
}

func isShortener(host string) bool {
	_, ok := shortenerHosts[strings.ToLower(host)]
	return ok
}

func matchCollab(host string) *collabDomain {
	host = strings.ToLower(host)
	for i := range collabDomains {
		d := &collabDomains[i]
		if host == d.suffix || strings.HasSuffix(host, "."+d.suffix) {
			return d
		}
	}
	return nil
}

const smallPayloadBytes = 600

// score applies the heuristic model from a base of 50 and clamps to [0,100].
func score(final *url.URL, probe probeResult, shortened bool) domain.ScoreResult {
	total := 50
	var tips, signals []string

	if final.Scheme == "https" {
		total += 5
		signals = append(signals, "https")
	} else {
		tips = append(tips, "Prefer an https link; plain http looks less trustworthy.")
	}

	if shortened {
		total -= 25
		signals = append(signals, "shortener")
		tips = append(tips, "Submit the destination link directly instead of a shortener.")
	}

	if probe.status == 0 || probe.status >= 400 {
		total -= 40
		signals = append(signals, "unreachable")
		tips = append(tips, "The link did not respond; double-check it opens in a private browser window.")
	} else {
		signals = append(signals, "reachable")
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(probe.contentType, ";", 2)[0]))
	switch {
	case mediaType == "text/html" || mediaType == "application/pdf":
		total += 10
		signals = append(signals, "content:"+mediaType)
	case mediaType == "" || recognizedType(mediaType):
		// neutral
	default:
		total -= 5
		signals = append(signals, "content:unrecognized")
	}

	if probe.contentLength >= 0 && probe.contentLength < smallPayloadBytes {
		total -= 10
		signals = append(signals, "small_payload")
	}

	if d := matchCollab(final.Hostname()); d != nil {
		total += d.bonus
		signals = append(signals, d.signal)
		tips = append(tips, d.tip)
	}

	clamped := domain.ClampScore(total)
	return domain.ScoreResult{
		Score:   clamped,
		Label:   domain.LabelFor(clamped),
		Tips:    tips,
		Signals: signals,
		Meta: map[string]any{
			"final_url":      final.String(),
			"status":         probe.status,
			"content_type":   probe.contentType,
			"content_length": probe.contentLength,
			"redirects":      probe.redirects,
		},
	}
}

func recognizedType(mediaType string) bool {
	if strings.HasPrefix(mediaType, "text/") || strings.HasPrefix(mediaType, "image/") {
		return true
	}
	switch mediaType {
	case "application/json", "application/xhtml+xml":
		return true
	}
	return false
}
