package scraper

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/jobharvest/jobharvest/internal/model"
)

var (
	emailRegex  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	urgentRegex = regexp.MustCompile(`(?i)\b(urgent(?:ly)?|hiring immediately|immediate start|apply now|asap|fast[- ]paced hiring)\b`)
	remoteRegex = regexp.MustCompile(`(?i)\b(remote|work from home|wfh)\b`)

	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	brRegex         = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockCloseRegex = regexp.MustCompile(`(?i)</(p|div|h[1-6]|tr|ul|ol)>`)
	listItemRegex   = regexp.MustCompile(`(?i)<li[^>]*>`)
	boldRegex       = regexp.MustCompile(`(?is)<(b|strong)[^>]*>(.*?)</(b|strong)>`)
	anchorRegex     = regexp.MustCompile(`(?is)<a[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	blankLineRegex  = regexp.MustCompile(`\n{3,}`)
)

// extractEmails pulls distinct email addresses out of a description.
func extractEmails(description string) []string {
	matches := emailRegex.FindAllString(description, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		key := strings.ToLower(m)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}

// countUrgentWords counts urgency phrasing occurrences in a description.
func countUrgentWords(description string) int {
	return len(urgentRegex.FindAllString(description, -1))
}

// mentionsRemote reports remote-work keywords in free text.
func mentionsRemote(text string) bool {
	return remoteRegex.MatchString(text)
}

// htmlToMarkdown renders board HTML as a light markdown: bold, links, and
// list items survive, every other tag collapses into line structure. The
// parse tree is transient; only the flat string is kept.
func htmlToMarkdown(s string) string {
	s = boldRegex.ReplaceAllString(s, "**$2**")
	s = anchorRegex.ReplaceAllString(s, "[$2]($1)")
	s = listItemRegex.ReplaceAllString(s, "\n- ")
	s = brRegex.ReplaceAllString(s, "\n")
	s = blockCloseRegex.ReplaceAllString(s, "\n")
	s = htmlTagRegex.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	s = strings.Join(lines, "\n")
	s = blankLineRegex.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// formatDescription renders raw board HTML per the requested format and
// returns the plain variant used for keyword scans alongside it.
func formatDescription(rawHTML string, format model.DescriptionFormat) (rendered, plain string) {
	plain = htmlToMarkdown(rawHTML)
	if format == model.FormatHTML {
		return rawHTML, plain
	}
	return plain, plain
}

// enrich fills the description-derived fields on a post.
func enrich(job *model.JobPost, plain string) {
	job.Emails = extractEmails(plain)
	job.NumUrgentWords = countUrgentWords(plain)
}

var moneyCleaner = strings.NewReplacer("$", "", "€", "", "£", "", "₪", "", ",", "", " ", "")

// parseMoney parses a currency amount like "$120,000", "50.5K" or "120000.00"
// into whole units. A trailing K multiplies by 1000, so ".5K" is 500.
func parseMoney(s string) (int, bool) {
	s = strings.TrimSpace(moneyCleaner.Replace(s))
	if s == "" {
		return 0, false
	}
	mult := 1.0
	if k := strings.ToUpper(s[len(s)-1:]); k == "K" {
		mult = 1000
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(v * mult), true
}

var salaryRangeRegex = regexp.MustCompile(`([\d.,]+\s*[Kk]?)\s*(?:-|–|to)\s*\$?€?£?₪?\s*([\d.,]+\s*[Kk]?)`)

// parseSalaryRange extracts two currency-parsed numbers around a dash.
func parseSalaryRange(s string) (minAmount, maxAmount int, ok bool) {
	m := salaryRangeRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	lo, okLo := parseMoney(m[1])
	hi, okHi := parseMoney(m[2])
	if !okLo || !okHi {
		return 0, 0, false
	}
	return lo, hi, true
}
