// Package scoring computes the intent and freshness scores attached to every lead.
// Both scores are fixed-weight heuristics clamped to [MinScore, MaxScore].
package scoring

import (
	"math"
	"strconv"
	"strings"
)

const (
	MinScore = 1
	MaxScore = 100

	baseIntent         = 10
	domainMatchWeight  = 15
	phoneWeight        = 10
	completenessWeight = 20
)

// Seniority levels recognised by NormalizeSeniority.
const (
	SeniorityOwner    = "owner"
	SeniorityFounder  = "founder"
	SeniorityCLevel   = "c_level"
	SeniorityVP       = "vp"
	SeniorityDirector = "director"
	SeniorityManager  = "manager"
	SenioritySenior   = "senior"
	SeniorityEntry    = "entry"
	SeniorityUnknown  = "unknown"
)

var seniorityWeights = map[string]int{
	SeniorityOwner:    30,
	SeniorityFounder:  30,
	SeniorityCLevel:   30,
	SeniorityVP:       25,
	SeniorityDirector: 20,
	SeniorityManager:  12,
	SenioritySenior:   8,
	SeniorityEntry:    3,
}

// seniorityAliases maps whole seniority labels seen in uploads and integrations onto levels.
// Labels here are matched exactly so that titles like "Account Executive" still go through
// the keyword rules.
var seniorityAliases = map[string]string{
	"c-level":        SeniorityCLevel,
	"c level":        SeniorityCLevel,
	"clevel":         SeniorityCLevel,
	"c-suite":        SeniorityCLevel,
	"c suite":        SeniorityCLevel,
	"csuite":         SeniorityCLevel,
	"cxo":            SeniorityCLevel,
	"executive":      SeniorityCLevel,
	"exec":           SeniorityCLevel,
	"vice president": SeniorityVP,
	"vice-president": SeniorityVP,
	"entry-level":    SeniorityEntry,
	"entry level":    SeniorityEntry,
	"co-founder":     SeniorityFounder,
}

var freeMailDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"live.com":       {},
	"icloud.com":     {},
	"me.com":         {},
	"aol.com":        {},
	"proton.me":      {},
	"protonmail.com": {},
	"gmx.com":        {},
	"mail.ru":        {},
	"yandex.ru":      {},
}

// IntentInput carries the lead attributes that feed the intent score.
type IntentInput struct {
	Seniority     string
	Title         string
	CompanySize   string
	Email         string
	CompanyDomain string
	Phone         string
	Completeness  float64
}

// CalculateIntentScore returns the weighted intent score for a lead.
func CalculateIntentScore(in IntentInput) int {
	seniority := ResolveSeniority(in.Seniority, in.Title)

	score := baseIntent
	score += seniorityWeights[seniority]
	score += companySizeWeight(in.CompanySize)
	if EmailMatchesDomain(in.Email, in.CompanyDomain) {
		score += domainMatchWeight
	}
	if strings.TrimSpace(in.Phone) != "" {
		score += phoneWeight
	}

	ratio := math.Max(0, math.Min(1, in.Completeness))
	score += int(math.Round(ratio * completenessWeight))

	return clamp(score)
}

// ResolveSeniority normalizes a seniority label and falls back to the title when the
// label does not name a known level.
func ResolveSeniority(label, title string) string {
	if s := NormalizeSeniority(label); s != SeniorityUnknown {
		return s
	}
	return NormalizeSeniority(title)
}

// NormalizeSeniority maps a free-text title or seniority label to a known level.
func NormalizeSeniority(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return SeniorityUnknown
	}
	if _, ok := seniorityWeights[t]; ok {
		return t
	}
	if s, ok := seniorityAliases[t]; ok {
		return s
	}
	words := strings.FieldsFunc(t, func(r rune) bool {
		return r == ' ' || r == ',' || r == '/' || r == '-' || r == '&' || r == '.'
	})
	has := func(w string) bool {
		for _, x := range words {
			if x == w {
				return true
			}
		}
		return false
	}

	switch {
	case has("owner"), has("proprietor"):
		return SeniorityOwner
	case has("founder"), has("cofounder"), strings.Contains(t, "co-founder"):
		return SeniorityFounder
	case has("chief"), has("ceo"), has("cto"), has("cfo"), has("coo"), has("cmo"), has("cio"), has("cro"),
		has("president") && !strings.Contains(t, "vice president"):
		return SeniorityCLevel
	case has("vp"), has("svp"), has("evp"), strings.Contains(t, "vice president"):
		return SeniorityVP
	case has("director"), has("head"):
		return SeniorityDirector
	case has("manager"), has("lead"), has("supervisor"):
		return SeniorityManager
	case has("senior"), has("sr"), has("principal"), has("staff"):
		return SenioritySenior
	case has("junior"), has("jr"), has("intern"), has("assistant"), has("associate"), has("trainee"):
		return SeniorityEntry
	}
	return SeniorityUnknown
}

// companySizeWeight accepts either a band ("51-200", "5000+") or a raw employee count.
func companySizeWeight(size string) int {
	n, ok := employeeCount(size)
	if !ok {
		return 0
	}
	switch {
	case n <= 0:
		return 0
	case n <= 10:
		return 5
	case n <= 50:
		return 10
	case n <= 200:
		return 15
	case n <= 500:
		return 18
	case n <= 5000:
		return 20
	default:
		return 15
	}
}

func employeeCount(size string) (int, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(size), ",", "")
	if s == "" {
		return 0, false
	}
	if strings.HasSuffix(s, "+") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "+"))
		if err != nil {
			return 0, false
		}
		return n + 1, true
	}
	if i := strings.Index(s, "-"); i > 0 {
		s = s[i+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// EmailMatchesDomain reports whether the email's domain equals the company domain or one
// of its subdomains. Free-mail providers never match.
func EmailMatchesDomain(email, companyDomain string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if _, free := freeMailDomains[domain]; free {
		return false
	}
	company := NormalizeDomain(companyDomain)
	if company == "" {
		return false
	}
	return domain == company || strings.HasSuffix(domain, "."+company)
}

// NormalizeDomain strips scheme, "www." and any path from a website or domain value.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}

// Completeness returns the share of non-blank values among the tracked profile fields.
func Completeness(fields ...string) float64 {
	if len(fields) == 0 {
		return 0
	}
	filled := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			filled++
		}
	}
	return float64(filled) / float64(len(fields))
}

func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
