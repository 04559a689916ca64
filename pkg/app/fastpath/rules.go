package fastpath

import (
	"regexp"
	"unicode/utf8"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
)

type Rule string

const (
	RuleNone       Rule = ""
	RuleLength     Rule = "length"
	RuleBannedTerm Rule = "banned_term"
	RuleLink       Rule = "link"
)

var linkPattern = regexp.MustCompile(`(?i)https?://[^\s<>"']+`)

// Result is binary to callers. FailedRule is kept for logs and metrics only.
type Result struct {
	Pass       bool
	Reason     string
	FailedRule Rule
}

type Config struct {
	MaxTextLength int
	CheckLinks    bool
}

type Engine struct {
	cfg     Config
	matcher *Matcher
}

func NewEngine(cfg Config, matcher *Matcher) *Engine {
	return &Engine{cfg: cfg, matcher: matcher}
}

// Evaluate applies length, banned-term and link rules in that order and
// stops at the first failure.
func (e *Engine) Evaluate(text string) Result {
	if utf8.RuneCountInString(text) > e.cfg.MaxTextLength {
		return fail(RuleLength)
	}
	if e.matcher != nil && e.matcher.Matches(text) {
		return fail(RuleBannedTerm)
	}
	if e.cfg.CheckLinks && ContainsLink(text) {
		return fail(RuleLink)
	}
	return Result{Pass: true}
}

func ContainsLink(text string) bool {
	return linkPattern.MatchString(text)
}

func fail(rule Rule) Result {
	return Result{
		Pass:       false,
		Reason:     moderation.FastModerationFailMessage,
		FailedRule: rule,
	}
}
