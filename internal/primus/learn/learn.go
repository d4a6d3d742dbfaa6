// Package learn extracts lightweight facts about the user from raw text with
// a fixed set of pattern rules. It never calls a model; every note it emits
// can be traced to the rule and the span of text that produced it.
//
// Notes have one of two shapes:
//
//	user_like=<topic>          a stated preference
//	belief:<key>=<value>       a first-person fact, e.g. belief:user_location=Tokyo
package learn

import (
	"regexp"
	"strings"
)

// Note tags.
const (
	LikeTag      = "user_like"
	BeliefPrefix = "belief:"
	LocationKey  = "user_location"
)

// Report is what one observation noticed, in rule order.
type Report struct {
	Noted []string
}

// HasLike reports whether any note records a preference. Both the current
// "user_like=" tag and the bare "like=" form are recognised.
func (r Report) HasLike() bool {
	for _, n := range r.Noted {
		if strings.HasPrefix(n, LikeTag+"=") || strings.HasPrefix(n, "like=") {
			return true
		}
	}
	return false
}

// Fact is a key/value pair ready for the belief store.
type Fact struct {
	Key   string
	Value string
}

// Facts converts the report into belief-store entries. Preferences become
// "user_like_<topic>" keys so that several likes can coexist.
func (r Report) Facts() []Fact {
	var out []Fact
	for _, n := range r.Noted {
		tag, value, ok := strings.Cut(n, "=")
		if !ok || value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(tag, BeliefPrefix):
			out = append(out, Fact{Key: strings.TrimPrefix(tag, BeliefPrefix), Value: value})
		case tag == LikeTag || tag == "like":
			out = append(out, Fact{Key: LikeTag + "_" + normalizeKey(value), Value: value})
		}
	}
	return out
}

// rule is one extraction pattern. emit turns a submatch into a note, or ""
// to drop it.
type rule struct {
	re   *regexp.Regexp
	emit func(m []string) string
}

var rules = []rule{
	{
		re: regexp.MustCompile(`(好き|好み)[は|:：]\s*([^\n]+)`),
		emit: func(m []string) string {
			return tagged(LikeTag+"=", m[2])
		},
	},
	{
		re: regexp.MustCompile(`私の(.+?)[は|:：]\s*(.+?)(です|だよ|だ)`),
		emit: func(m []string) string {
			return belief("user_"+normalizeKey(m[1]), m[2])
		},
	},
	{
		re: regexp.MustCompile(`(.+?)に住んでいます`),
		emit: func(m []string) string {
			return belief(LocationKey, m[1])
		},
	},
	{
		re: regexp.MustCompile(`(?i)\bI (?:really )?(?:like|love) ([^\n.!?,]+)`),
		emit: func(m []string) string {
			return tagged(LikeTag+"=", m[1])
		},
	},
	{
		re: regexp.MustCompile(`(?i)\bmy ([a-z][a-z ]{0,30}?) is ([^\n.!?,]+)`),
		emit: func(m []string) string {
			return belief("user_"+normalizeKey(strings.ToLower(m[1])), m[2])
		},
	},
	{
		re: regexp.MustCompile(`(?i)\bI live in ([^\n.!?,]+)`),
		emit: func(m []string) string {
			return belief(LocationKey, m[1])
		},
	},
}

// Observe runs every rule over text. Each rule may fire any number of times;
// captures that are empty after trimming are discarded.
func Observe(text string) Report {
	var noted []string
	for _, r := range rules {
		for _, m := range r.re.FindAllStringSubmatch(text, -1) {
			if n := r.emit(m); n != "" {
				noted = append(noted, n)
			}
		}
	}
	return Report{Noted: noted}
}

func tagged(prefix, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return prefix + value
}

func belief(key, value string) string {
	if key == "user_" {
		return ""
	}
	return tagged(BeliefPrefix+key+"=", value)
}

func normalizeKey(k string) string {
	return strings.ReplaceAll(strings.TrimSpace(k), " ", "_")
}
