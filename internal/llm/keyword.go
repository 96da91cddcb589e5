package llm

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// minFuzzyLen keeps short words like "ip" or "job" out of fuzzy matching,
// where one edit turns them into unrelated words.
const minFuzzyLen = 4

// KeywordProvider is a lightweight, offline implementation. It tries whole
// keyword matches first, then tolerates typos per word, and otherwise picks
// one of the default replies.
type KeywordProvider struct {
	kb KnowledgeBase
}

func NewKeywordProvider(kb KnowledgeBase) *KeywordProvider {
	return &KeywordProvider{kb: kb}
}

func (p *KeywordProvider) Reply(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q := normalize(message)
	if q == "" {
		return p.kb.Greeting, nil
	}
	if t, ok := p.exactMatch(q); ok {
		return t.Response, nil
	}
	if t, ok := p.fuzzyMatch(q); ok {
		return t.Response, nil
	}
	return p.fallback(q), nil
}

// Match reports which topic a message lands on, for logging and tests.
func (p *KeywordProvider) Match(message string) (string, bool) {
	q := normalize(message)
	if t, ok := p.exactMatch(q); ok {
		return t.Name, true
	}
	if t, ok := p.fuzzyMatch(q); ok {
		return t.Name, true
	}
	return "", false
}

func (p *KeywordProvider) exactMatch(q string) (Topic, bool) {
	padded := " " + q + " "
	for _, t := range p.kb.Topics {
		for _, kw := range t.Keywords {
			if strings.Contains(padded, " "+normalize(kw)+" ") {
				return t, true
			}
		}
	}
	return Topic{}, false
}

// fuzzyMatch scores each topic by how many message words are within a small
// edit distance of one of its keyword words. Ties go to the earlier topic.
func (p *KeywordProvider) fuzzyMatch(q string) (Topic, bool) {
	words := tokens(q)
	best, bestScore := -1, 0
	for i, t := range p.kb.Topics {
		score := 0
		for w := range words {
			if len(w) < minFuzzyLen {
				continue
			}
			if closeToAny(w, t.Keywords) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return Topic{}, false
	}
	return p.kb.Topics[best], true
}

func closeToAny(word string, keywords []string) bool {
	for _, kw := range keywords {
		for kwWord := range tokens(normalize(kw)) {
			if len(kwWord) < minFuzzyLen {
				continue
			}
			if levenshtein.ComputeDistance(word, kwWord) <= maxEdits(kwWord) {
				return true
			}
		}
	}
	return false
}

func maxEdits(word string) int {
	if len(word) <= 5 {
		return 1
	}
	return 2
}

// fallback picks a default reply deterministically from the message.
func (p *KeywordProvider) fallback(q string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(q))
	return p.kb.Defaults[int(h.Sum32()%uint32(len(p.kb.Defaults)))]
}

// normalize lowercases s, turns punctuation into spaces and collapses runs
// of whitespace.
func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func tokens(s string) map[string]struct{} {
	parts := strings.Fields(s)
	out := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		out[p] = struct{}{}
	}
	return out
}
