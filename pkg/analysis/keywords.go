package analysis

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"

	"slack-insights/pkg/models"
)

// Markup that carries no vocabulary: mentions, channel links, URLs, emoji
// shortcodes.
var markupPattern = regexp.MustCompile(`<[@#!]?[^>]*>|https?://\S+|:[a-z0-9_+-]+:`)

// defaultStopwords are formal nouns and filler that dominate frequency
// counts without telling the reader anything.
var defaultStopwords = []string{
	"こと", "もの", "よう", "ため", "ところ", "これ", "それ", "あれ",
	"さん", "ちゃん", "くん", "の", "ん", "はず", "とき", "今日", "明日",
	"https", "http", "www", "com",
}

// KeywordExtractor tokenizes message bodies and counts word frequency.
// Japanese text is segmented morphologically, so multi-byte content is
// split into words rather than treated as one whitespace token.
type KeywordExtractor struct {
	tok      *tokenizer.Tokenizer
	stop     map[string]struct{}
	minRunes int
}

// NewKeywordExtractor builds an extractor with the IPA dictionary and the
// default stoplist.
func NewKeywordExtractor(extraStopwords ...string) (*KeywordExtractor, error) {
	tok, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}

	stop := make(map[string]struct{}, len(defaultStopwords)+len(extraStopwords))
	for _, w := range defaultStopwords {
		stop[w] = struct{}{}
	}
	for _, w := range extraStopwords {
		stop[strings.ToLower(w)] = struct{}{}
	}

	return &KeywordExtractor{tok: tok, stop: stop, minRunes: 2}, nil
}

// Extract returns up to limit keywords by descending frequency. Ties are
// broken lexicographically so reports are reproducible.
func (e *KeywordExtractor) Extract(texts []string, limit int) []models.KeywordCount {
	counts := make(map[string]int)

	for _, text := range texts {
		clean := markupPattern.ReplaceAllString(text, " ")
		for _, tok := range e.tok.Tokenize(clean) {
			word, ok := e.keep(tok)
			if !ok {
				continue
			}
			counts[word]++
		}
	}

	keywords := make([]models.KeywordCount, 0, len(counts))
	for word, count := range counts {
		keywords = append(keywords, models.KeywordCount{Word: word, Count: count})
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Count != keywords[j].Count {
			return keywords[i].Count > keywords[j].Count
		}
		return keywords[i].Word < keywords[j].Word
	})

	if limit > 0 && len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

// keep filters a token down to a countable noun.
func (e *KeywordExtractor) keep(tok tokenizer.Token) (string, bool) {
	if tok.Class == tokenizer.DUMMY {
		return "", false
	}

	pos := tok.POS()
	if len(pos) == 0 || pos[0] != "名詞" {
		return "", false
	}
	// Numbers and non-independent nouns are noise, not vocabulary.
	if len(pos) > 1 && (pos[1] == "数" || pos[1] == "非自立" || pos[1] == "代名詞") {
		return "", false
	}

	word := strings.ToLower(strings.TrimSpace(tok.Surface))
	if utf8.RuneCountInString(word) < e.minRunes {
		return "", false
	}
	if _, stopped := e.stop[word]; stopped {
		return "", false
	}
	return word, true
}
