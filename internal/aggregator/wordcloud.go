package aggregator

import (
	"sort"
	"strings"
	"unicode"
)

const wordCloudSize = 10

var stopwords = func() map[string]struct{} {
	words := strings.Fields(`a about above after again against all also am an and any are aren't
		as at be because been before being below between both but by can can't cannot com could
		couldn't did didn't do does doesn't doing don't down during each else ever few for from
		further get had hadn't has hasn't have haven't having he he'd he'll he's her here here's
		hers herself him himself his how how's http https i i'd i'll i'm i've if in into is isn't
		it it's its itself just let's like me more most mustn't my myself no nor not of off on
		once only or other otherwise ought our ours ourselves out over own same shall shan't she
		she'd she'll she's should shouldn't since so some such than that that's the their theirs
		them themselves then there there's these they they'd they'll they're they've this those
		through to too under until up very was wasn't we we'd we'll we're we've were weren't what
		what's when when's where where's which while who who's whom why why's with won't would
		wouldn't www you you'd you'll you're you've your yours yourself yourselves`)
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}()

// BuildWordCloud returns the most frequent meaningful words across the given
// comment texts, at most ten. Ties break toward the lexicographically
// smaller word so rebuilds are stable.
func BuildWordCloud(texts []string) []string {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, token := range strings.Fields(strings.ToLower(text)) {
			word := strings.TrimFunc(token, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsNumber(r)
			})
			if len(word) < 2 {
				continue
			}
			if _, stop := stopwords[word]; stop {
				continue
			}
			counts[word]++
		}
	}

	type wordCount struct {
		word  string
		count int
	}
	ranked := make([]wordCount, 0, len(counts))
	for word, count := range counts {
		ranked = append(ranked, wordCount{word, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	if len(ranked) > wordCloudSize {
		ranked = ranked[:wordCloudSize]
	}
	words := make([]string, 0, len(ranked))
	for _, wc := range ranked {
		words = append(words, wc.word)
	}
	return words
}
