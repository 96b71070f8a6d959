package sentiment

import (
	"context"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"

	"github.com/fanpulse/fanpulse/internal/models"
)

// Compound scores inside (-0.20, 0.20) read as neutral.
const vaderNeutralBand = 0.20

var analyzer = govader.NewSentimentIntensityAnalyzer()

var (
	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tagPattern  = regexp.MustCompile(`<[^>]*>`)
)

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1")
	input = urlPattern.ReplaceAllString(input, "")

	return input
}

// CleanCommentText flattens markdown, strips the HTML it renders to, and
// drops links so VADER only scores the words fans actually wrote.
func CleanCommentText(input string) string {
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plain := tagPattern.ReplaceAllString(string(output), " ")
	plain = strings.Join(strings.Fields(plain), " ")

	return RemoveLinks(plain)
}

// AnalyzeWithVADER scores one comment locally. VADER cannot fail, which is
// what makes it the fallback of last resort.
func AnalyzeWithVADER(text string) models.AnalysisResult {
	plainText := CleanCommentText(text)

	scores := analyzer.PolarityScores(plainText)

	var label string
	var confidence float64
	switch {
	case scores.Compound >= vaderNeutralBand:
		label = models.SentimentPositive
		confidence = scores.Positive
	case scores.Compound <= -vaderNeutralBand:
		label = models.SentimentNegative
		confidence = scores.Negative
	default:
		label = models.SentimentNeutral
		confidence = scores.Neutral
	}

	return models.AnalysisResult{
		SentimentLabel: label,
		SentimentScore: confidence,
		Scores: models.SentimentScores{
			Positive: scores.Positive,
			Neutral:  scores.Neutral,
			Negative: scores.Negative,
		},
		Engine: models.EngineVader,
	}
}

// VaderAnalyzer adapts the local scorer to the Analyzer interface.
type VaderAnalyzer struct{}

func (VaderAnalyzer) Name() string { return models.EngineVader }

func (VaderAnalyzer) AnalyzeBatch(ctx context.Context, items []models.FeedbackItem) (map[string]models.AnalysisResult, error) {
	results := make(map[string]models.AnalysisResult, len(items))
	for _, item := range items {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		results[item.SourceID] = AnalyzeWithVADER(item.Text)
	}
	return results, nil
}
