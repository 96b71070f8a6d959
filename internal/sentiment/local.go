package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/fanpulse/fanpulse/internal/models"
)

const (
	DEFAULT_SENTIMENT_MODEL = "KnightsAnalytics/distilbert-base-uncased-finetuned-sst-2-english"
	DEFAULT_MODEL_DIR       = "./models"

	// Two-class models have no neutral output; a best score under this band
	// reads as neutral.
	localNeutralBand = 0.60
)

// LocalAnalyzer runs an ONNX sentiment model in-process through hugot. It
// exists for deployments that cannot reach the hosted analyzer at all.
type LocalAnalyzer struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
}

func NewLocalAnalyzer() (*LocalAnalyzer, error) {
	modelDir := os.Getenv("SENTIMENT_MODEL_DIR")
	if modelDir == "" {
		modelDir = DEFAULT_MODEL_DIR
	}
	modelName := os.Getenv("SENTIMENT_MODEL")
	if modelName == "" {
		modelName = DEFAULT_SENTIMENT_MODEL
	}

	if err := os.MkdirAll(modelDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("[LocalAnalyzer] failed to create model directory: %w", err)
	}

	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		slog.Info("[LocalAnalyzer] Model not found, downloading...",
			slog.String("model", modelName))
		downloaded, err := hugot.DownloadModel(modelName, modelDir, hugot.NewDownloadOptions())
		if err != nil {
			return nil, fmt.Errorf("[LocalAnalyzer] failed to download model: %w", err)
		}
		modelPath = downloaded
		slog.Info("[LocalAnalyzer] Model downloaded successfully",
			slog.String("path", modelPath))
	} else {
		slog.Info("[LocalAnalyzer] Using existing model",
			slog.String("path", modelPath))
	}

	session, err := hugot.NewORTSession()
	if err != nil {
		return nil, fmt.Errorf("[LocalAnalyzer] failed to initialize hugot session: %w", err)
	}

	config := hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      "feedbackSentimentPipeline",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("[LocalAnalyzer] failed to initialize sentiment pipeline: %w", err)
	}

	return &LocalAnalyzer{session: session, pipeline: pipeline}, nil
}

func (l *LocalAnalyzer) Name() string { return models.EngineLocal }

func (l *LocalAnalyzer) Close() {
	if l.session != nil {
		l.session.Destroy()
	}
}

func (l *LocalAnalyzer) AnalyzeBatch(ctx context.Context, items []models.FeedbackItem) (map[string]models.AnalysisResult, error) {
	results := make(map[string]models.AnalysisResult, len(items))
	if len(items) == 0 {
		return results, nil
	}
	if ctx.Err() != nil {
		return results, ctx.Err()
	}

	texts := make([]string, 0, len(items))
	for _, item := range items {
		texts = append(texts, CleanCommentText(item.Text))
	}

	output, err := l.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAnalysisUnavailable, err)
	}

	for i, raw := range output.GetOutput() {
		if i >= len(items) {
			break
		}
		classes, ok := raw.([]pipelines.ClassificationOutput)
		if !ok || len(classes) == 0 {
			slog.Warn("[LocalAnalyzer] Unexpected output format from hugot",
				slog.String("source_id", items[i].SourceID))
			continue
		}
		results[items[i].SourceID] = classesToResult(classes)
	}

	return results, nil
}

func classesToResult(classes []pipelines.ClassificationOutput) models.AnalysisResult {
	best := classes[0]
	var scores models.SentimentScores
	for _, class := range classes {
		if class.Score > best.Score {
			best = class
		}
		switch normalizeLabel(class.Label) {
		case models.SentimentPositive:
			scores.Positive = float64(class.Score)
		case models.SentimentNegative:
			scores.Negative = float64(class.Score)
		default:
			scores.Neutral = float64(class.Score)
		}
	}

	label := normalizeLabel(best.Label)
	if float64(best.Score) < localNeutralBand {
		label = models.SentimentNeutral
	}

	return models.AnalysisResult{
		SentimentLabel: label,
		SentimentScore: float64(best.Score),
		Scores:         scores,
		Engine:         models.EngineLocal,
	}
}
