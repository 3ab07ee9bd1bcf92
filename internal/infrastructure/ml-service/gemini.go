package ml_service

import (
	"context"
	"fmt"
	"strings"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"google.golang.org/genai"
)

const (
	captionPrompt = "Describe this product in a short, detailed phrase highlighting visual attributes useful for retrieval."
	taskType      = "SEMANTIC_SIMILARITY"
)

// GeminiModel строит эмбеддинг в два шага: vision-модель описывает товар на
// изображении, затем текстовая модель эмбеддингов кодирует это описание.
type GeminiModel struct {
	client         *genai.Client
	visionModel    string
	embeddingModel string
	dim            int32
}

func NewGeminiModel(ctx context.Context, cfg *cfg.GeminiCfg, dim int) (*GeminiModel, error) {
	const op = "GeminiModel.New"

	if cfg.APIKey == "" {
		return nil, e.Wrap(op, fmt.Errorf("%w: GEMINI_API_KEY is required", e.ErrIncorrectEnvVariable))
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &GeminiModel{
		client:         client,
		visionModel:    cfg.VisionModel,
		embeddingModel: cfg.EmbeddingModel,
		dim:            int32(dim),
	}, nil
}

func (g *GeminiModel) Version() string {
	return g.visionModel + "+" + g.embeddingModel
}

func (g *GeminiModel) EmbedImage(ctx context.Context, data []byte, mimeType string) (domain.Vector, error) {
	caption, err := g.caption(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}

	return g.embedText(ctx, caption)
}

func (g *GeminiModel) caption(ctx context.Context, data []byte, mimeType string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(captionPrompt),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.visionModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini caption failed: %w", err)
	}

	caption := strings.TrimSpace(resp.Text())
	if caption == "" {
		return "", e.ErrEmptyCaption
	}

	return caption, nil
}

func (g *GeminiModel) embedText(ctx context.Context, text string) (domain.Vector, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: &g.dim,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, e.ErrEmptyVector
	}

	return domain.VectorFromFloat32(result.Embeddings[0].Values), nil
}
