package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const captionSystemPrompt = `You describe photographs for a searchable photo library.
Respond with a JSON object with exactly two string fields:
"short" - a caption of at most 8 words.
"detailed" - one or two full sentences describing the scene, subjects and setting.
Do not mention that you are looking at an image.`

// OpenAICaptioner implements Captioner using a vision chat model.
type OpenAICaptioner struct {
	client *openai.Client
	model  string
}

func NewOpenAICaptioner(apiKey, model string) (*OpenAICaptioner, error) {
	if apiKey == "" {
		return nil, errors.New("openai captioner: missing API key")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAICaptioner{client: &client, model: model}, nil
}

func (c *OpenAICaptioner) Name() string {
	return c.model
}

// Caption sends the image to the chat model and parses the JSON reply.
func (c *OpenAICaptioner) Caption(ctx context.Context, imageData []byte) (Caption, error) {
	base64Image := base64.StdEncoding.EncodeToString(imageData)
	imageURL := "data:image/jpeg;base64," + base64Image

	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(captionSystemPrompt),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart("Caption this photo."),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    imageURL,
							Detail: "low",
						}),
					},
				},
			},
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		MaxTokens: openai.Int(300),
	})
	if err != nil {
		return Caption{}, fmt.Errorf("openai captioner: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Caption{}, errors.New("openai captioner: no response choices")
	}

	var caption Caption
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &caption); err != nil {
		return Caption{}, fmt.Errorf("openai captioner: failed to parse response %q: %w", content, err)
	}

	caption.Short = strings.TrimSpace(caption.Short)
	caption.Detailed = strings.TrimSpace(caption.Detailed)
	if caption.Short == "" && caption.Detailed == "" {
		return Caption{}, errors.New("openai captioner: empty caption in response")
	}
	return caption, nil
}

// OpenAIEmbedder implements Embedder using the embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("openai embedder: missing API key")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIEmbedder{client: &client, model: model}, nil
}

func (e *OpenAIEmbedder) Name() string {
	return e.model
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai embedder: no embedding in response")
	}

	raw := resp.Data[0].Embedding
	vector := make([]float32, len(raw))
	for i, v := range raw {
		vector[i] = float32(v)
	}
	return vector, nil
}
