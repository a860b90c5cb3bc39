package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
)

// OpenAIClient implements Client on the OpenAI Assistants API.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates a Client for the OpenAI Assistants API. An empty
// baseURL uses the SDK default.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	opts := []option.RequestOption{}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &OpenAIClient{client: openai.NewClient(opts...)}
}

func (c *OpenAIClient) RetrieveAssistant(ctx context.Context, assistantID string) (string, error) {
	a, err := c.client.Beta.Assistants.Get(ctx, assistantID)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return "", err
	}
	return a.ID, nil
}

func (c *OpenAIClient) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

func (c *OpenAIClient) CreateMessage(ctx context.Context, threadID string, msg chat.Message) (ThreadMessage, error) {
	var role openai.BetaThreadMessageNewParamsRole
	switch msg.Role {
	case chat.RoleUser:
		role = openai.BetaThreadMessageNewParamsRoleUser
	case chat.RoleAssistant:
		role = openai.BetaThreadMessageNewParamsRoleAssistant
	default:
		return ThreadMessage{}, fmt.Errorf("threads do not accept %q messages", msg.Role)
	}

	created, err := c.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role:    role,
		Content: openai.BetaThreadMessageNewParamsContentUnion{OfString: openai.String(msg.Content)},
	})
	if err != nil {
		return ThreadMessage{}, err
	}
	return fromOpenAIMessage(*created), nil
}

func (c *OpenAIClient) CreateRun(ctx context.Context, threadID, assistantID string) (Run, error) {
	run, err := c.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err != nil {
		return Run{}, err
	}
	return fromOpenAIRun(*run), nil
}

func (c *OpenAIClient) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	run, err := c.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return Run{}, err
	}
	return fromOpenAIRun(*run), nil
}

func (c *OpenAIClient) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	var out []ThreadMessage
	iter := c.client.Beta.Threads.Messages.ListAutoPaging(ctx, threadID, openai.BetaThreadMessageListParams{})
	for iter.Next() {
		out = append(out, fromOpenAIMessage(iter.Current()))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OpenAIClient) FileName(ctx context.Context, fileID string) (string, error) {
	f, err := c.client.Files.Get(ctx, fileID)
	if err != nil {
		return "", err
	}
	return f.Filename, nil
}

func fromOpenAIRun(r openai.Run) Run {
	return Run{
		ID:          r.ID,
		ThreadID:    r.ThreadID,
		AssistantID: r.AssistantID,
		Status:      RunStatus(r.Status),
		LastError:   r.LastError.Message,
	}
}

func fromOpenAIMessage(m openai.Message) ThreadMessage {
	out := ThreadMessage{
		ID:          m.ID,
		AssistantID: m.AssistantID,
		ThreadID:    m.ThreadID,
		RunID:       m.RunID,
		Role:        string(m.Role),
		CreatedAt:   time.Unix(m.CreatedAt, 0).UTC(),
		Content:     make([]ContentBlock, 0, len(m.Content)),
	}
	for _, block := range m.Content {
		cb := ContentBlock{Type: block.Type}
		if block.Type == "text" {
			text := &TextContent{Value: block.Text.Value}
			for _, a := range block.Text.Annotations {
				text.Annotations = append(text.Annotations, fromOpenAIAnnotation(a))
			}
			cb.Text = text
		}
		out.Content = append(out.Content, cb)
	}
	return out
}

func fromOpenAIAnnotation(a openai.AnnotationUnion) Annotation {
	ann := Annotation{Text: a.Text, Kind: AnnotationKind(a.Type)}
	switch ann.Kind {
	case AnnotationFileCitation:
		ann.FileID = a.FileCitation.FileID
		// quote is absent from newer API versions' typed models.
		ann.Quote = gjson.Get(a.RawJSON(), "file_citation.quote").String()
	case AnnotationFilePath:
		ann.FileID = a.FilePath.FileID
	}
	return ann
}
