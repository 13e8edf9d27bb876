package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"thumbexpert/internal/apperror"
	"thumbexpert/internal/catalog"
	"thumbexpert/internal/gemini"
	"thumbexpert/internal/model"
	"thumbexpert/internal/prompt"
)

var ErrScoreOutOfRange = fmt.Errorf("%w: score must be between 0 and 100", ErrInvalidResponse)

type CatchphraseRequest struct {
	Topic     string
	Audience  string
	Tone      catalog.TextTone
	TextStyle catalog.TextStyle
	Premium   bool
}

func (o *Orchestrator) Catchphrases(ctx context.Context, req CatchphraseRequest) ([]string, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, apperror.ValidationFailed("topic", "a topic is required")
	}
	p, n := prompt.Catchphrases(req.Topic, req.Audience, req.Tone, req.TextStyle, req.Premium)

	var out struct {
		Catchphrases []string `json:"catchphrases"`
	}
	err := o.callJSON(ctx, "catchphrases", gemini.Request{
		Prompt: p,
		Schema: stringListSchema("catchphrases", fmt.Sprintf("An array of %d catchphrases.", n)),
	}, &out)
	if err != nil {
		o.logger.Error("catchphrase suggestion failed", "err", err)
		return nil, apperror.Upstream(msgCatchphrases, err)
	}
	if out.Catchphrases == nil {
		return []string{}, nil
	}
	return out.Catchphrases, nil
}

func (o *Orchestrator) Titles(ctx context.Context, topic string) ([]string, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, apperror.ValidationFailed("topic", "a topic is required")
	}

	var out struct {
		Titles []string `json:"titles"`
	}
	err := o.callJSON(ctx, "titles", gemini.Request{
		Prompt: prompt.Titles(topic),
		Schema: stringListSchema("titles", "An array of 5 YouTube titles."),
	}, &out)
	if err != nil {
		o.logger.Error("title suggestion failed", "err", err)
		return nil, apperror.Upstream(msgTitles, err)
	}
	if out.Titles == nil {
		return []string{}, nil
	}
	return out.Titles, nil
}

// EstimateCTR scores a thumbnail for a title. The score must be an integer in 0..100
// and feedback must be present.
func (o *Orchestrator) EstimateCTR(ctx context.Context, image, title string) (model.CTRScore, error) {
	refs, err := o.inline(ctx, "image", []string{image})
	if err != nil {
		return model.CTRScore{}, err
	}
	if strings.TrimSpace(title) == "" {
		return model.CTRScore{}, apperror.ValidationFailed("title", "a title is required")
	}

	var out struct {
		Score    *int     `json:"score"`
		Feedback []string `json:"feedback"`
	}
	err = o.callJSON(ctx, "ctr", gemini.Request{
		Prompt: prompt.CTR(title),
		Images: refs,
		Schema: &gemini.Schema{
			Type: gemini.TypeObject,
			Properties: map[string]*gemini.Schema{
				"score": {Type: gemini.TypeInteger, Description: "Estimated CTR score out of 100."},
				"feedback": {
					Type:        gemini.TypeArray,
					Description: "A list of 2-3 actionable suggestions for improvement.",
					Items:       &gemini.Schema{Type: gemini.TypeString},
				},
			},
			Required: []string{"score", "feedback"},
		},
	}, &out)
	if err == nil {
		err = checkCTR(out.Score, out.Feedback)
	}
	if err != nil {
		o.logger.Error("ctr estimate failed", "err", err)
		return model.CTRScore{}, apperror.Upstream(msgCTR, err)
	}
	return model.CTRScore{Score: *out.Score, Feedback: out.Feedback}, nil
}

func checkCTR(score *int, feedback []string) error {
	if score == nil || feedback == nil {
		return ErrInvalidResponse
	}
	if *score < 0 || *score > 100 {
		return ErrScoreOutOfRange
	}
	return nil
}

// Bulk suggests one catchphrase per item. Failures never abort the batch; results keep input order.
func (o *Orchestrator) Bulk(ctx context.Context, items []model.BulkItem) []model.BulkResult {
	results := make([]model.BulkResult, len(items))

	var eg errgroup.Group
	if o.bulkMax > 0 {
		eg.SetLimit(o.bulkMax)
	}
	for i, item := range items {
		eg.Go(func() error {
			results[i] = model.BulkResult{
				Title:      item.Title,
				Style:      item.Style,
				Suggestion: o.bulkOne(ctx, item),
			}
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

func (o *Orchestrator) bulkOne(ctx context.Context, item model.BulkItem) string {
	var out struct {
		Catchphrase string `json:"catchphrase"`
	}
	err := o.callJSON(ctx, "bulk", gemini.Request{
		Prompt: prompt.BulkCatchphrase(item),
		Schema: &gemini.Schema{
			Type: gemini.TypeObject,
			Properties: map[string]*gemini.Schema{
				"catchphrase": {Type: gemini.TypeString},
			},
			Required: []string{"catchphrase"},
		},
	}, &out)

	switch {
	case err != nil:
		if !errors.Is(err, context.Canceled) {
			o.logger.Warn("bulk item failed", "title", item.Title, "err", err)
		}
		bulkItemsTotal.WithLabelValues("failed").Inc()
		return FailedSuggestion
	case strings.TrimSpace(out.Catchphrase) == "":
		bulkItemsTotal.WithLabelValues("empty").Inc()
		return EmptySuggestion
	default:
		bulkItemsTotal.WithLabelValues("ok").Inc()
		return out.Catchphrase
	}
}

func stringListSchema(key, description string) *gemini.Schema {
	return &gemini.Schema{
		Type: gemini.TypeObject,
		Properties: map[string]*gemini.Schema{
			key: {
				Type:        gemini.TypeArray,
				Description: description,
				Items:       &gemini.Schema{Type: gemini.TypeString},
			},
		},
		Required: []string{key},
	}
}
