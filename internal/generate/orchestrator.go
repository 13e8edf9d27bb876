package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"thumbexpert/internal/apperror"
	"thumbexpert/internal/gemini"
	"thumbexpert/internal/prompt"
)

const (
	DefaultTimeout = 60 * time.Second
	aspectRatio    = "16:9"

	FailedSuggestion = "Generation failed"
	EmptySuggestion  = "No suggestion"
)

var (
	ErrNoEditedImage   = errors.New("model did not return an edited image")
	ErrInvalidResponse = errors.New("invalid response format from the model")
)

const (
	msgGenerate     = "Failed to generate thumbnails. Please try again."
	msgEdit         = "Failed to edit the thumbnail. Please adjust your prompt and try again."
	msgTitles       = "Failed to suggest titles. Please try again."
	msgCatchphrases = "Failed to suggest catchphrases. Please try again."
	msgLoad         = "Failed to load the stored image. Please try again."
	msgCTR          = "Failed to estimate CTR score. The model may be unable to process this image."
)

type Model interface {
	Generate(ctx context.Context, req gemini.Request) (gemini.Response, error)
	GenerateJSON(ctx context.Context, req gemini.Request, out any) error
}

// Sink moves a generated data URL to durable storage and returns its new reference.
type Sink interface {
	Store(ctx context.Context, dataURL string) (string, error)
}

// Loader turns an image URL issued by the sink back into a data URL.
type Loader interface {
	Load(ctx context.Context, ref string) (string, error)
}

type Options struct {
	Model Model
	Sink  Sink
	// Loader defaults to Sink when it implements Loader.
	Loader          Loader
	Timeout         time.Duration
	BulkConcurrency int
	Logger          *slog.Logger
}

type Orchestrator struct {
	model   Model
	sink    Sink
	loader  Loader
	timeout time.Duration
	bulkMax int
	logger  *slog.Logger
}

type EditResult struct {
	ImageURL string `json:"imageUrl"`
	Text     string `json:"text,omitempty"`
}

func New(opts Options) *Orchestrator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	loader := opts.Loader
	if loader == nil {
		loader, _ = opts.Sink.(Loader)
	}

	return &Orchestrator{
		model:   opts.Model,
		sink:    opts.Sink,
		loader:  loader,
		timeout: timeout,
		bulkMax: opts.BulkConcurrency,
		logger:  logger,
	}
}

// Variants runs one image call per prompt in parallel. The first failure aborts the
// batch and no partial results are returned.
func (o *Orchestrator) Variants(ctx context.Context, prompts []string, images []string, premium bool) ([]string, error) {
	if len(prompts) == 0 {
		return nil, apperror.ValidationFailed("prompts", "at least one prompt is required")
	}
	refs, err := o.inline(ctx, "images", images)
	if err != nil {
		return nil, err
	}

	results := make([]string, len(prompts))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, p := range prompts {
		eg.Go(func() error {
			resp, err := o.call(egCtx, "variant", gemini.Request{
				Prompt:      prompt.WithWatermark(p, premium),
				Images:      refs,
				WantImage:   true,
				AspectRatio: aspectRatio,
			})
			if err != nil {
				return err
			}
			if len(resp.Images) > 0 {
				results[i] = resp.Images[len(resp.Images)-1]
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		o.logger.Error("variant generation failed", "err", err)
		return nil, apperror.Upstream(msgGenerate, err)
	}

	out := make([]string, 0, len(results))
	for _, url := range results {
		if url != "" {
			out = append(out, o.store(ctx, url))
		}
	}
	return out, nil
}

// Edit applies a free-text instruction to the given images. A text-only answer is an error.
func (o *Orchestrator) Edit(ctx context.Context, images []string, instruction string, premium bool) (EditResult, error) {
	p := prompt.Edit(instruction)
	if p == "" {
		return EditResult{}, apperror.ValidationFailed("instruction", "edit instruction is required")
	}
	refs, err := o.inline(ctx, "image", images)
	if err != nil {
		return EditResult{}, err
	}
	if len(refs) == 0 {
		return EditResult{}, apperror.ValidationFailed("image", "an image to edit is required")
	}

	resp, err := o.call(ctx, "edit", gemini.Request{
		Prompt:    prompt.WithWatermark(p, premium),
		Images:    refs,
		WantImage: true,
	})
	if err == nil && len(resp.Images) == 0 {
		err = ErrNoEditedImage
	}
	if err != nil {
		o.logger.Error("thumbnail edit failed", "err", err)
		return EditResult{}, apperror.Upstream(msgEdit, err)
	}

	return EditResult{
		ImageURL: o.store(ctx, resp.Images[len(resp.Images)-1]),
		Text:     resp.Text,
	}, nil
}

// inline parses images, first loading any URL the sink handed out earlier.
func (o *Orchestrator) inline(ctx context.Context, field string, images []string) ([]gemini.ImageInput, error) {
	out := make([]gemini.ImageInput, 0, len(images))
	for _, v := range images {
		if o.loader != nil && isURL(v) {
			loaded, err := o.loader.Load(ctx, v)
			if err != nil {
				var appErr *apperror.AppError
				if errors.As(err, &appErr) {
					return nil, err
				}
				o.logger.Error("loading stored image failed", "err", err)
				return nil, apperror.Upstream(msgLoad, err)
			}
			v = loaded
		}
		img, err := gemini.ParseDataURL(v)
		if err != nil {
			return nil, apperror.ValidationFailed(field, err.Error())
		}
		out = append(out, img)
	}
	return out, nil
}

func isURL(v string) bool {
	v = strings.TrimSpace(v)
	return strings.HasPrefix(v, "https://") || strings.HasPrefix(v, "http://")
}

func (o *Orchestrator) store(ctx context.Context, dataURL string) string {
	if o.sink == nil {
		return dataURL
	}
	url, err := o.sink.Store(ctx, dataURL)
	if err != nil {
		o.logger.Warn("image sink failed, keeping inline image", "err", err)
		return dataURL
	}
	return url
}

func (o *Orchestrator) call(ctx context.Context, op string, req gemini.Request) (gemini.Response, error) {
	if o.model == nil {
		return gemini.Response{}, errors.New("generate: model is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.model.Generate(ctx, req)
	observe(op, start, err)
	if err != nil {
		return gemini.Response{}, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}

func (o *Orchestrator) callJSON(ctx context.Context, op string, req gemini.Request, out any) error {
	if o.model == nil {
		return errors.New("generate: model is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	err := o.model.GenerateJSON(ctx, req, out)
	observe(op, start, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
