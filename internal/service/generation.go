package service

import (
	"context"
	"fmt"
	"log/slog"

	"thumbexpert/internal/apperror"
	"thumbexpert/internal/catalog"
	"thumbexpert/internal/generate"
	"thumbexpert/internal/model"
	"thumbexpert/internal/prompt"
	"thumbexpert/internal/store"
)

type VariantsRequest struct {
	Form   prompt.Form `json:"form"`
	Images []string    `json:"images" validate:"required,min=1,max=4"`
}

type EditRequest struct {
	Image       string `json:"image" validate:"required"`
	Instruction string `json:"prompt" validate:"required,max=2000"`
}

type CatchphrasesRequest struct {
	Topic     string            `json:"topic" validate:"required,max=300"`
	Audience  string            `json:"audience" validate:"max=120"`
	Tone      catalog.TextTone  `json:"textTone"`
	TextStyle catalog.TextStyle `json:"textStyle"`
}

type CTRRequest struct {
	Image string `json:"image" validate:"required"`
	Title string `json:"title" validate:"required,max=300"`
}

type GenerationOptions struct {
	Users        store.Users
	Data         store.Data
	Orchestrator *generate.Orchestrator
	Validator    *Validator
	Logger       *slog.Logger
}

// GenerationService applies plan rules before handing work to the orchestrator.
type GenerationService struct {
	users     store.Users
	data      store.Data
	orch      *generate.Orchestrator
	validator *Validator
	logger    *slog.Logger
}

func NewGenerationService(opts GenerationOptions) *GenerationService {
	v := opts.Validator
	if v == nil {
		v = NewValidator()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationService{
		users:     opts.Users,
		data:      opts.Data,
		orch:      opts.Orchestrator,
		validator: v,
		logger:    logger,
	}
}

func (s *GenerationService) Variants(ctx context.Context, userID string, req VariantsRequest) ([]string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	form, err := checkForm(req.Form, user.Premium())
	if err != nil {
		return nil, err
	}

	var kit *model.BrandKit
	if user.Premium() {
		if kit, err = s.data.BrandKit(ctx, userID); err != nil {
			return nil, wrapData("brand kit", userID, err)
		}
	}

	return s.orch.Variants(ctx, prompt.Variants(form, kit), req.Images, user.Premium())
}

func (s *GenerationService) Edit(ctx context.Context, userID string, req EditRequest) (generate.EditResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return generate.EditResult{}, err
	}
	user, err := s.user(ctx, userID)
	if err != nil {
		return generate.EditResult{}, err
	}
	return s.orch.Edit(ctx, []string{req.Image}, req.Instruction, user.Premium())
}

func (s *GenerationService) Catchphrases(ctx context.Context, userID string, req CatchphrasesRequest) ([]string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.orch.Catchphrases(ctx, generate.CatchphraseRequest{
		Topic:     req.Topic,
		Audience:  req.Audience,
		Tone:      req.Tone,
		TextStyle: req.TextStyle,
		Premium:   user.Premium(),
	})
}

func (s *GenerationService) Titles(ctx context.Context, userID, topic string) ([]string, error) {
	if _, err := s.user(ctx, userID); err != nil {
		return nil, err
	}
	return s.orch.Titles(ctx, topic)
}

func (s *GenerationService) EstimateCTR(ctx context.Context, userID string, req CTRRequest) (model.CTRScore, error) {
	if err := s.validator.Struct(req); err != nil {
		return model.CTRScore{}, err
	}
	if err := s.requirePremium(ctx, userID, "CTR estimation"); err != nil {
		return model.CTRScore{}, err
	}
	return s.orch.EstimateCTR(ctx, req.Image, req.Title)
}

func (s *GenerationService) Bulk(ctx context.Context, userID string, items []model.BulkItem) ([]model.BulkResult, error) {
	if len(items) == 0 {
		return nil, apperror.ValidationFailed("items", "No valid data found in CSV. Please check the format.")
	}
	if err := s.requirePremium(ctx, userID, "Bulk generation"); err != nil {
		return nil, err
	}
	return s.orch.Bulk(ctx, items), nil
}

func (s *GenerationService) requirePremium(ctx context.Context, userID, feature string) error {
	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Premium() {
		return apperror.Forbidden(feature + " is a Premium feature. Upgrade to unlock it.")
	}
	return nil
}

func (s *GenerationService) user(ctx context.Context, userID string) (model.User, error) {
	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return model.User{}, wrapData("user", userID, err)
	}
	return user, nil
}

// checkForm normalizes the form and enforces the closed option sets and the style partition.
func checkForm(f prompt.Form, premium bool) (prompt.Form, error) {
	f = f.Normalized()
	if f.Title == "" {
		return f, apperror.ValidationFailed("prompt", "Please enter a video title.")
	}

	style, ok := catalog.ParseStyle(string(f.Style))
	if !ok {
		return f, apperror.ValidationFailed("style", fmt.Sprintf("unknown style %q", f.Style))
	}
	if !catalog.Allowed(style, premium) {
		return f, apperror.Forbidden(fmt.Sprintf("%s is a Premium style. Upgrade to unlock it.", style))
	}
	f.Style = style

	if f.Language, ok = catalog.ParseLanguage(string(f.Language)); !ok {
		return f, apperror.ValidationFailed("language", "unknown language")
	}
	if f.Tone, ok = catalog.ParseTone(string(f.Tone)); !ok {
		return f, apperror.ValidationFailed("textTone", "unknown text tone")
	}
	if f.TextStyle, ok = catalog.ParseTextStyle(string(f.TextStyle)); !ok {
		return f, apperror.ValidationFailed("textStyle", "unknown text style")
	}
	return f, nil
}
