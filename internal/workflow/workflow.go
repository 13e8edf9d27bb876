// Package workflow tracks the two-step generator flow: collect reference images,
// then fill in the form and generate.
package workflow

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"thumbexpert/internal/catalog"
	"thumbexpert/internal/prompt"
)

type Step int

const (
	StepUpload Step = iota
	StepCustomize
)

func (s Step) String() string {
	if s == StepCustomize {
		return "customize"
	}
	return "upload"
}

// MaxImages is the number of reference images one generation accepts.
const MaxImages = 4

var (
	ErrTooManyImages = fmt.Errorf("workflow: at most %d images", MaxImages)
	ErrNoImages      = errors.New("workflow: upload at least one image")
	ErrWrongStep     = errors.New("workflow: not allowed in the current step")
	ErrNoSuchImage   = errors.New("workflow: no image at that position")
	ErrPremiumStyle  = errors.New("workflow: style requires a Premium plan")
	ErrUnknownStyle  = errors.New("workflow: unknown style")
)

type Image struct {
	Raw     string
	Cropped string
}

// Effective is the cropped version when there is one, otherwise the raw upload.
func (i Image) Effective() string {
	if i.Cropped != "" {
		return i.Cropped
	}
	return i.Raw
}

// Workflow is not safe for concurrent use.
type Workflow struct {
	step    Step
	images  []Image
	form    prompt.Form
	premium bool
}

func New(premium bool) *Workflow {
	return &Workflow{premium: premium}
}

func (w *Workflow) Step() Step {
	return w.step
}

func (w *Workflow) SetPremium(premium bool) {
	w.premium = premium
}

func (w *Workflow) AddImage(dataURL string) error {
	if w.step != StepUpload {
		return ErrWrongStep
	}
	if strings.TrimSpace(dataURL) == "" {
		return errors.New("workflow: empty image")
	}
	if len(w.images) >= MaxImages {
		return ErrTooManyImages
	}
	w.images = append(w.images, Image{Raw: dataURL})
	return nil
}

func (w *Workflow) RemoveImage(index int) error {
	if w.step != StepUpload {
		return ErrWrongStep
	}
	if index < 0 || index >= len(w.images) {
		return ErrNoSuchImage
	}
	w.images = slices.Delete(w.images, index, index+1)
	return nil
}

// Crop replaces the cropped version of one image.
func (w *Workflow) Crop(index int, dataURL string) error {
	if w.step != StepUpload {
		return ErrWrongStep
	}
	if index < 0 || index >= len(w.images) {
		return ErrNoSuchImage
	}
	w.images[index].Cropped = dataURL
	return nil
}

// Next moves to Customize. Images that were never cropped are used as uploaded.
func (w *Workflow) Next() error {
	if w.step != StepUpload {
		return ErrWrongStep
	}
	if len(w.images) == 0 {
		return ErrNoImages
	}
	for i := range w.images {
		if w.images[i].Cropped == "" {
			w.images[i].Cropped = w.images[i].Raw
		}
	}
	w.step = StepCustomize
	return nil
}

// Back returns to Upload and keeps the images.
func (w *Workflow) Back() error {
	if w.step != StepCustomize {
		return ErrWrongStep
	}
	w.step = StepUpload
	return nil
}

func (w *Workflow) Reset() {
	w.step = StepUpload
	w.images = nil
	w.form = prompt.Form{}
}

func (w *Workflow) Images() []Image {
	return slices.Clone(w.images)
}

func (w *Workflow) Form() prompt.Form {
	return w.form
}

// SetForm replaces the whole form. The style must be one the plan allows.
func (w *Workflow) SetForm(f prompt.Form) error {
	if w.step != StepCustomize {
		return ErrWrongStep
	}
	if f.Style != "" {
		style, err := w.checkStyle(string(f.Style))
		if err != nil {
			return err
		}
		f.Style = style
	}
	w.form = f
	return nil
}

func (w *Workflow) SetStyle(value string) error {
	if w.step != StepCustomize {
		return ErrWrongStep
	}
	style, err := w.checkStyle(value)
	if err != nil {
		return err
	}
	w.form.Style = style
	return nil
}

func (w *Workflow) SetTitle(title string) error {
	if w.step != StepCustomize {
		return ErrWrongStep
	}
	w.form.Title = strings.TrimSpace(title)
	return nil
}

// Request returns the form and the effective images ready for generation.
func (w *Workflow) Request() (prompt.Form, []string, error) {
	if w.step != StepCustomize {
		return prompt.Form{}, nil, ErrWrongStep
	}
	images := make([]string, 0, len(w.images))
	for _, img := range w.images {
		if u := img.Effective(); u != "" {
			images = append(images, u)
		}
	}
	return w.form.Normalized(), images, nil
}

func (w *Workflow) checkStyle(value string) (catalog.Style, error) {
	style, ok := catalog.ParseStyle(value)
	if !ok {
		return "", ErrUnknownStyle
	}
	if !catalog.Allowed(style, w.premium) {
		return "", ErrPremiumStyle
	}
	return style, nil
}
