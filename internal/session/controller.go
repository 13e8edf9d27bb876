// Package session holds one signed-in user's state on the client side and keeps
// it in sync with the backend.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"thumbexpert/internal/apiclient"
	"thumbexpert/internal/apperror"
	"thumbexpert/internal/model"
	"thumbexpert/internal/prompt"
)

type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

var (
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrSessionChanged reports a result that arrived after logout or a new sign-in.
	ErrSessionChanged = errors.New("session: session changed while request was in flight")
)

// Backend is the slice of the HTTP API the controller drives.
type Backend interface {
	Register(ctx context.Context, reg model.Registration) (apiclient.Session, error)
	Login(ctx context.Context, email, password string) (apiclient.Session, error)
	Me(ctx context.Context, token string) (model.User, error)
	Logout(ctx context.Context, token string) error
	Upgrade(ctx context.Context, token string) (model.User, error)

	BrandKit(ctx context.Context, token string) (*model.BrandKit, error)
	SaveBrandKit(ctx context.Context, token string, kit model.BrandKit) (model.BrandKit, error)
	History(ctx context.Context, token string) ([]model.HistoryItem, error)
	SaveHistory(ctx context.Context, token string, items []model.HistoryItem) ([]model.HistoryItem, error)
	Favorites(ctx context.Context, token string) ([]string, error)
	SaveFavorites(ctx context.Context, token string, urls []string) ([]string, error)

	Variants(ctx context.Context, token string, form prompt.Form, images []string) ([]string, error)
	Edit(ctx context.Context, token, image, instruction string) (apiclient.EditResult, error)
}

type Options struct {
	Backend Backend
	// Tokens defaults to an in-memory store.
	Tokens TokenStore
	Now    func() time.Time
	Logger *slog.Logger
}

type versioned[T any] struct {
	value   T
	version uint64
}

type Controller struct {
	backend Backend
	tokens  TokenStore
	now     func() time.Time
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	epoch     uint64
	token     string
	user      *model.User
	display   []string
	history   versioned[[]model.HistoryItem]
	favorites versioned[[]string]
	kit       versioned[*model.BrandKit]
}

// Snapshot is a copy of the controller state safe to read without locking.
type Snapshot struct {
	State     State
	User      *model.User
	Display   []string
	History   []model.HistoryItem
	Favorites []string
	BrandKit  *model.BrandKit
}

func New(opts Options) *Controller {
	tokens := opts.Tokens
	if tokens == nil {
		tokens = &MemoryTokens{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		backend: opts.Backend,
		tokens:  tokens,
		now:     now,
		logger:  logger,
	}
}

// Restore resumes the stored session, if any. A token that no longer resolves is
// dropped and the controller stays anonymous; that is not reported as an error.
func (c *Controller) Restore(ctx context.Context) error {
	token, err := c.tokens.Load()
	if err != nil {
		return fmt.Errorf("session: load token: %w", err)
	}
	if token == "" {
		return nil
	}

	epoch := c.begin()
	user, err := c.backend.Me(ctx, token)
	if err == nil {
		err = c.establish(ctx, epoch, token, user)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSessionChanged) {
		return err
	}

	c.logger.Info("stored session discarded", "err", err)
	c.abandon(epoch)
	return c.tokens.Clear()
}

func (c *Controller) Login(ctx context.Context, email, password string) error {
	epoch := c.begin()
	sess, err := c.backend.Login(ctx, email, password)
	return c.signIn(ctx, epoch, sess, err)
}

func (c *Controller) Signup(ctx context.Context, reg model.Registration) error {
	epoch := c.begin()
	sess, err := c.backend.Register(ctx, reg)
	return c.signIn(ctx, epoch, sess, err)
}

// AdoptToken completes a social sign-in whose token was issued out of band.
func (c *Controller) AdoptToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperror.ValidationFailed("token", "token is empty")
	}
	epoch := c.begin()
	user, err := c.backend.Me(ctx, token)
	return c.signIn(ctx, epoch, apiclient.Session{Token: token, User: user}, err)
}

func (c *Controller) signIn(ctx context.Context, epoch uint64, sess apiclient.Session, err error) error {
	if err == nil {
		err = c.establish(ctx, epoch, sess.Token, sess.User)
	}
	if err != nil && !errors.Is(err, ErrSessionChanged) {
		c.abandon(epoch)
	}
	return err
}

// establish fetches the user's collections as one batch and enters Authenticated.
func (c *Controller) establish(ctx context.Context, epoch uint64, token string, user model.User) error {
	var (
		kit       *model.BrandKit
		history   []model.HistoryItem
		favorites []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		kit, err = c.backend.BrandKit(gctx, token)
		return err
	})
	g.Go(func() (err error) {
		history, err = c.backend.History(gctx, token)
		return err
	})
	g.Go(func() (err error) {
		favorites, err = c.backend.Favorites(gctx, token)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("session: loading user data: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return ErrSessionChanged
	}
	c.state = Authenticated
	c.token = token
	c.user = &user
	c.kit.value = kit
	c.history.value = model.CapHistory(history, model.MaxHistory)
	c.favorites.value = favorites

	if err := c.tokens.Save(token); err != nil {
		c.logger.Warn("failed to store session token", "err", err)
	}
	c.logger.Info("signed in", "userID", user.ID)
	return nil
}

// Logout ends the session locally and revokes the token on the backend on a best-effort basis.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.epoch++
	c.state = Anonymous
	c.resetLocked()
	c.mu.Unlock()

	if token != "" {
		if err := c.backend.Logout(ctx, token); err != nil {
			c.logger.Warn("remote logout failed", "err", err)
		}
	}
	return c.tokens.Clear()
}

func (c *Controller) SaveHistory(ctx context.Context, items []model.HistoryItem) error {
	next := model.CapHistory(model.CloneHistory(items), model.MaxHistory)
	_, err := persist(ctx, c, &c.history, func([]model.HistoryItem) []model.HistoryItem { return next }, c.backend.SaveHistory)
	return err
}

func (c *Controller) SaveFavorites(ctx context.Context, urls []string) error {
	next := slices.Clone(urls)
	_, err := persist(ctx, c, &c.favorites, func([]string) []string { return next }, c.backend.SaveFavorites)
	return err
}

func (c *Controller) SaveBrandKit(ctx context.Context, kit model.BrandKit) error {
	_, err := persist(ctx, c, &c.kit, func(*model.BrandKit) *model.BrandKit { return &kit }, c.saveBrandKit)
	return err
}

// ToggleFavorite flips url's membership and returns the resulting list.
func (c *Controller) ToggleFavorite(ctx context.Context, url string) ([]string, error) {
	return persist(ctx, c, &c.favorites, func(cur []string) []string {
		return model.ToggleFavorite(cur, url)
	}, c.backend.SaveFavorites)
}

// Generate produces variants, shows them and records them at the top of the history.
// The URLs are returned even when only the history save fails.
func (c *Controller) Generate(ctx context.Context, form prompt.Form, images []string) ([]string, error) {
	token, epoch, err := c.current()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.epoch == epoch {
		c.display = nil
	}
	c.mu.Unlock()

	urls, err := c.backend.Variants(ctx, token, form, images)
	if err != nil {
		return nil, c.fail(epoch, err)
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil, ErrSessionChanged
	}
	c.display = slices.Clone(urls)
	c.mu.Unlock()

	if len(urls) == 0 {
		return urls, nil
	}
	item := model.HistoryItem{
		Prompt:    strings.TrimSpace(form.Title),
		ImageURLs: slices.Clone(urls),
		Timestamp: c.now().UTC(),
	}
	_, err = persist(ctx, c, &c.history, func(cur []model.HistoryItem) []model.HistoryItem {
		return model.PrependHistory(cur, item, model.MaxHistory)
	}, c.backend.SaveHistory)
	if err != nil {
		return urls, fmt.Errorf("session: saving history: %w", err)
	}
	return urls, nil
}

// Edit replaces oldURL with the edited image in the display list, the history and
// the favorites, then persists both collections.
func (c *Controller) Edit(ctx context.Context, oldURL, instruction string) (string, error) {
	token, epoch, err := c.current()
	if err != nil {
		return "", err
	}

	res, err := c.backend.Edit(ctx, token, oldURL, instruction)
	if err != nil {
		return "", c.fail(epoch, err)
	}
	newURL := res.ImageURL
	if newURL == "" {
		return "", errors.New("session: edit returned no image")
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return "", ErrSessionChanged
	}
	c.display, _ = model.ReplaceImage(c.display, oldURL, newURL)
	c.mu.Unlock()

	_, herr := persist(ctx, c, &c.history, func(cur []model.HistoryItem) []model.HistoryItem {
		next, _ := model.ReplaceHistoryImage(cur, oldURL, newURL)
		return next
	}, c.backend.SaveHistory)
	_, ferr := persist(ctx, c, &c.favorites, func(cur []string) []string {
		next, _ := model.ReplaceImage(cur, oldURL, newURL)
		return next
	}, c.backend.SaveFavorites)

	return newURL, errors.Join(herr, ferr)
}

func (c *Controller) Upgrade(ctx context.Context) (model.User, error) {
	token, epoch, err := c.current()
	if err != nil {
		return model.User{}, err
	}
	user, err := c.backend.Upgrade(ctx, token)
	if err != nil {
		return model.User{}, c.fail(epoch, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return model.User{}, ErrSessionChanged
	}
	c.user = &user
	return user, nil
}

// Token returns the bearer credential of the active session.
func (c *Controller) Token() (string, error) {
	token, _, err := c.current()
	return token, err
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Premium() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user != nil && c.user.Premium()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:     c.state,
		Display:   slices.Clone(c.display),
		History:   model.CloneHistory(c.history.value),
		Favorites: slices.Clone(c.favorites.value),
	}
	if c.user != nil {
		u := *c.user
		s.User = &u
	}
	if c.kit.value != nil {
		k := *c.kit.value
		s.BrandKit = &k
	}
	return s
}

// persist applies update locally, then saves the result remotely. On failure the
// previous value is restored unless a newer local write has replaced it since.
func persist[T any](
	ctx context.Context,
	c *Controller,
	field *versioned[T],
	update func(T) T,
	save func(ctx context.Context, token string, value T) (T, error),
) (T, error) {
	var zero T

	c.mu.Lock()
	if c.state != Authenticated {
		c.mu.Unlock()
		return zero, ErrNotAuthenticated
	}
	token, epoch := c.token, c.epoch
	prev := field.value
	next := update(prev)
	field.value = next
	field.version++
	version := field.version
	c.mu.Unlock()

	saved, err := save(ctx, token, next)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return zero, ErrSessionChanged
	}
	if err != nil {
		if field.version == version {
			field.value = prev
		}
		c.expireLocked(err)
		return zero, err
	}
	if field.version == version {
		field.value = saved
	}
	return saved, nil
}

func (c *Controller) saveBrandKit(ctx context.Context, token string, kit *model.BrandKit) (*model.BrandKit, error) {
	if kit == nil {
		return nil, apperror.ValidationFailed("kit", "brand kit is empty")
	}
	saved, err := c.backend.SaveBrandKit(ctx, token, *kit)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (c *Controller) current() (string, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Authenticated {
		return "", 0, ErrNotAuthenticated
	}
	return c.token, c.epoch, nil
}

func (c *Controller) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.state = Authenticating
	c.resetLocked()
	return c.epoch
}

func (c *Controller) abandon(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch == epoch {
		c.state = Anonymous
		c.resetLocked()
	}
}

// fail passes err through, ending the session first when the backend rejected the token.
func (c *Controller) fail(epoch uint64, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return ErrSessionChanged
	}
	c.expireLocked(err)
	return err
}

func (c *Controller) expireLocked(err error) {
	if !errors.Is(err, apperror.ErrUnauthorized) || c.state != Authenticated {
		return
	}
	c.logger.Info("session expired", "err", err)
	c.epoch++
	c.state = Anonymous
	c.resetLocked()
	if cerr := c.tokens.Clear(); cerr != nil {
		c.logger.Warn("failed to clear session token", "err", cerr)
	}
}

func (c *Controller) resetLocked() {
	c.token = ""
	c.user = nil
	c.display = nil
	c.history.value = nil
	c.favorites.value = nil
	c.kit.value = nil
}
