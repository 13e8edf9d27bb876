package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/term"

	"thumbexpert/internal/apiclient"
	"thumbexpert/internal/bulkcsv"
	"thumbexpert/internal/catalog"
	"thumbexpert/internal/model"
	"thumbexpert/internal/prompt"
	"thumbexpert/internal/workflow"
)

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

// password reads without echo from a terminal, otherwise one line from the input.
func (a *app) password(label string) (string, error) {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.out, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := newFlags("signup")
	email := fs.String("email", "", "email address")
	name := fs.String("name", "", "full name")
	username := fs.String("username", "", "username, defaults to the email local part")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *email == "" || *name == "" {
		return fmt.Errorf("%w: signup needs -email and -name", errUsage)
	}
	if *username == "" {
		*username, _, _ = strings.Cut(*email, "@")
	}
	pw, err := a.password("Password: ")
	if err != nil {
		return err
	}
	if err := a.ctrl.Signup(ctx, model.Registration{
		FullName: *name,
		Username: *username,
		Email:    *email,
		Password: pw,
	}); err != nil {
		return err
	}
	return a.whoami()
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "email address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("%w: login needs -email", errUsage)
	}
	pw, err := a.password("Password: ")
	if err != nil {
		return err
	}
	if err := a.ctrl.Login(ctx, *email, pw); err != nil {
		return err
	}
	return a.whoami()
}

func (a *app) logout(ctx context.Context) error {
	if err := a.ctrl.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *app) whoami() error {
	snap := a.ctrl.Snapshot()
	if snap.User == nil {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}
	u := snap.User
	fmt.Fprintf(a.out, "%s <%s>\nPlan: %s\nHistory: %d\nFavorites: %d\n",
		u.Name, u.Email, u.Plan, len(snap.History), len(snap.Favorites))
	return nil
}

// upgrade opens a hosted checkout when payments are configured and upgrades
// directly otherwise.
func (a *app) upgrade(ctx context.Context) error {
	token, err := a.ctrl.Token()
	if err != nil {
		return err
	}
	url, err := a.backend.Checkout(ctx, token)
	if err == nil {
		fmt.Fprintln(a.out, "Complete your upgrade at:", url)
		return nil
	}
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		return err
	}
	user, err := a.ctrl.Upgrade(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Plan:", user.Plan)
	return nil
}

func (a *app) catalog(ctx context.Context) error {
	l, err := a.backend.Catalog(ctx)
	if err != nil {
		return err
	}
	printOptions(a.out, "Styles", l.Styles)
	printOptions(a.out, "Languages", l.Languages)
	printOptions(a.out, "Text tones", l.Tones)
	printOptions(a.out, "Text styles", l.TextStyles)
	return nil
}

func printOptions(w io.Writer, heading string, opts []catalog.NamedOption) {
	fmt.Fprintln(w, heading+":")
	for _, o := range opts {
		if o.Premium {
			fmt.Fprintf(w, "  %s (Premium)\n", o.Name)
			continue
		}
		fmt.Fprintf(w, "  %s\n", o.Name)
	}
}

func (a *app) generate(ctx context.Context, args []string) error {
	fs := newFlags("generate")
	title := fs.String("title", "", "video title")
	style := fs.String("style", "", "thumbnail style")
	lang := fs.String("lang", "", "text language")
	tone := fs.String("tone", "", "text tone")
	textStyle := fs.String("text-style", "", "text style")
	text := fs.String("text", "", "text to put on the thumbnail")
	audience := fs.String("audience", "", "target audience")
	details := fs.String("details", "", "extra instructions")
	outDir := fs.String("out", ".", "directory for the generated images")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	flow := workflow.New(a.ctrl.Premium())
	for _, path := range fs.Args() {
		img, err := readImage(path)
		if err != nil {
			return err
		}
		if err := flow.AddImage(img); err != nil {
			return err
		}
	}
	if err := flow.Next(); err != nil {
		return err
	}

	form := prompt.Form{
		Title:         *title,
		ThumbnailText: *text,
		Audience:      *audience,
		Details:       *details,
	}
	if err := setEnum(&form.Language, *lang, catalog.ParseLanguage, "language"); err != nil {
		return err
	}
	if err := setEnum(&form.Tone, *tone, catalog.ParseTone, "tone"); err != nil {
		return err
	}
	if err := setEnum(&form.TextStyle, *textStyle, catalog.ParseTextStyle, "text style"); err != nil {
		return err
	}
	if err := flow.SetForm(form); err != nil {
		return err
	}
	if *style != "" {
		if err := flow.SetStyle(*style); err != nil {
			return err
		}
	}

	req, images, err := flow.Request()
	if err != nil {
		return err
	}
	if req.Title == "" {
		return fmt.Errorf("%w: generate needs -title", errUsage)
	}

	urls, err := a.ctrl.Generate(ctx, req, images)
	if len(urls) == 0 {
		if err == nil {
			err = errors.New("no thumbnails were returned")
		}
		return err
	}
	if err != nil {
		fmt.Fprintln(a.out, "warning:", err)
	}
	for i, u := range urls {
		where, err := saveImage(*outDir, fmt.Sprintf("variant-%d", i+1), u)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, where)
	}
	return nil
}

func setEnum[T ~string](dst *T, value string, parse func(string) (T, bool), what string) error {
	if value == "" {
		return nil
	}
	v, ok := parse(value)
	if !ok {
		return fmt.Errorf("unknown %s %q", what, value)
	}
	*dst = v
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	fs := newFlags("edit")
	image := fs.String("image", "", "image file or URL to edit")
	outDir := fs.String("out", ".", "directory for the edited image")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	instruction := strings.Join(fs.Args(), " ")
	if *image == "" || instruction == "" {
		return fmt.Errorf("%w: edit needs -image and an instruction", errUsage)
	}

	src := *image
	if !isRemote(src) {
		var err error
		if src, err = readImage(src); err != nil {
			return err
		}
	}

	newURL, err := a.ctrl.Edit(ctx, src, instruction)
	if newURL == "" {
		return err
	}
	if err != nil {
		fmt.Fprintln(a.out, "warning:", err)
	}
	where, err := saveImage(*outDir, "edited", newURL)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, where)
	return nil
}

func (a *app) titles(ctx context.Context, args []string) error {
	topic := strings.Join(args, " ")
	if topic == "" {
		return fmt.Errorf("%w: titles needs a topic", errUsage)
	}
	token, err := a.ctrl.Token()
	if err != nil {
		return err
	}
	titles, err := a.backend.Titles(ctx, token, topic)
	if err != nil {
		return err
	}
	for i, t := range titles {
		fmt.Fprintf(a.out, "%d. %s\n", i+1, t)
	}
	return nil
}

func (a *app) ctr(ctx context.Context, args []string) error {
	fs := newFlags("ctr")
	image := fs.String("image", "", "thumbnail file or URL")
	title := fs.String("title", "", "video title")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *image == "" || *title == "" {
		return fmt.Errorf("%w: ctr needs -image and -title", errUsage)
	}
	src := *image
	if !isRemote(src) {
		var err error
		if src, err = readImage(src); err != nil {
			return err
		}
	}
	token, err := a.ctrl.Token()
	if err != nil {
		return err
	}
	score, err := a.backend.EstimateCTR(ctx, token, src, *title)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Score: %d/100\n", score.Score)
	for _, f := range score.Feedback {
		fmt.Fprintln(a.out, "- "+f)
	}
	return nil
}

func (a *app) bulk(ctx context.Context, args []string) error {
	fs := newFlags("bulk")
	in := fs.String("in", "", "CSV file with Video Title,Style rows")
	out := fs.String("out", "", "output CSV file, stdout when empty")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("%w: bulk needs -in", errUsage)
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	items, err := bulkcsv.Parse(f)
	f.Close()
	if err != nil {
		return err
	}

	token, err := a.ctrl.Token()
	if err != nil {
		return err
	}
	results, err := a.backend.Bulk(ctx, token, items)
	if err != nil {
		return err
	}

	if *out == "" {
		return bulkcsv.Write(a.out, results)
	}
	dst, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := bulkcsv.Write(dst, results); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Wrote %d suggestions to %s\n", len(results), *out)
	return nil
}

func (a *app) history() error {
	snap := a.ctrl.Snapshot()
	if snap.User == nil {
		return errNotSignedIn
	}
	if len(snap.History) == 0 {
		fmt.Fprintln(a.out, "No generations yet.")
		return nil
	}
	for _, h := range snap.History {
		fmt.Fprintf(a.out, "%s  %d images  %s\n", h.Timestamp.Local().Format("2006-01-02 15:04"), len(h.ImageURLs), h.Prompt)
	}
	return nil
}

func (a *app) favorites() error {
	snap := a.ctrl.Snapshot()
	if snap.User == nil {
		return errNotSignedIn
	}
	if len(snap.Favorites) == 0 {
		fmt.Fprintln(a.out, "No favorites yet.")
		return nil
	}
	for _, u := range snap.Favorites {
		fmt.Fprintln(a.out, describeImage(u))
	}
	return nil
}

func (a *app) brandKit(ctx context.Context, args []string) error {
	fs := newFlags("brandkit")
	name := fs.String("name", "", "brand or channel name")
	primary := fs.String("primary", "", "primary color")
	secondary := fs.String("secondary", "", "secondary color")
	slogan := fs.String("slogan", "", "slogan")
	font := fs.String("font", "", "font preference")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.ctrl.SaveBrandKit(ctx, model.BrandKit{
		BrandName:      *name,
		Slogan:         *slogan,
		PrimaryColor:   *primary,
		SecondaryColor: *secondary,
		FontPreference: *font,
	}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Brand kit saved.")
	return nil
}

var errNotSignedIn = errors.New("not signed in, run thumbctl login")
