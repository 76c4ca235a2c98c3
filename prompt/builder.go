package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/yaajosh/chat-simulator/core"
	"github.com/yaajosh/chat-simulator/internal/util"
)

//go:embed templates.yaml
var defaultTemplates []byte

// DefaultMaxChars is the length ceiling written into every prompt.
const DefaultMaxChars = 40

// ErrUnknownSituation is returned when no template exists for a situation.
var ErrUnknownSituation = errors.New("prompt: unknown situation")

// Input is the per-call data for Build.
type Input struct {
	Persona   core.Persona
	Utterance string
	Context   []core.Entry
}

// Line is one rendered context line.
type Line struct {
	Speaker string
	Text    string
}

// Data is what templates are executed with.
type Data struct {
	Username    string
	Personality string
	Traits      string
	MaxChars    int
	Utterance   string
	Context     []Line
}

type localeDoc struct {
	PresenterName  string            `yaml:"presenter_name"`
	PresenterLabel string            `yaml:"presenter_label"`
	Situations     map[string]string `yaml:"situations"`
	Context        string            `yaml:"context"`
}

type localeSet struct {
	presenterName  string
	presenterLabel string
	templates      map[core.Situation]*template.Template
}

// Options configures a Builder.
type Options struct {
	// Templates overrides the embedded YAML document.
	Templates []byte
	// MaxChars is the ceiling stated in prompts. Values below 1 use DefaultMaxChars.
	MaxChars int
}

// Builder renders prompts. It is immutable after New and safe for
// concurrent use.
type Builder struct {
	maxChars int
	locales  map[core.Locale]*localeSet
}

// New parses the template document and returns a Builder.
func New(optFns ...func(o *Options)) (*Builder, error) {
	opts := Options{
		Templates: defaultTemplates,
		MaxChars:  DefaultMaxChars,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxChars < 1 {
		opts.MaxChars = DefaultMaxChars
	}

	var doc map[string]localeDoc
	if err := yaml.Unmarshal(opts.Templates, &doc); err != nil {
		return nil, fmt.Errorf("prompt: decode templates: %w", err)
	}
	if len(doc) == 0 {
		return nil, errors.New("prompt: template document is empty")
	}

	b := &Builder{
		maxChars: opts.MaxChars,
		locales:  make(map[core.Locale]*localeSet, len(doc)),
	}
	for name, ld := range doc {
		loc := core.ParseLocale(name)
		set, err := compileLocale(loc, ld)
		if err != nil {
			return nil, err
		}
		b.locales[loc] = set
	}
	if _, ok := b.locales[core.LocaleEnglish]; !ok {
		return nil, errors.New("prompt: templates must include an English locale")
	}
	return b, nil
}

// Must is New that panics on error; for the embedded defaults.
func Must(b *Builder, err error) *Builder {
	if err != nil {
		panic(err)
	}
	return b
}

func compileLocale(loc core.Locale, ld localeDoc) (*localeSet, error) {
	set := &localeSet{
		presenterName:  ld.PresenterName,
		presenterLabel: ld.PresenterLabel,
		templates:      make(map[core.Situation]*template.Template, len(ld.Situations)),
	}
	if set.presenterLabel == "" {
		set.presenterLabel = "STREAMER"
	}
	for _, s := range core.Situations {
		text, ok := ld.Situations[string(s)]
		if !ok {
			return nil, fmt.Errorf("prompt: locale %s: missing template %q", loc, s)
		}
		name := string(loc) + "/" + string(s)
		tmpl, err := util.ParseTemplate(name, text)
		if err != nil {
			return nil, fmt.Errorf("prompt: %w", err)
		}
		if _, err := tmpl.New("context").Parse(ld.Context); err != nil {
			return nil, fmt.Errorf("prompt: locale %s: context block: %w", loc, err)
		}
		set.templates[s] = tmpl
	}
	return set, nil
}

func (b *Builder) set(loc core.Locale) *localeSet {
	if s, ok := b.locales[loc]; ok {
		return s
	}
	return b.locales[core.LocaleEnglish]
}

// Build renders the prompt for one persona in one situation.
func (b *Builder) Build(loc core.Locale, situation core.Situation, in Input) (string, error) {
	set := b.set(loc)
	tmpl, ok := set.templates[situation]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSituation, situation)
	}

	data := Data{
		Username:    in.Persona.Username,
		Personality: in.Persona.Personality,
		Traits:      in.Persona.Traits,
		MaxChars:    b.maxChars,
		Utterance:   in.Utterance,
		Context:     make([]Line, 0, len(in.Context)),
	}
	for _, e := range in.Context {
		speaker := e.Speaker
		if e.FromPresenter() {
			speaker = set.presenterLabel
		}
		data.Context = append(data.Context, Line{Speaker: speaker, Text: e.Text})
	}

	out, err := util.RenderTemplate(tmpl, data)
	if err != nil {
		return "", fmt.Errorf("prompt: render %s/%s: %w", loc, situation, err)
	}
	return out, nil
}

// PresenterName is the display name for the presenter's own chat lines.
func (b *Builder) PresenterName(loc core.Locale) string {
	return b.set(loc).presenterName
}

// MaxChars reports the ceiling written into prompts.
func (b *Builder) MaxChars() int { return b.maxChars }
