package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/model"
)

// Mode selects how enabled extractors are scheduled.
type Mode string

const (
	ModeParallel   Mode = "parallel"
	ModeSequential Mode = "sequential"
)

// Extractor category names, in sequential execution order.
const (
	CategoryContent  = "content"
	CategoryContact  = "contact"
	CategorySocial   = "social"
	CategoryMetadata = "metadata"
)

// DefaultTimeout bounds a single Extract call when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Options toggles each extractor category and picks the execution mode.
type Options struct {
	Content  bool          `yaml:"content" mapstructure:"content"`
	Contact  bool          `yaml:"contact" mapstructure:"contact"`
	Social   bool          `yaml:"social" mapstructure:"social"`
	Metadata bool          `yaml:"metadata" mapstructure:"metadata"`
	Mode     Mode          `yaml:"mode" mapstructure:"mode"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DefaultOptions enables every extractor in parallel mode.
func DefaultOptions() Options {
	return Options{
		Content:  true,
		Contact:  true,
		Social:   true,
		Metadata: true,
		Mode:     ModeParallel,
		Timeout:  DefaultTimeout,
	}
}

// step is one extractor bound to the category it fills.
type step struct {
	category string
	run      func(markup, sourceURL string, out *model.ExtractedData) error
}

var allSteps = []step{
	{CategoryContent, func(m, u string, out *model.ExtractedData) error {
		v, err := ExtractContent(m, u)
		if err == nil {
			out.Content = &v
		}
		return err
	}},
	{CategoryContact, func(m, u string, out *model.ExtractedData) error {
		v, err := ExtractContact(m, u)
		if err == nil {
			out.Contact = &v
		}
		return err
	}},
	{CategorySocial, func(m, u string, out *model.ExtractedData) error {
		v, err := ExtractSocial(m, u)
		if err == nil {
			out.Social = &v
		}
		return err
	}},
	{CategoryMetadata, func(m, u string, out *model.ExtractedData) error {
		v, err := ExtractMetadata(m, u)
		if err == nil {
			out.Metadata = &v
		}
		return err
	}},
}

func (o Options) enabled(all []step) []step {
	enabled := map[string]bool{
		CategoryContent:  o.Content,
		CategoryContact:  o.Contact,
		CategorySocial:   o.Social,
		CategoryMetadata: o.Metadata,
	}
	var out []step
	for _, s := range all {
		if enabled[s.category] {
			out = append(out, s)
		}
	}
	return out
}

func (o Options) cacheKey(markup, sourceURL string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%t|%t|%t|%t|%s\x00", o.Content, o.Contact, o.Social, o.Metadata, sourceURL)
	h.Write([]byte(markup))
	return hex.EncodeToString(h.Sum(nil))
}

// Pipeline runs the structured extractors over a page. Results are cached
// by markup, URL and enabled categories when a cache size is configured.
type Pipeline struct {
	steps []step
	cache *lru.Cache[string, *model.ExtractedData]
	log   *zap.Logger
}

// NewPipeline creates a Pipeline. A cacheSize of zero disables caching.
func NewPipeline(cacheSize int) (*Pipeline, error) {
	p := &Pipeline{
		steps: allSteps,
		log:   zap.L().With(zap.String("component", "extract")),
	}
	if cacheSize > 0 {
		c, err := lru.New[string, *model.ExtractedData](cacheSize)
		if err != nil {
			return nil, eris.Wrap(err, "extract: create cache")
		}
		p.cache = c
	}
	return p, nil
}

// Extract runs every enabled extractor over markup. A failing extractor only
// drops its own category. Exceeding opts.Timeout fails the whole call with
// ErrExtractionTimeout.
func (p *Pipeline) Extract(ctx context.Context, markup, sourceURL string, opts Options) (*model.ExtractedData, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Mode == "" {
		opts.Mode = ModeParallel
	}

	var key string
	if p.cache != nil {
		key = opts.cacheKey(markup, sourceURL)
		if cached, ok := p.cache.Get(key); ok {
			return cached, nil
		}
	}

	steps := opts.enabled(p.steps)
	done := make(chan *model.ExtractedData, 1)
	go func() {
		if opts.Mode == ModeSequential {
			done <- p.runSequential(steps, markup, sourceURL)
		} else {
			done <- p.runParallel(steps, markup, sourceURL)
		}
	}()

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		out.URL = sourceURL
		out.Summary = Summarize(out)
		if p.cache != nil {
			p.cache.Add(key, out)
		}
		return out, nil
	case <-timer.C:
		p.log.Warn("extraction timed out",
			zap.String("url", sourceURL),
			zap.Duration("timeout", opts.Timeout),
			zap.String("mode", string(opts.Mode)),
		)
		return nil, eris.Wrapf(ErrExtractionTimeout, "extract: %s after %s", sourceURL, opts.Timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pipeline) runSequential(steps []step, markup, sourceURL string) *model.ExtractedData {
	out := &model.ExtractedData{}
	for _, s := range steps {
		if err := safeRun(s, markup, sourceURL, out); err != nil {
			p.recordFailure(out, sourceURL, err)
		}
	}
	return out
}

func (p *Pipeline) runParallel(steps []step, markup, sourceURL string) *model.ExtractedData {
	partials := make([]model.ExtractedData, len(steps))
	errs := make([]error, len(steps))
	finished := make(chan int, len(steps))
	for i, s := range steps {
		go func() {
			errs[i] = safeRun(s, markup, sourceURL, &partials[i])
			finished <- i
		}()
	}
	for range steps {
		<-finished
	}

	out := &model.ExtractedData{}
	for i, s := range steps {
		if errs[i] != nil {
			p.recordFailure(out, sourceURL, errs[i])
			continue
		}
		switch s.category {
		case CategoryContent:
			out.Content = partials[i].Content
		case CategoryContact:
			out.Contact = partials[i].Contact
		case CategorySocial:
			out.Social = partials[i].Social
		case CategoryMetadata:
			out.Metadata = partials[i].Metadata
		}
	}
	return out
}

func (p *Pipeline) recordFailure(out *model.ExtractedData, sourceURL string, err error) {
	var pf *PartialFailure
	category := "unknown"
	if errors.As(err, &pf) {
		category = pf.Category
	}
	out.Failures = append(out.Failures, category)
	p.log.Warn("extractor failed",
		zap.String("url", sourceURL),
		zap.String("category", category),
		zap.Error(err),
	)
}

// safeRun converts both errors and panics into a PartialFailure.
func safeRun(s step, markup, sourceURL string, out *model.ExtractedData) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PartialFailure{Category: s.category, Err: eris.Errorf("panic: %v", r)}
		}
	}()
	if runErr := s.run(markup, sourceURL, out); runErr != nil {
		return &PartialFailure{Category: s.category, Err: runErr}
	}
	return nil
}

// Summarize computes presence flags and the data-point tally.
func Summarize(d *model.ExtractedData) model.ExtractionSummary {
	var s model.ExtractionSummary
	if c := d.Content; c != nil {
		s.HasContent = c.MainText != "" || len(c.Paragraphs) > 0 || len(c.Headings) > 0
		s.DataPoints += len(c.Headings) + len(c.Paragraphs) + len(c.Images) +
			len(c.Links) + len(c.Lists) + len(c.Tables) + len(c.Forms)
		if c.Title != "" {
			s.DataPoints++
		}
	}
	if c := d.Contact; c != nil {
		s.HasContact = !c.IsEmpty()
		s.DataPoints += c.Count()
	}
	if so := d.Social; so != nil {
		s.HasSocial = len(so.Profiles) > 0
		s.DataPoints += len(so.Profiles) + len(so.Feeds)
	}
	if m := d.Metadata; m != nil {
		s.HasStructuredData = len(m.StructuredData) > 0
		s.DataPoints += len(m.StructuredData) + len(m.Technologies) + len(m.APIHints) + len(m.Custom)
	}
	return s
}
