package extract

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/domain-intel/internal/model"
)

func newTestPipeline(t *testing.T, steps ...step) *Pipeline {
	t.Helper()
	p, err := NewPipeline(0)
	require.NoError(t, err)
	if len(steps) > 0 {
		p.steps = steps
	}
	return p
}

func okStep(category string) step {
	return step{category, func(_, _ string, out *model.ExtractedData) error {
		switch category {
		case CategoryContent:
			out.Content = &model.ContentData{MainText: "hello", Paragraphs: []string{"hello"}}
		case CategoryContact:
			out.Contact = &model.ContactInfo{Emails: []model.Email{{Email: "a@b.test"}}}
		case CategorySocial:
			out.Social = &model.SocialData{Profiles: []model.SocialProfile{{URL: "https://x.com/a"}}}
		case CategoryMetadata:
			out.Metadata = &model.MetadataData{StructuredData: []map[string]any{{"@type": "Thing"}}}
		}
		return nil
	}}
}

func failStep(category string) step {
	return step{category, func(_, _ string, _ *model.ExtractedData) error {
		return errors.New("bad markup")
	}}
}

func panicStep(category string) step {
	return step{category, func(_, _ string, _ *model.ExtractedData) error {
		panic("nil map")
	}}
}

func slowStep(category string, d time.Duration) step {
	return step{category, func(_, _ string, _ *model.ExtractedData) error {
		time.Sleep(d)
		return nil
	}}
}

func TestPipeline_ExtractRealPage(t *testing.T) {
	p := newTestPipeline(t)
	out, err := p.Extract(context.Background(), samplePage, "https://acme.test/", DefaultOptions())
	require.NoError(t, err)

	require.NotNil(t, out.Content)
	require.NotNil(t, out.Contact)
	require.NotNil(t, out.Social)
	require.NotNil(t, out.Metadata)
	assert.Equal(t, "https://acme.test/", out.URL)
	assert.True(t, out.Summary.HasContent)
	assert.True(t, out.Summary.HasContact)
	assert.False(t, out.Summary.HasSocial)
	assert.Positive(t, out.Summary.DataPoints)
	assert.Empty(t, out.Failures)
}

func TestPipeline_DisabledCategoriesOmitted(t *testing.T) {
	p := newTestPipeline(t)
	opts := Options{Contact: true, Mode: ModeSequential, Timeout: time.Second}
	out, err := p.Extract(context.Background(), samplePage, "https://acme.test/", opts)
	require.NoError(t, err)
	assert.Nil(t, out.Content)
	assert.Nil(t, out.Social)
	assert.Nil(t, out.Metadata)
	require.NotNil(t, out.Contact)
	assert.Equal(t, "info@acme.test", out.Contact.Emails[0].Email)
}

func TestPipeline_FailureIsolation(t *testing.T) {
	for _, mode := range []Mode{ModeSequential, ModeParallel} {
		t.Run(string(mode), func(t *testing.T) {
			p := newTestPipeline(t,
				okStep(CategoryContent),
				failStep(CategoryContact),
				panicStep(CategorySocial),
				okStep(CategoryMetadata),
			)
			opts := DefaultOptions()
			opts.Mode = mode

			out, err := p.Extract(context.Background(), "<p>x</p>", "https://acme.test/", opts)
			require.NoError(t, err)
			assert.NotNil(t, out.Content)
			assert.Nil(t, out.Contact)
			assert.Nil(t, out.Social)
			assert.NotNil(t, out.Metadata)
			assert.Equal(t, []string{CategoryContact, CategorySocial}, out.Failures)
			assert.True(t, out.Summary.HasContent)
			assert.True(t, out.Summary.HasStructuredData)
			assert.False(t, out.Summary.HasContact)
		})
	}
}

func TestPipeline_TimeoutFailsWholeCall(t *testing.T) {
	for _, mode := range []Mode{ModeSequential, ModeParallel} {
		t.Run(string(mode), func(t *testing.T) {
			p := newTestPipeline(t,
				okStep(CategoryContent),
				slowStep(CategoryContact, 300*time.Millisecond),
			)
			opts := DefaultOptions()
			opts.Mode = mode
			opts.Timeout = 20 * time.Millisecond

			out, err := p.Extract(context.Background(), "<p>x</p>", "", opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrExtractionTimeout)
			assert.Nil(t, out)
		})
	}
}

func TestPipeline_ContextCanceled(t *testing.T) {
	p := newTestPipeline(t, slowStep(CategoryContent, 300*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Extract(ctx, "<p>x</p>", "", DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_CacheHit(t *testing.T) {
	var calls atomic.Int32
	p, err := NewPipeline(4)
	require.NoError(t, err)
	p.steps = []step{{CategoryContent, func(_, _ string, out *model.ExtractedData) error {
		calls.Add(1)
		out.Content = &model.ContentData{MainText: "x"}
		return nil
	}}}

	first, err := p.Extract(context.Background(), "<p>x</p>", "https://acme.test/", DefaultOptions())
	require.NoError(t, err)
	second, err := p.Extract(context.Background(), "<p>x</p>", "https://acme.test/", DefaultOptions())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	_, err = p.Extract(context.Background(), "<p>y</p>", "https://acme.test/", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPartialFailure(t *testing.T) {
	cause := errors.New("boom")
	err := error(&PartialFailure{Category: CategorySocial, Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "social extractor failed")
}
