package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/groq-vlm/internal/domain"
	"github.com/spherical/groq-vlm/internal/llm"
	"github.com/spherical/groq-vlm/internal/vlm"
)

type fakeConverter struct {
	dir      string
	pages    int
	err      error
	gotOpts  domain.RenderOptions
	cleanups int
}

func (f *fakeConverter) Convert(ctx context.Context, pdfPath string, opts domain.RenderOptions) ([]domain.PageImage, error) {
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	images := make([]domain.PageImage, 0, f.pages)
	for i := 1; i <= f.pages; i++ {
		path := filepath.Join(f.dir, fmt.Sprintf("page_%03d.jpg", i))
		if err := os.WriteFile(path, []byte(fmt.Sprintf("image-%d", i)), 0o644); err != nil {
			return nil, err
		}
		images = append(images, domain.PageImage{PageNumber: i, ImagePath: path, Width: 1224, Height: 1584})
	}
	return images, nil
}

func (f *fakeConverter) Cleanup() error {
	f.cleanups++
	return nil
}

type fakeClient struct {
	mu       sync.Mutex
	fail     map[int]bool
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	images   map[int]string
}

func (f *fakeClient) Complete(ctx context.Context, cfg *vlm.RemoteModelConfig, page *vlm.Page, image []byte) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	if f.images == nil {
		f.images = map[int]string{}
	}
	f.images[page.Number] = string(image)
	f.mu.Unlock()

	if f.fail[page.Number] {
		return "", domain.APIError(fmt.Sprintf("page %d rejected", page.Number), nil)
	}
	return fmt.Sprintf("# Page %d", page.Number), nil
}

func testOptions(t *testing.T) PipelineOptions {
	t.Helper()
	cfg, err := vlm.GroqOptions(vlm.Credentials{APIKey: "k"}, "m", vlm.LiteralPrompt("p"), vlm.FormatMarkdown)
	require.NoError(t, err)
	return DefaultOptions(cfg)
}

func drain(ch chan domain.StreamEvent) []domain.StreamEvent {
	var out []domain.StreamEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	opts := testOptions(t)
	require.NoError(t, opts.Validate())

	tests := []struct {
		name   string
		mutate func(*PipelineOptions)
	}{
		{"no vlm", func(o *PipelineOptions) { o.VLM = nil }},
		{"remote disabled", func(o *PipelineOptions) { o.EnableRemoteServices = false }},
		{"zero scale", func(o *PipelineOptions) { o.ImagesScale = 0 }},
		{"zero concurrency", func(o *PipelineOptions) { o.Concurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := testOptions(t)
			tt.mutate(&o)
			err := o.Validate()
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
		})
	}
}

func TestRenderOptionsCombinesScales(t *testing.T) {
	opts := testOptions(t)
	opts.VLM.Scale = 1.5
	opts.ImagesScale = 2

	ro := opts.RenderOptions()
	assert.Equal(t, 3.0, ro.Scale)
	assert.Equal(t, 85, ro.Quality)
	assert.Equal(t, 216.0, ro.DPI())
}

func TestConvert_AllPagesSucceed(t *testing.T) {
	conv := &fakeConverter{dir: t.TempDir(), pages: 3}
	client := &fakeClient{}
	svc, err := NewService(conv, client, testOptions(t), nil)
	require.NoError(t, err)

	events := make(chan domain.StreamEvent, 32)
	doc, err := svc.Convert(context.Background(), "doc.pdf", events)
	require.NoError(t, err)

	assert.Equal(t, "doc.pdf", doc.Source)
	assert.NotEqual(t, [16]byte{}, [16]byte(doc.RunID))
	require.Len(t, doc.Pages, 3)
	for i, p := range doc.Pages {
		assert.Equal(t, i+1, p.Number)
		assert.NoError(t, p.Err)
		assert.NotEmpty(t, p.ImagePath)
		assert.Equal(t, 1224, p.Width)
	}
	assert.Equal(t, "image-2", client.images[2])
	assert.Equal(t, 2.0, conv.gotOpts.Scale)

	assert.Equal(t, "# Page 1\n\n# Page 2\n\n# Page 3", doc.ExportToMarkdown())
	assert.Equal(t, 3, doc.Stats.SuccessfulPages)
	assert.Equal(t, 0, doc.Stats.FailedPages)

	got := drain(events)
	require.NotEmpty(t, got)
	assert.Equal(t, domain.EventStart, got[0].Type)
	assert.Equal(t, domain.EventComplete, got[len(got)-1].Type)

	counts := map[domain.EventType]int{}
	for _, ev := range got {
		counts[ev.Type]++
	}
	assert.Equal(t, 1, counts[domain.EventRasterized])
	assert.Equal(t, 3, counts[domain.EventPageProcessing])
	assert.Equal(t, 3, counts[domain.EventPageComplete])

	require.NoError(t, svc.Close())
	assert.Equal(t, 1, conv.cleanups)
}

func TestConvert_PartialFailure(t *testing.T) {
	conv := &fakeConverter{dir: t.TempDir(), pages: 3}
	client := &fakeClient{fail: map[int]bool{2: true}}
	svc, err := NewService(conv, client, testOptions(t), nil)
	require.NoError(t, err)

	events := make(chan domain.StreamEvent, 32)
	doc, err := svc.Convert(context.Background(), "doc.pdf", events)
	require.NoError(t, err)

	assert.Equal(t, "# Page 1\n\n# Page 3", doc.ExportToMarkdown())
	assert.Equal(t, 2, doc.Stats.SuccessfulPages)
	assert.Equal(t, 1, doc.Stats.FailedPages)

	failed := doc.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Number)
	assert.True(t, domain.IsType(failed[0].Err, domain.ErrorTypeAPI))

	var errEvents []domain.StreamEvent
	for _, ev := range drain(events) {
		if ev.Type == domain.EventError {
			errEvents = append(errEvents, ev)
		}
	}
	require.Len(t, errEvents, 1)
	assert.Equal(t, 2, errEvents[0].PageNumber)
}

func TestConvert_AllPagesFail(t *testing.T) {
	conv := &fakeConverter{dir: t.TempDir(), pages: 2}
	client := &fakeClient{fail: map[int]bool{1: true, 2: true}}
	svc, err := NewService(conv, client, testOptions(t), nil)
	require.NoError(t, err)

	doc, err := svc.Convert(context.Background(), "doc.pdf", nil)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeExtraction))
	require.NotNil(t, doc)
	assert.Empty(t, doc.ExportToMarkdown())
}

func TestConvert_RasterizerError(t *testing.T) {
	conv := &fakeConverter{err: domain.ValidationError("file does not exist: x.pdf", nil)}
	svc, err := NewService(conv, &fakeClient{}, testOptions(t), nil)
	require.NoError(t, err)

	events := make(chan domain.StreamEvent, 8)
	doc, err := svc.Convert(context.Background(), "x.pdf", events)
	assert.Nil(t, doc)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))

	got := drain(events)
	require.Len(t, got, 2)
	assert.Equal(t, domain.EventError, got[1].Type)
}

func TestConvert_WithoutPageImages(t *testing.T) {
	opts := testOptions(t)
	opts.GeneratePageImages = false
	svc, err := NewService(&fakeConverter{dir: t.TempDir(), pages: 1}, &fakeClient{}, opts, nil)
	require.NoError(t, err)

	doc, err := svc.Convert(context.Background(), "doc.pdf", nil)
	require.NoError(t, err)
	assert.Empty(t, doc.Pages[0].ImagePath)
}

func TestConvert_ConcurrencyBound(t *testing.T) {
	opts := testOptions(t)
	opts.Concurrency = 2
	client := &fakeClient{delay: 20 * time.Millisecond}
	svc, err := NewService(&fakeConverter{dir: t.TempDir(), pages: 6}, client, opts, nil)
	require.NoError(t, err)

	doc, err := svc.Convert(context.Background(), "doc.pdf", nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, client.maxSeen.Load(), int32(2))
	assert.Equal(t, 6, doc.Stats.SuccessfulPages)
	for i, p := range doc.Pages {
		assert.Equal(t, i+1, p.Number)
	}
}

func TestConvert_FullEventChannelDoesNotBlock(t *testing.T) {
	svc, err := NewService(&fakeConverter{dir: t.TempDir(), pages: 4}, &fakeClient{}, testOptions(t), nil)
	require.NoError(t, err)

	events := make(chan domain.StreamEvent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Convert(context.Background(), "doc.pdf", events)
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Convert blocked on an unread event channel")
	}
}

func TestConvert_Cancelled(t *testing.T) {
	svc, err := NewService(&fakeConverter{dir: t.TempDir(), pages: 2}, &fakeClient{}, testOptions(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.Convert(ctx, "doc.pdf", nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewService_InvalidOptions(t *testing.T) {
	opts := testOptions(t)
	opts.EnableRemoteServices = false

	_, err := NewService(&fakeConverter{}, &fakeClient{}, opts, nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestConvert_WithRemoteClient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": fmt.Sprintf("```markdown\nbody %d\n```", n)}},
			},
		})
	}))
	defer srv.Close()

	opts := testOptions(t)
	opts.VLM.URL = srv.URL
	svc, err := NewService(&fakeConverter{dir: t.TempDir(), pages: 2}, llm.NewClient(), opts, nil)
	require.NoError(t, err)

	doc, err := svc.Convert(context.Background(), "doc.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "body 1\n\nbody 2", doc.ExportToMarkdown())
}
