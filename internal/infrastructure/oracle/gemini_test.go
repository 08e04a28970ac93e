package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"culture-sentinel/internal/domain/entity"
)

type fakeAPI struct {
	uploadErr   error
	states      []genai.FileState
	gets        int
	deleted     []string
	generateErr error
	answer      string
}

func (f *fakeAPI) Upload(_ context.Context, _ []byte, mimeType string) (*genai.File, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &genai.File{Name: "files/well", URI: "https://files/well", MIMEType: mimeType, State: f.state()}, nil
}

func (f *fakeAPI) state() genai.FileState {
	if len(f.states) == 0 {
		return genai.FileStateActive
	}
	s := f.states[0]
	if len(f.states) > 1 {
		f.states = f.states[1:]
	}
	return s
}

func (f *fakeAPI) GetFile(_ context.Context, name string) (*genai.File, error) {
	f.gets++
	return &genai.File{Name: name, State: f.state()}, nil
}

func (f *fakeAPI) DeleteFile(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeAPI) Generate(context.Context, string, []*genai.Content) (string, error) {
	return f.answer, f.generateErr
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestGeminiOracle_Judge(t *testing.T) {
	api := &fakeAPI{
		states: []genai.FileState{genai.FileStateProcessing, genai.FileStateProcessing, genai.FileStateActive},
		answer: "Judgment: clean",
	}
	o := newGeminiOracle(api, "", nil, WithSleep(noSleep))

	text, err := o.Judge(context.Background(), []byte{1}, "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, "Judgment: clean", text)
	require.Equal(t, 2, api.gets)
	require.Equal(t, []string{"files/well"}, api.deleted)
}

func TestGeminiOracle_UploadWaitTimeout(t *testing.T) {
	api := &fakeAPI{states: []genai.FileState{genai.FileStateProcessing}}
	o := newGeminiOracle(api, "", nil, WithSleep(noSleep))

	_, err := o.Judge(context.Background(), []byte{1}, "image/jpeg")
	require.ErrorIs(t, err, entity.ErrAssetTimeout)
	require.Equal(t, 30, api.gets)
	require.Len(t, api.deleted, 1)
}

func TestGeminiOracle_FailedFile(t *testing.T) {
	api := &fakeAPI{states: []genai.FileState{genai.FileStateFailed}}
	o := newGeminiOracle(api, "", nil, WithSleep(noSleep))

	_, err := o.Judge(context.Background(), []byte{1}, "image/jpeg")
	require.ErrorIs(t, err, entity.ErrOracleFailure)
}

func TestClassify(t *testing.T) {
	limited := classify("generate", genai.APIError{Code: 429, Message: "Quota exceeded, please retry in 12.5s"})
	require.ErrorIs(t, limited, entity.ErrRateLimited)
	var rl *entity.RateLimitError
	require.True(t, errors.As(limited, &rl))
	require.Equal(t, 13500*time.Millisecond, rl.RetryAfter)

	withInfo := classify("generate", genai.APIError{
		Code:    429,
		Details: []map[string]any{{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "20s"}},
	})
	require.True(t, errors.As(withInfo, &rl))
	require.Equal(t, 20*time.Second, rl.RetryAfter)

	other := classify("generate", genai.APIError{Code: 400, Message: "bad image"})
	require.ErrorIs(t, other, entity.ErrOracleFailure)
	require.NotErrorIs(t, other, entity.ErrRateLimited)

	require.ErrorIs(t, classify("upload", context.DeadlineExceeded), context.DeadlineExceeded)
}

func TestNewGeminiOracle_RequiresKey(t *testing.T) {
	_, err := NewGeminiOracle(context.Background(), "", "", nil)
	require.ErrorIs(t, err, entity.ErrConfiguration)
}
