package session

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tma-generator/models"
)

type memoryStore struct {
	saved   []models.Settings
	saveErr error
}

func (m *memoryStore) Load(context.Context) (models.Settings, error) {
	if len(m.saved) == 0 {
		return models.DefaultSettings(), nil
	}
	return m.saved[len(m.saved)-1], nil
}

func (m *memoryStore) Save(_ context.Context, s models.Settings) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, s)
	return nil
}

type recorder struct {
	runs []models.GenerationRun
}

func (r *recorder) RecordRun(_ context.Context, run models.GenerationRun) error {
	r.runs = append(r.runs, run)
	return nil
}

func newSession() (*Session, *memoryStore, *recorder) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := &memoryStore{}
	rec := &recorder{}
	s := &Session{
		Fs:          afero.NewMemMapFs(),
		Store:       store,
		Recorder:    rec,
		ResourceDir: "/styles",
		Log:         log,
		Now:         func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	return s, store, rec
}

func request(questions ...models.RawQuestion) models.GenerateRequest {
	settings := models.DefaultSettings()
	settings.Output = "/work/out"
	return models.GenerateRequest{Settings: settings, Questions: questions}
}

func TestGenerateSuccess(t *testing.T) {
	s, store, rec := newSession()
	require.NoError(t, afero.WriteFile(s.Fs, "/styles/tma.sty", []byte("% style"), 0o644))

	result := s.Generate(context.Background(), request(models.RawQuestion{Marks: "100", Parts: "a,b", Subparts: "a:i,ii"}))

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "TMA files successfully created in /work/out", result.Message)
	assert.Equal(t, "MATH101 TMA 04 (2026)", result.ProjectName)
	assert.Equal(t, []string{"tma.sty"}, result.CopiedResources)
	assert.Equal(t, []string{"Q1: 100 marks", "  (a)", "    (i)", "    (ii)", "  (b)"}, result.Summary)
	assert.NotEmpty(t, result.RunID)

	exists, err := afero.Exists(s.Fs, "/work/out/q1a_1.tex")
	require.NoError(t, err)
	assert.True(t, exists)

	require.Len(t, store.saved, 1)
	assert.Equal(t, "/work/out", store.saved[0].Output)

	require.Len(t, rec.runs, 1)
	assert.True(t, rec.runs[0].Success)
	assert.Equal(t, result.RunID, rec.runs[0].ID)
	assert.Equal(t, 1, rec.runs[0].Questions)
}

func TestGenerateValidationErrorWritesNothing(t *testing.T) {
	s, store, rec := newSession()

	result := s.Generate(context.Background(), request(models.RawQuestion{Marks: "100", Parts: "a,b", Subparts: "c:i,ii"}))

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "Question 1: Subpart references part 'c'")
	exists, err := afero.DirExists(s.Fs, "/work/out")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, store.saved)
	require.Len(t, rec.runs, 1)
	assert.False(t, rec.runs[0].Success)
}

func TestGenerateNoQuestions(t *testing.T) {
	s, _, _ := newSession()
	result := s.Generate(context.Background(), request())
	assert.False(t, result.Success)
	assert.Equal(t, "Please add at least one question.", result.Message)
	assert.Equal(t, "MATH101 TMA 04 (2026)", result.ProjectName)
}

func TestGenerateRejectsBasenameWithPath(t *testing.T) {
	s, store, _ := newSession()
	req := request(models.RawQuestion{Marks: "100", Parts: "a"})
	req.Settings.Basename = "../../etc/evil"

	result := s.Generate(context.Background(), req)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "main file name must not contain")
	for _, path := range []string{"/etc/evil.tex", "/work/out"} {
		exists, err := afero.Exists(s.Fs, path)
		require.NoError(t, err)
		assert.False(t, exists, path)
	}
	assert.Empty(t, store.saved)
}

func TestCheckTargetOutputRoot(t *testing.T) {
	s, _, _ := newSession()
	s.OutputRoot = "/srv/tma"

	tests := []struct {
		output string
		want   string
		err    error
	}{
		{"./output", "/srv/tma/output", nil},
		{"m208/tma02", "/srv/tma/m208/tma02", nil},
		{"/srv/tma/out", "/srv/tma/out", nil},
		{"/home/alice/thesis", "", ErrOutputOutsideRoot},
		{"../thesis", "", ErrOutputOutsideRoot},
		{"/srv/tma", "", ErrOutputOutsideRoot},
		{"/srv/tmax/out", "", ErrOutputOutsideRoot},
		{" ", "", ErrNoOutput},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			settings := models.DefaultSettings()
			settings.Output = tt.output
			got, err := s.CheckTarget(settings)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateOutsideOutputRootLeavesDirectoryAlone(t *testing.T) {
	s, _, _ := newSession()
	s.OutputRoot = "/srv/tma"
	require.NoError(t, afero.WriteFile(s.Fs, "/home/alice/thesis/main.tex", []byte("x"), 0o644))
	req := request(models.RawQuestion{Marks: "100", Parts: "a"})
	req.Settings.Output = "/home/alice/thesis"

	result := s.Generate(context.Background(), req)
	assert.False(t, result.Success)
	assert.True(t, strings.HasPrefix(result.Message, "Error creating output directory:"), result.Message)
	exists, err := afero.Exists(s.Fs, "/home/alice/thesis/main.tex")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGenerateMarksMismatchNeedsConfirmation(t *testing.T) {
	s, store, _ := newSession()
	req := request(models.RawQuestion{Marks: "30", Parts: "a"})

	declined := s.Generate(context.Background(), req)
	assert.False(t, declined.Success)
	assert.True(t, declined.NeedsConfirm)
	assert.Contains(t, declined.Warning, "Total marks: 30 (should be 100)")
	assert.Equal(t, "File generation cancelled. Please adjust your questions so the total marks equal 100 (currently: 30).", declined.Message)
	assert.Empty(t, store.saved)

	req.AcceptMarksMismatch = true
	accepted := s.Generate(context.Background(), req)
	assert.True(t, accepted.Success, accepted.Message)
	assert.NotEmpty(t, accepted.Warning)
	assert.False(t, accepted.NeedsConfirm)
	assert.Len(t, store.saved, 1)
}

func TestGenerateSettingsSaveFailureIsNotFatal(t *testing.T) {
	s, store, _ := newSession()
	store.saveErr = errors.New("disk full")

	result := s.Generate(context.Background(), request(models.RawQuestion{Marks: "100", Parts: "a"}))
	assert.True(t, result.Success, result.Message)
}

func TestGenerateIOErrorIsReported(t *testing.T) {
	s, store, _ := newSession()
	s.Fs = afero.NewReadOnlyFs(afero.NewMemMapFs())

	result := s.Generate(context.Background(), request(models.RawQuestion{Marks: "100", Parts: "a"}))
	assert.False(t, result.Success)
	assert.True(t, strings.HasPrefix(result.Message, "Error creating output directory:"), result.Message)
	assert.Empty(t, store.saved)
}

type panicFs struct{ afero.Fs }

func (panicFs) Stat(string) (os.FileInfo, error) { panic("boom") }

func TestGenerateRecoversPanics(t *testing.T) {
	s, _, rec := newSession()
	s.Fs = panicFs{afero.NewMemMapFs()}

	result := s.Generate(context.Background(), request(models.RawQuestion{Marks: "100", Parts: "a"}))
	assert.False(t, result.Success)
	assert.Equal(t, "Unexpected error: boom", result.Message)
	require.Len(t, rec.runs, 1)
}

func TestValidate(t *testing.T) {
	s, _, _ := newSession()

	ok := s.Validate(request(models.RawQuestion{Marks: "60", Parts: "a"}))
	assert.True(t, ok.Success)
	assert.Contains(t, ok.Warning, "40 short of 100")
	assert.Equal(t, []string{"Q1: 60 marks", "  (a)"}, ok.Summary)

	bad := s.Validate(request(models.RawQuestion{Parts: "a,a"}))
	assert.False(t, bad.Success)
	assert.Contains(t, bad.Message, "Duplicate parts found: a")
}

func TestReport(t *testing.T) {
	s, _, _ := newSession()
	result := s.Generate(context.Background(), request(models.RawQuestion{Marks: "100", Parts: "a"}))

	lines := Report(result)
	assert.Equal(t, "Question Structure:", lines[0])
	assert.Contains(t, lines, "Created directory: /work/out")
	assert.Contains(t, lines, "  MATH101 TMA 04 (2026)")
	assert.Equal(t, "Generation completed successfully!", lines[len(lines)-1])

	failed := Report(models.GenerationResult{Message: "Question 1: bad"})
	assert.Equal(t, []string{"", "Question 1: bad"}, failed)
}
