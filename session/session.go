// Package session is the boundary of a single "generate" action: it validates the
// raw rows, applies the marks policy, runs the generator, and persists settings
// once the run succeeds. Nothing it returns is an error; every failure becomes a
// GenerationResult message.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"tma-generator/generator"
	"tma-generator/models"
	"tma-generator/settings"
	"tma-generator/structure"
	"tma-generator/utils"
)

var (
	// ErrOutputOutsideRoot is returned for an output directory that is not strictly
	// below Session.OutputRoot.
	ErrOutputOutsideRoot = errors.New("output directory is outside the output root")
	// ErrNoOutput is returned when no output directory is given.
	ErrNoOutput = errors.New("no output directory given")
	// ErrUnsafeBasename is returned for a main file name that is not a plain file name.
	ErrUnsafeBasename = errors.New("main file name must not contain '/', '\\' or '..'")
)

// RunRecorder stores a record of each generation attempt.
type RunRecorder interface {
	RecordRun(ctx context.Context, run models.GenerationRun) error
}

// Session wires the parser, generator and settings store together.
type Session struct {
	Fs          afero.Fs
	Store       settings.Store
	Recorder    RunRecorder // optional
	ResourceDir string
	OutputRoot  string // when set, every output directory must lie below it
	Log         logrus.FieldLogger
	Now         func() time.Time
}

// New returns a session on the OS filesystem.
func New(store settings.Store, resourceDir string, log logrus.FieldLogger) *Session {
	return &Session{
		Fs:          afero.NewOsFs(),
		Store:       store,
		ResourceDir: resourceDir,
		Log:         log,
		Now:         time.Now,
	}
}

// Validate builds the structure without touching disk. The result carries the
// summary and, when the marks do not total 100, the warning text.
func (s *Session) Validate(req models.GenerateRequest) models.GenerationResult {
	result := models.GenerationResult{Settings: req.Settings, ProjectName: generator.ComposeExternalProjectName(req.Settings)}
	st, err := structure.Build(req.Questions)
	if err != nil {
		result.Message = err.Error()
		return result
	}
	result.Summary = structure.Summary(st)
	if w := structure.CheckMarksTotal(st); w != nil {
		result.Warning = w.Error()
	}
	result.Success = true
	result.Message = "Structure is valid."
	return result
}

// Generate performs one full generation run. Panics are recovered and reported
// as "Unexpected error: ...".
func (s *Session) Generate(ctx context.Context, req models.GenerateRequest) (result models.GenerationResult) {
	runID := uuid.NewString()
	log := s.Log.WithFields(logrus.Fields{"run_id": runID, "course": req.Settings.Course})
	result = models.GenerationResult{
		RunID:       runID,
		Settings:    req.Settings,
		ProjectName: generator.ComposeExternalProjectName(req.Settings),
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("generation panicked")
			result.Success = false
			result.Message = fmt.Sprintf("Unexpected error: %v", r)
		}
		s.record(ctx, log, req, result)
	}()

	log.WithField("state", "validating").Debug("validating structure")
	st, err := structure.Build(req.Questions)
	if err != nil {
		log.WithError(err).Info("validation failed")
		result.Message = err.Error()
		return result
	}
	result.Summary = structure.Summary(st)

	if w := structure.CheckMarksTotal(st); w != nil {
		result.Warning = w.Error()
		if !req.AcceptMarksMismatch {
			log.WithField("total", w.Total).Info("marks total not confirmed")
			result.NeedsConfirm = true
			result.Message = w.Cancellation()
			return result
		}
		log.WithField("total", w.Total).Warn("continuing with marks total other than 100")
	}

	cfg := req.Settings
	cfg.Output, err = s.CheckTarget(cfg)
	if err != nil {
		log.WithError(err).Warn("output target rejected")
		result.Message = err.Error()
		return result
	}

	gen := generator.New(s.Fs, cfg)
	gen.ResourceDir = s.ResourceDir
	gen.Log = log
	if s.Now != nil {
		gen.Now = s.Now
	}

	out, err := gen.Run(st)
	if err != nil {
		var runErr *generator.RunError
		if errors.As(err, &runErr) {
			log = log.WithField("state", runErr.State)
		}
		log.WithError(err).Error("generation aborted")
		result.Message = err.Error()
		return result
	}

	result.Success = true
	result.OutputDir = out.Dir
	result.Files = out.Files
	result.CopiedResources = out.CopiedResources
	result.Message = fmt.Sprintf("TMA files successfully created in %s", out.Dir)

	if err := s.Store.Save(ctx, req.Settings); err != nil {
		log.WithError(err).Warn("Could not save settings")
	}
	return result
}

// CheckTarget validates where a request would write and returns the resolved
// output directory. The main file name must be a plain file name. With OutputRoot
// set, relative outputs are taken from the root and anything not strictly below
// it is rejected; otherwise the output is made absolute on the OS filesystem.
func (s *Session) CheckTarget(settings models.Settings) (string, error) {
	if !utils.IsSinglePathElement(settings.Basename) {
		return "", fmt.Errorf("Error creating main document: %q: %w", settings.Basename, ErrUnsafeBasename)
	}
	output := strings.TrimSpace(settings.Output)
	if output == "" {
		return "", fmt.Errorf("Error creating output directory: %w", ErrNoOutput)
	}

	if s.OutputRoot == "" {
		if isOsFs(s.Fs) {
			if abs, err := filepath.Abs(output); err == nil {
				return abs, nil
			}
		}
		return filepath.Clean(output), nil
	}

	root := filepath.Clean(s.OutputRoot)
	if !filepath.IsAbs(output) {
		output = filepath.Join(root, output)
	}
	output = filepath.Clean(output)
	rel, err := filepath.Rel(root, output)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("Error creating output directory: %s is not inside %s: %w", output, root, ErrOutputOutsideRoot)
	}
	return output, nil
}

func (s *Session) record(ctx context.Context, log logrus.FieldLogger, req models.GenerateRequest, result models.GenerationResult) {
	if s.Recorder == nil {
		return
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	run := models.GenerationRun{
		ID:        result.RunID,
		Timestamp: now(),
		Course:    req.Settings.Course,
		TMARef:    req.Settings.TMARef,
		OutputDir: result.OutputDir,
		Questions: len(req.Questions),
		Success:   result.Success,
		Message:   result.Message,
	}
	if err := s.Recorder.RecordRun(ctx, run); err != nil {
		log.WithError(err).Warn("failed to record generation run")
	}
}

func isOsFs(fs afero.Fs) bool {
	_, ok := fs.(*afero.OsFs)
	return ok
}
