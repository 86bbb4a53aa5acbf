package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/semlayer/semlayer/internal/config"
	"github.com/semlayer/semlayer/internal/db"
	"github.com/semlayer/semlayer/internal/git"
)

// ModelFile is one SQL file of a layer.
type ModelFile struct {
	Layer string
	Name  string
	Path  string
}

// ModelResult is the outcome of executing one model file.
type ModelResult struct {
	ModelFile
	Duration time.Duration
	Err      error
}

// LayerResult collects the models of one layer. Missing is set when the
// layer directory does not exist.
type LayerResult struct {
	Layer   string
	Missing bool
	Models  []ModelResult
}

// BuildResult summarizes an install run.
type BuildResult struct {
	BuildID  string
	Revision string
	Layers   []LayerResult
}

// Counts returns the number of models that succeeded and failed.
func (b *BuildResult) Counts() (ok, failed int) {
	for _, l := range b.Layers {
		for _, m := range l.Models {
			if m.Err != nil {
				failed++
			} else {
				ok++
			}
		}
	}
	return ok, failed
}

// Installer executes the SQL files of each layer against the store.
type Installer struct {
	store   *db.Store
	dir     string
	layers  []string
	log     *zap.Logger
	onModel func(ModelResult)
	now     func() time.Time
}

func NewInstaller(store *db.Store, cfg config.ModelsConfig, log *zap.Logger) *Installer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Installer{
		store:  store,
		dir:    cfg.Dir,
		layers: cfg.Layers,
		log:    log,
		now:    time.Now,
	}
}

// OnModel registers a callback invoked after each model runs.
func (i *Installer) OnModel(fn func(ModelResult)) *Installer {
	i.onModel = fn
	return i
}

// Files lists the model files of a layer in lexical order. A missing
// layer directory returns os.ErrNotExist.
func (i *Installer) Files(layer string) ([]ModelFile, error) {
	dir := filepath.Join(i.dir, layer)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []ModelFile
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".sql") {
			continue
		}
		files = append(files, ModelFile{
			Layer: layer,
			Name:  strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Path:  filepath.Join(dir, e.Name()),
		})
	}
	sort.Slice(files, func(a, b int) bool { return files[a].Path < files[b].Path })
	return files, nil
}

// Build runs every layer in order. Failing models are recorded and the run
// continues; only cancellation stops it early.
func (i *Installer) Build(ctx context.Context) (*BuildResult, error) {
	res := &BuildResult{
		BuildID:  uuid.NewString(),
		Revision: git.Revision(i.dir),
	}
	i.log.Info("model build started",
		zap.String("build_id", res.BuildID),
		zap.String("revision", res.Revision))

	for _, layer := range i.layers {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		lr, err := i.buildLayer(ctx, res, layer)
		res.Layers = append(res.Layers, lr)
		if err != nil {
			return res, err
		}
	}

	ok, failed := res.Counts()
	i.log.Info("model build finished", zap.Int("ok", ok), zap.Int("failed", failed))
	return res, nil
}

func (i *Installer) buildLayer(ctx context.Context, build *BuildResult, layer string) (LayerResult, error) {
	lr := LayerResult{Layer: layer}

	files, err := i.Files(layer)
	if errors.Is(err, os.ErrNotExist) {
		lr.Missing = true
		i.log.Warn("layer directory not found", zap.String("layer", layer), zap.String("dir", filepath.Join(i.dir, layer)))
		return lr, nil
	}
	if err != nil {
		return lr, fmt.Errorf("failed to read layer %s: %w", layer, err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return lr, err
		}
		mr := i.runModel(ctx, f)
		lr.Models = append(lr.Models, mr)
		i.record(ctx, build, mr)
		if i.onModel != nil {
			i.onModel(mr)
		}
	}
	return lr, nil
}

func (i *Installer) runModel(ctx context.Context, f ModelFile) ModelResult {
	start := i.now()
	mr := ModelResult{ModelFile: f}

	content, err := os.ReadFile(f.Path)
	if err != nil {
		mr.Err = fmt.Errorf("failed to read %s: %w", f.Path, err)
	} else if strings.TrimSpace(string(content)) == "" {
		mr.Err = fmt.Errorf("%s is empty", f.Path)
	} else if _, err := i.store.DB().ExecContext(ctx, string(content)); err != nil {
		mr.Err = err
	}
	mr.Duration = i.now().Sub(start)

	if mr.Err != nil {
		i.log.Error("model failed", zap.String("layer", f.Layer), zap.String("model", f.Name), zap.Error(mr.Err))
	} else {
		i.log.Debug("model built", zap.String("layer", f.Layer), zap.String("model", f.Name), zap.Duration("duration", mr.Duration))
	}
	return mr
}

func (i *Installer) record(ctx context.Context, build *BuildResult, mr ModelResult) {
	status := db.StatusSuccess
	if mr.Err != nil {
		status = db.ErrorStatus(mr.Err)
	}
	err := db.AppendModelBuild(ctx, i.store.DB(), db.ModelBuild{
		BuildID:    build.BuildID,
		Layer:      mr.Layer,
		Model:      mr.Name,
		FilePath:   mr.Path,
		BuiltAt:    i.now(),
		DurationMS: mr.Duration.Milliseconds(),
		Status:     status,
		Revision:   build.Revision,
	})
	if err != nil {
		i.log.Warn("failed to record model build", zap.String("model", mr.Name), zap.Error(err))
	}
}

// Scaffold creates any missing layer directories under dir.
func Scaffold(cfg config.ModelsConfig) ([]string, error) {
	var created []string
	for _, layer := range cfg.Layers {
		path := filepath.Join(cfg.Dir, layer)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return created, fmt.Errorf("failed to create %s: %w", path, err)
		}
		created = append(created, path)
	}
	return created, nil
}
