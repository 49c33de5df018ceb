package dataexplorer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/nao1215/dataexplorer/domain/model"
	"github.com/nao1215/dataexplorer/ingest"
)

const opLoad = "dataexplorer.Load"

// TableCreator stores parsed tables.
type TableCreator interface {
	CreateOrReplace(ctx context.Context, name string, tbl *model.Table) (*model.CreateResult, error)
}

// Loader collects files and directories and loads every supported file into
// a store as its own table.
//
// The typical usage pattern is:
//
//	results, err := dataexplorer.NewLoader().
//		AddPath("data.csv").
//		AddFS(embeddedFS).
//		Load(ctx, st)
type Loader struct {
	paths       []string
	filesystems []fs.FS
	processor   *ingest.Processor
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{processor: ingest.New()}
}

// WithProcessor replaces the file processor.
func (l *Loader) WithProcessor(p *ingest.Processor) *Loader {
	l.processor = p
	return l
}

// AddPath adds a file or a directory. Directories are walked recursively and
// unsupported files inside them are skipped.
func (l *Loader) AddPath(path string) *Loader {
	l.paths = append(l.paths, path)
	return l
}

// AddPaths adds several files or directories.
func (l *Loader) AddPaths(paths ...string) *Loader {
	l.paths = append(l.paths, paths...)
	return l
}

// AddFS adds every supported file of filesystem, for example a go:embed FS.
func (l *Loader) AddFS(filesystem fs.FS) *Loader {
	l.filesystems = append(l.filesystems, filesystem)
	return l
}

// source is one file to load, either from disk or from an fs.FS.
type source struct {
	name  string
	path  string
	fsys  fs.FS
	table string
}

// collect validates the inputs and resolves them to files. Two files that
// map to the same table name are rejected.
func (l *Loader) collect() ([]source, error) {
	if len(l.paths) == 0 && len(l.filesystems) == 0 {
		return nil, model.ES(opLoad, model.KindInvalidArgument, "at least one path must be provided")
	}

	var sources []source
	for _, path := range l.paths {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, model.ES(opLoad, model.KindNotFound, "path does not exist: %s", path).WithFile(path)
			}
			return nil, model.E(opLoad, model.KindOther, fmt.Errorf("failed to stat path: %w", err)).WithFile(path)
		}
		if !info.IsDir() {
			if !model.IsSupportedFile(path) {
				return nil, model.ES(opLoad, model.KindUnsupportedFormat, "unsupported file type").WithFile(path)
			}
			sources = append(sources, source{name: filepath.Base(path), path: path})
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && model.IsSupportedFile(p) {
				sources = append(sources, source{name: d.Name(), path: p})
			}
			return nil
		})
		if err != nil {
			return nil, model.E(opLoad, model.KindOther, fmt.Errorf("failed to walk directory: %w", err)).WithFile(path)
		}
	}

	for _, filesystem := range l.filesystems {
		if filesystem == nil {
			return nil, model.ES(opLoad, model.KindInvalidArgument, "FS cannot be nil")
		}
		err := fs.WalkDir(filesystem, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && model.IsSupportedFile(p) {
				sources = append(sources, source{name: d.Name(), path: p, fsys: filesystem})
			}
			return nil
		})
		if err != nil {
			return nil, model.E(opLoad, model.KindOther, fmt.Errorf("failed to walk filesystem: %w", err))
		}
	}

	if len(sources) == 0 {
		return nil, model.ES(opLoad, model.KindInvalidArgument, "no supported files found")
	}

	seen := make(map[string]string, len(sources))
	for i := range sources {
		sources[i].table = model.TableNameFromFileName(sources[i].name)
		if prev, ok := seen[sources[i].table]; ok {
			return nil, model.ES(opLoad, model.KindInvalidArgument,
				"duplicate table name %q from %s and %s", sources[i].table, prev, sources[i].path).WithTable(sources[i].table)
		}
		seen[sources[i].table] = sources[i].path
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].table < sources[j].table })
	return sources, nil
}

// Load parses every collected file and stores it. Loading stops at the first
// failure; tables stored before it are kept.
func (l *Loader) Load(ctx context.Context, st TableCreator) ([]*model.CreateResult, error) {
	sources, err := l.collect()
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx)
	results := make([]*model.CreateResult, 0, len(sources))
	for _, src := range sources {
		tbl, err := l.parse(ctx, src)
		if err != nil {
			return results, err
		}
		res, err := st.CreateOrReplace(ctx, src.table, tbl)
		if err != nil {
			return results, err
		}
		logger.Info().Str("file", src.path).Str("table", res.TableName).Int("rows", res.RowCount).Msg("file loaded")
		results = append(results, res)
	}
	return results, nil
}

func (l *Loader) parse(ctx context.Context, src source) (*model.Table, error) {
	if src.fsys == nil {
		return l.processor.Process(ctx, src.path, src.name)
	}
	f, err := src.fsys.Open(src.path)
	if err != nil {
		return nil, model.E(opLoad, model.KindOther, fmt.Errorf("failed to open FS file: %w", err)).WithFile(src.path)
	}
	defer f.Close()
	return l.processor.ProcessReader(ctx, f, src.name)
}
