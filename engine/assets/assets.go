package assets

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spaghettifunk/voxel/engine/assets/loaders"
	"github.com/spaghettifunk/voxel/engine/core"
	"golang.org/x/sync/errgroup"
)

// Asset is one decoded file. Data is *loaders.ShaderData, *loaders.ImageData
// or *loaders.MeshData depending on Type.
type Asset struct {
	ID       uuid.UUID
	Name     string
	Path     string
	Type     AssetType
	Data     any
	LoadedAt time.Time
}

// AssetManager resolves asset names relative to a root directory and keeps
// an index of the files it has seen.
type AssetManager struct {
	root    string
	loaders map[AssetType]Loader

	mutex sync.RWMutex
	index map[string]AssetType

	watcher   *fsnotify.Watcher
	changes   chan string
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewAssetManager(root string) (*AssetManager, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "asset directory")
	}
	if !info.IsDir() {
		return nil, errors.Newf("asset root %s is not a directory", root)
	}

	am := &AssetManager{
		root:    root,
		loaders: make(map[AssetType]Loader),
		index:   make(map[string]AssetType),
		changes: make(chan string, 64),
		done:    make(chan struct{}),
	}
	am.RegisterLoader(AssetTypeShader, &loaders.ShaderLoader{})
	am.RegisterLoader(AssetTypeImage, &loaders.ImageLoader{})
	am.RegisterLoader(AssetTypeModel, &loaders.ModelLoader{})

	if err := am.scan(); err != nil {
		return nil, err
	}
	return am, nil
}

// Register loaders for each asset type
func (am *AssetManager) RegisterLoader(assetType AssetType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[assetType] = loader
}

func (am *AssetManager) Root() string {
	return am.root
}

// Path returns the file path of name.
func (am *AssetManager) Path(name string) string {
	return filepath.Join(am.root, filepath.FromSlash(name))
}

// Exists reports whether name is a known asset.
func (am *AssetManager) Exists(name string) bool {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	_, ok := am.index[filepath.ToSlash(name)]
	return ok
}

// List returns the indexed asset names of one type, sorted.
func (am *AssetManager) List(assetType AssetType) []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	var out []string
	for name, t := range am.index {
		if t == assetType {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Load decodes name with the loader for its extension.
func (am *AssetManager) Load(name string) (*Asset, error) {
	assetType := determineAssetType(name)
	if assetType == AssetTypeNone {
		return nil, errors.Newf("unknown asset type for %s", name)
	}
	am.mutex.RLock()
	loader, ok := am.loaders[assetType]
	am.mutex.RUnlock()
	if !ok {
		return nil, errors.Newf("no loader registered for asset type %s", assetType)
	}

	path := am.Path(name)
	data, err := loader.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", name)
	}
	am.track(filepath.ToSlash(name), assetType)

	core.LogDebug("loaded %s asset %s", assetType, name)
	return &Asset{
		ID:       uuid.New(),
		Name:     name,
		Path:     path,
		Type:     assetType,
		Data:     data,
		LoadedAt: time.Now(),
	}, nil
}

// LoadAll decodes names in parallel. Results keep the order of names. The
// first failure cancels the loads that have not started.
func (am *AssetManager) LoadAll(ctx context.Context, names []string) ([]*Asset, error) {
	out := make([]*Asset, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			asset, err := am.Load(name)
			if err != nil {
				return err
			}
			out[i] = asset
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Changes delivers the names of assets written or created while watching.
// Events are dropped when nobody drains the channel.
func (am *AssetManager) Changes() <-chan string {
	return am.changes
}

// Watch starts reporting file changes below the root.
func (am *AssetManager) Watch() error {
	if am.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating asset watcher")
	}
	am.watcher = watcher
	if err := am.watchRecursive(am.root); err != nil {
		watcher.Close()
		am.watcher = nil
		return err
	}

	am.wg.Add(1)
	go am.start()
	return nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.watcher.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogWarn("watching %s: %s", e.Name, err)
			}
			return
		}
	}

	name, err := am.relative(e.Name)
	if err != nil {
		return
	}
	assetType := determineAssetType(name)
	if assetType == AssetTypeNone {
		return
	}

	switch {
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		am.untrack(name)
	case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
		am.track(name, assetType)
		select {
		case am.changes <- name:
		default:
			core.LogWarn("asset change for %s dropped", name)
		}
	}
}

// watchRecursive adds every directory under path to the watch list and
// indexes the files it finds.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return am.watcher.Add(walkPath)
		}
		am.indexFile(walkPath)
		return nil
	})
}

func (am *AssetManager) scan() error {
	return filepath.WalkDir(am.root, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			am.indexFile(walkPath)
		}
		return nil
	})
}

func (am *AssetManager) indexFile(path string) {
	name, err := am.relative(path)
	if err != nil {
		return
	}
	if t := determineAssetType(name); t != AssetTypeNone {
		am.track(name, t)
	}
}

func (am *AssetManager) relative(path string) (string, error) {
	rel, err := filepath.Rel(am.root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func (am *AssetManager) track(name string, assetType AssetType) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.index[name] = assetType
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) untrack(name string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.index, name)
}

// Close stops watching. The manager can still load assets afterwards.
func (am *AssetManager) Close() error {
	var err error
	am.closeOnce.Do(func() {
		close(am.done)
		if am.watcher != nil {
			err = am.watcher.Close()
		}
		am.wg.Wait()
	})
	return err
}
