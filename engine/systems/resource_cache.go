package systems

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/voxel/engine/assets"
	"github.com/spaghettifunk/voxel/engine/assets/loaders"
	"github.com/spaghettifunk/voxel/engine/containers"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/spaghettifunk/voxel/engine/renderer/vulkan"
)

// Deferrer delays destruction until in-flight frames are done with a
// resource. *vulkan.Renderer implements it.
type Deferrer interface {
	Defer(destroy func()) error
}

// AssetSource loads decoded assets by name. *assets.AssetManager implements it.
type AssetSource interface {
	Load(name string) (*assets.Asset, error)
}

type destroyer interface {
	Destroy()
}

// ResourceCache shares GPU resources by asset name. The resource is created
// by the first Acquire and destroyed through the Deferrer when the last
// handle is released.
type ResourceCache[V destroyer] struct {
	kind  string
	cache *containers.RefCache[string, V]
	load  func(name string) (V, error)
}

func newResourceCache[V destroyer](kind string, deferrer Deferrer, load func(name string) (V, error)) *ResourceCache[V] {
	evict := func(name string, v V) {
		core.LogDebug("Releasing %s %s.", kind, name)
		if err := deferrer.Defer(v.Destroy); err != nil {
			core.LogError("deferring destruction of %s %s: %s", kind, name, err)
		}
	}
	return &ResourceCache[V]{
		kind:  kind,
		cache: containers.NewRefCache[string, V](evict),
		load:  load,
	}
}

func (c *ResourceCache[V]) Acquire(name string) (*containers.Handle[string, V], error) {
	h, err := c.cache.Acquire(name, func() (V, error) {
		core.LogDebug("Loading %s %s.", c.kind, name)
		return c.load(name)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "acquiring %s", c.kind)
	}
	return h, nil
}

func (c *ResourceCache[V]) Release(h *containers.Handle[string, V]) error {
	return c.cache.Release(h)
}

func (c *ResourceCache[V]) Refs(name string) int {
	return c.cache.Refs(name)
}

func (c *ResourceCache[V]) Len() int {
	return c.cache.Len()
}

// Clear destroys everything still cached, held or not.
func (c *ResourceCache[V]) Clear() {
	c.cache.Clear()
}

type (
	ModelCache   = ResourceCache[*vulkan.Model]
	TextureCache = ResourceCache[*vulkan.Texture]
)

func NewModelCache(ctx *vulkan.VulkanContext, source AssetSource, deferrer Deferrer) *ModelCache {
	return newResourceCache("model", deferrer, func(name string) (*vulkan.Model, error) {
		mesh, err := loadAs[*loaders.MeshData](source, name)
		if err != nil {
			return nil, err
		}
		return vulkan.NewModel(ctx, ModelBuilderFromMesh(mesh))
	})
}

func NewTextureCache(ctx *vulkan.VulkanContext, source AssetSource, deferrer Deferrer) *TextureCache {
	return newResourceCache("texture", deferrer, func(name string) (*vulkan.Texture, error) {
		img, err := loadAs[*loaders.ImageData](source, name)
		if err != nil {
			return nil, err
		}
		return vulkan.NewTexture(ctx, img.Pixels, img.Width, img.Height)
	})
}

// ModelBuilderFromMesh copies decoded mesh data into renderer vertices.
func ModelBuilderFromMesh(mesh *loaders.MeshData) *vulkan.ModelBuilder {
	b := &vulkan.ModelBuilder{
		Vertices: make([]vulkan.Vertex, len(mesh.Vertices)),
		Indices:  mesh.Indices,
	}
	for i, v := range mesh.Vertices {
		b.Vertices[i] = vulkan.Vertex(v)
	}
	return b
}

func loadAs[T any](source AssetSource, name string) (T, error) {
	var zero T
	a, err := source.Load(name)
	if err != nil {
		return zero, err
	}
	data, ok := a.Data.(T)
	if !ok {
		return zero, errors.Newf("asset %s is %s, not %T", name, a.Type, zero)
	}
	return data, nil
}
