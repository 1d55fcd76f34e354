package components

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/spaghettifunk/voxel/engine/renderer/vulkan"
)

// Mesh is geometry that can record its own bind and draw commands.
// *vulkan.Model implements it.
type Mesh interface {
	Bind(cb *vulkan.VulkanCommandBuffer)
	Draw(cb *vulkan.VulkanCommandBuffer)
}

// GameObject is anything with a transform. Objects without a model are
// skipped by the render systems, which makes them usable as a camera rig.
type GameObject struct {
	ID        uint32
	Model     Mesh
	Texture   *vulkan.Texture
	Color     mgl32.Vec3
	Transform TransformComponent
}

// NewGameObject takes the next id from ids.
func NewGameObject(ids *core.IDAllocator) *GameObject {
	obj := &GameObject{Transform: NewTransform()}
	obj.ID = ids.Acquire(obj)
	return obj
}

// Release returns the object's id to ids.
func (g *GameObject) Release(ids *core.IDAllocator) error {
	return ids.Release(g.ID)
}
