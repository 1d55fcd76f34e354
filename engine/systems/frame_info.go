package systems

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/voxel/engine/renderer/components"
	"github.com/spaghettifunk/voxel/engine/renderer/vulkan"
)

// FrameInfo is everything a render system needs to record one frame.
type FrameInfo struct {
	FrameIndex          int
	FrameTime           float32
	CommandBuffer       *vulkan.VulkanCommandBuffer
	Camera              *components.Camera
	GlobalDescriptorSet *vulkan.DescriptorSet
}

// GlobalUbo is the per-frame uniform block at set 0, binding 0. Field order
// and padding follow std140.
type GlobalUbo struct {
	Projection        mgl32.Mat4
	View              mgl32.Mat4
	AmbientLightColor mgl32.Vec4 // w is intensity
	LightPosition     mgl32.Vec3
	_                 float32
	LightColor        mgl32.Vec4 // w is intensity
}

// globalUboSize is the encoded size of GlobalUbo.
const globalUboSize = 2*64 + 16 + 16 + 16

func NewGlobalUbo() GlobalUbo {
	return GlobalUbo{
		Projection:        mgl32.Ident4(),
		View:              mgl32.Ident4(),
		AmbientLightColor: mgl32.Vec4{1, 1, 1, 0.02},
		LightPosition:     mgl32.Vec3{-1, -1, -1},
		LightColor:        mgl32.Vec4{1, 1, 1, 1},
	}
}

// SimplePushConstantData is pushed once per object. 128 bytes, the minimum
// push constant size every device supports.
type SimplePushConstantData struct {
	ModelMatrix  mgl32.Mat4
	NormalMatrix mgl32.Mat4
}

const simplePushConstantSize = 128
