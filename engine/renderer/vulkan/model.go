package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
)

type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

const vertexSize = uint32(unsafe.Sizeof(Vertex{}))

func VertexBindingDescriptions() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    vertexSize,
		InputRate: vk.VertexInputRateVertex,
	}}
}

// VertexAttributeDescriptions matches the shader input locations 0..3.
func VertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.Position))},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.Color))},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.Normal))},
		{Location: 3, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.UV))},
	}
}

// ModelBuilder is CPU-side geometry. Indices are optional.
type ModelBuilder struct {
	Vertices []Vertex
	Indices  []uint32
}

// Model holds device-local vertex and index buffers for one mesh.
type Model struct {
	ctx *VulkanContext

	vertexBuffer *Buffer
	vertexCount  uint32

	indexBuffer *Buffer
	indexCount  uint32
}

func NewModel(ctx *VulkanContext, builder *ModelBuilder) (*Model, error) {
	m := &Model{ctx: ctx}
	if err := m.createVertexBuffers(builder.Vertices); err != nil {
		return nil, err
	}
	if err := m.createIndexBuffers(builder.Indices); err != nil {
		m.Destroy()
		return nil, err
	}
	return m, nil
}

func (m *Model) createVertexBuffers(vertices []Vertex) error {
	if len(vertices) < 3 {
		return errors.AssertionFailedf("vertex count must be at least 3, got %d", len(vertices))
	}
	m.vertexCount = uint32(len(vertices))
	buffer, err := m.uploadDeviceLocal(vertices, vk.DeviceSize(vertexSize), m.vertexCount, vk.BufferUsageVertexBufferBit)
	if err != nil {
		return errors.Wrap(err, "creating vertex buffer")
	}
	m.vertexBuffer = buffer
	return nil
}

func (m *Model) createIndexBuffers(indices []uint32) error {
	if len(indices) == 0 {
		return nil
	}
	m.indexCount = uint32(len(indices))
	buffer, err := m.uploadDeviceLocal(indices, 4, m.indexCount, vk.BufferUsageIndexBufferBit)
	if err != nil {
		return errors.Wrap(err, "creating index buffer")
	}
	m.indexBuffer = buffer
	return nil
}

// uploadDeviceLocal copies data into a new device-local buffer through a
// staging buffer.
func (m *Model) uploadDeviceLocal(data any, instanceSize vk.DeviceSize, count uint32, usage vk.BufferUsageFlagBits) (*Buffer, error) {
	encoded, err := EncodeData(data)
	if err != nil {
		return nil, err
	}
	staging, err := NewStagingBuffer(m.ctx, encoded)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	buffer, err := NewBuffer(m.ctx, instanceSize, count,
		vk.BufferUsageFlags(usage|vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		1)
	if err != nil {
		return nil, err
	}
	if err := CopyBuffer(m.ctx, staging, buffer, vk.DeviceSize(len(encoded))); err != nil {
		buffer.Destroy()
		return nil, err
	}
	return buffer, nil
}

func (m *Model) Bind(cb *VulkanCommandBuffer) {
	m.ctx.Driver.CmdBindVertexBuffers(cb.Handle, 0, []vk.Buffer{m.vertexBuffer.Handle}, []vk.DeviceSize{0})
	if m.indexBuffer != nil {
		m.ctx.Driver.CmdBindIndexBuffer(cb.Handle, m.indexBuffer.Handle, 0, vk.IndexTypeUint32)
	}
}

func (m *Model) Draw(cb *VulkanCommandBuffer) {
	if m.indexBuffer != nil {
		m.ctx.Driver.CmdDrawIndexed(cb.Handle, m.indexCount, 1, 0, 0, 0)
		return
	}
	m.ctx.Driver.CmdDraw(cb.Handle, m.vertexCount, 1, 0, 0)
}

func (m *Model) VertexCount() uint32 { return m.vertexCount }
func (m *Model) IndexCount() uint32  { return m.indexCount }

func (m *Model) Destroy() {
	if m.vertexBuffer != nil {
		m.vertexBuffer.Destroy()
		m.vertexBuffer = nil
	}
	if m.indexBuffer != nil {
		m.indexBuffer.Destroy()
		m.indexBuffer = nil
	}
}
