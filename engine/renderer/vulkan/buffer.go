package vulkan

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	vmath "github.com/spaghettifunk/voxel/engine/math"
)

// Buffer is a device buffer holding instanceCount elements, each padded to
// the alignment the device needs for dynamic offsets.
type Buffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory

	ctx          *VulkanContext
	mapped       []byte
	mappedOffset vk.DeviceSize

	bufferSize          vk.DeviceSize
	allocationSize      vk.DeviceSize
	instanceCount       uint32
	instanceSize        vk.DeviceSize
	alignmentSize       vk.DeviceSize
	usageFlags          vk.BufferUsageFlags
	memoryPropertyFlags vk.MemoryPropertyFlags
}

func NewBuffer(ctx *VulkanContext, instanceSize vk.DeviceSize, instanceCount uint32, usage vk.BufferUsageFlags, memoryProperties vk.MemoryPropertyFlags, minOffsetAlignment vk.DeviceSize) (*Buffer, error) {
	if instanceSize == 0 || instanceCount == 0 {
		return nil, errors.AssertionFailedf("buffer of %d instances of %d bytes", instanceCount, instanceSize)
	}
	b := &Buffer{
		ctx:                 ctx,
		instanceCount:       instanceCount,
		instanceSize:        instanceSize,
		alignmentSize:       vmath.AlignUp(instanceSize, minOffsetAlignment),
		usageFlags:          usage,
		memoryPropertyFlags: memoryProperties,
	}
	b.bufferSize = b.alignmentSize * vk.DeviceSize(instanceCount)

	handle, err := ctx.Driver.CreateBuffer(&vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        b.bufferSize,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating buffer")
	}
	b.Handle = handle

	reqs := ctx.Driver.BufferMemoryRequirements(handle)
	memoryType, err := ctx.FindMemoryIndex(reqs.MemoryTypeBits, memoryProperties)
	if err != nil {
		ctx.Driver.DestroyBuffer(handle)
		return nil, err
	}
	memory, err := ctx.Driver.AllocateMemory(&vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memoryType,
	})
	if err != nil {
		ctx.Driver.DestroyBuffer(handle)
		return nil, errors.Wrapf(err, "allocating %d bytes of buffer memory", reqs.Size)
	}
	b.Memory = memory
	b.allocationSize = reqs.Size

	if err := ctx.Driver.BindBufferMemory(handle, memory, 0); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

// Map maps the whole buffer into host memory.
func (b *Buffer) Map() error {
	return b.MapRange(0, b.bufferSize)
}

func (b *Buffer) MapRange(offset, size vk.DeviceSize) error {
	if b.memoryPropertyFlags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) == 0 {
		return errors.AssertionFailedf("mapping a buffer without host-visible memory")
	}
	if b.mapped != nil {
		return errors.AssertionFailedf("buffer is already mapped")
	}
	if size == wholeSize {
		size = b.bufferSize - offset
	}
	if offset+size > b.bufferSize {
		return errors.AssertionFailedf("map range [%d, %d) exceeds buffer size %d", offset, offset+size, b.bufferSize)
	}
	data, err := b.ctx.Driver.MapMemory(b.Memory, offset, size)
	if err != nil {
		return err
	}
	b.mapped = data
	b.mappedOffset = offset
	return nil
}

func (b *Buffer) Unmap() {
	if b.mapped != nil {
		b.ctx.Driver.UnmapMemory(b.Memory)
		b.mapped = nil
		b.mappedOffset = 0
	}
}

func (b *Buffer) IsMapped() bool {
	return b.mapped != nil
}

// WriteToBuffer copies data into the mapped range at offset.
func (b *Buffer) WriteToBuffer(data []byte, offset vk.DeviceSize) error {
	if b.mapped == nil {
		return errors.AssertionFailedf("cannot write to an unmapped buffer")
	}
	end := offset + vk.DeviceSize(len(data))
	if end > vk.DeviceSize(len(b.mapped)) {
		return errors.AssertionFailedf("write [%d, %d) exceeds mapped size %d", offset, end, len(b.mapped))
	}
	copy(b.mapped[offset:end], data)
	return nil
}

func (b *Buffer) WriteToIndex(data []byte, index uint32) error {
	if index >= b.instanceCount {
		return errors.AssertionFailedf("instance %d out of range (%d instances)", index, b.instanceCount)
	}
	if vk.DeviceSize(len(data)) > b.instanceSize {
		return errors.AssertionFailedf("instance data of %d bytes exceeds instance size %d", len(data), b.instanceSize)
	}
	return b.WriteToBuffer(data, vk.DeviceSize(index)*b.alignmentSize)
}

// ReadFromBuffer returns a copy of the mapped bytes in [offset, offset+size).
func (b *Buffer) ReadFromBuffer(offset, size vk.DeviceSize) ([]byte, error) {
	if b.mapped == nil {
		return nil, errors.AssertionFailedf("cannot read from an unmapped buffer")
	}
	if offset+size > vk.DeviceSize(len(b.mapped)) {
		return nil, errors.AssertionFailedf("read [%d, %d) exceeds mapped size %d", offset, offset+size, len(b.mapped))
	}
	out := make([]byte, size)
	copy(out, b.mapped[offset:offset+size])
	return out, nil
}

// Flush makes host writes in the range visible to the device. Host-coherent
// memory needs no flush and the call returns immediately.
func (b *Buffer) Flush(offset, size vk.DeviceSize) error {
	if b.isCoherent() {
		return nil
	}
	return b.ctx.Driver.FlushMappedMemoryRanges([]vk.MappedMemoryRange{b.mappedRange(offset, size)})
}

// Invalidate makes device writes in the range visible to the host.
func (b *Buffer) Invalidate(offset, size vk.DeviceSize) error {
	if b.isCoherent() {
		return nil
	}
	return b.ctx.Driver.InvalidateMappedMemoryRanges([]vk.MappedMemoryRange{b.mappedRange(offset, size)})
}

func (b *Buffer) FlushIndex(index uint32) error {
	return b.Flush(vk.DeviceSize(index)*b.alignmentSize, b.alignmentSize)
}

// Update writes data at the start of the buffer and flushes it.
func (b *Buffer) Update(data []byte) error {
	if err := b.WriteToBuffer(data, 0); err != nil {
		return err
	}
	return b.Flush(0, vk.DeviceSize(len(data)))
}

// UpdateIndex writes one instance and flushes it.
func (b *Buffer) UpdateIndex(data []byte, index uint32) error {
	if err := b.WriteToIndex(data, index); err != nil {
		return err
	}
	return b.FlushIndex(index)
}

func (b *Buffer) DescriptorInfo(offset, size vk.DeviceSize) vk.DescriptorBufferInfo {
	return vk.DescriptorBufferInfo{
		Buffer: b.Handle,
		Offset: offset,
		Range:  size,
	}
}

func (b *Buffer) DescriptorInfoForIndex(index uint32) vk.DescriptorBufferInfo {
	return b.DescriptorInfo(vk.DeviceSize(index)*b.alignmentSize, b.alignmentSize)
}

func (b *Buffer) Size() vk.DeviceSize          { return b.bufferSize }
func (b *Buffer) InstanceCount() uint32        { return b.instanceCount }
func (b *Buffer) InstanceSize() vk.DeviceSize  { return b.instanceSize }
func (b *Buffer) AlignmentSize() vk.DeviceSize { return b.alignmentSize }

func (b *Buffer) Destroy() {
	b.Unmap()
	if b.Handle != vk.NullBuffer {
		b.ctx.Driver.DestroyBuffer(b.Handle)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		b.ctx.Driver.FreeMemory(b.Memory)
		b.Memory = vk.NullDeviceMemory
	}
}

func (b *Buffer) isCoherent() bool {
	return b.memoryPropertyFlags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit) != 0
}

// mappedRange widens [offset, offset+size) of the mapping to
// nonCoherentAtomSize boundaries and keeps it inside the allocation.
func (b *Buffer) mappedRange(offset, size vk.DeviceSize) vk.MappedMemoryRange {
	offset += b.mappedOffset
	atom := vk.DeviceSize(b.ctx.Device.Properties.Limits.NonCoherentAtomSize)
	start := vmath.AlignDown(offset, atom)
	if size != wholeSize {
		end := vmath.AlignUp(offset+size, atom)
		if end > b.allocationSize {
			end = b.allocationSize
		}
		size = end - start
	}
	return vk.MappedMemoryRange{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: b.Memory,
		Offset: start,
		Size:   size,
	}
}

// CopyBuffer records and waits on a transfer of size bytes from src to dst.
func CopyBuffer(ctx *VulkanContext, src, dst *Buffer, size vk.DeviceSize) error {
	cb, err := ctx.BeginSingleTimeCommands()
	if err != nil {
		return err
	}
	ctx.Driver.CmdCopyBuffer(cb.Handle, src.Handle, dst.Handle, []vk.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      size,
	}})
	return ctx.EndSingleTimeCommands(cb)
}

// NewStagingBuffer creates a mapped host-visible transfer source holding data.
func NewStagingBuffer(ctx *VulkanContext, data []byte) (*Buffer, error) {
	staging, err := NewBuffer(ctx, vk.DeviceSize(len(data)), 1,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		0)
	if err != nil {
		return nil, err
	}
	if err := staging.Map(); err != nil {
		staging.Destroy()
		return nil, err
	}
	if err := staging.WriteToBuffer(data, 0); err != nil {
		staging.Destroy()
		return nil, err
	}
	staging.Unmap()
	return staging, nil
}

// EncodeData lays v out as little-endian bytes, the byte order of every
// device this renderer targets. v must be fixed-size.
func EncodeData(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, errors.Wrapf(err, "encoding %T", v)
	}
	return buf.Bytes(), nil
}
