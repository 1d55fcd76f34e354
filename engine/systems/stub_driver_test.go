package systems

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/spaghettifunk/voxel/engine/renderer/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDriver implements the slice of vulkan.Driver the systems use. Any other
// call hits the nil embedded interface and panics.
type stubDriver struct {
	vulkan.Driver

	live       map[string]int
	memory     map[vk.DeviceMemory][]byte
	bufferSize map[vk.Buffer]vk.DeviceSize

	flushes        int
	writes         []vk.WriteDescriptorSet
	pushes         [][]byte
	boundPipelines []vk.Pipeline
	boundSets      []vk.DescriptorSet
	pipelineInfos  []*vk.GraphicsPipelineCreateInfo
	layoutInfos    []*vk.PipelineLayoutCreateInfo
}

func newStubDriver() *stubDriver {
	return &stubDriver{
		live:       make(map[string]int),
		memory:     make(map[vk.DeviceMemory][]byte),
		bufferSize: make(map[vk.Buffer]vk.DeviceSize),
	}
}

// Vulkan handles are pointers to incomplete C types, which must never point
// into the Go heap. Test handles are addresses inside a static arena.
var (
	handleArena [1 << 20]byte
	nextHandle  atomic.Uint32
)

// handle returns a non-nil pointer no other handle in the process shares.
func (d *stubDriver) handle() unsafe.Pointer {
	i := nextHandle.Add(1)
	if int(i) >= len(handleArena) {
		panic("test handle arena exhausted")
	}
	return unsafe.Pointer(&handleArena[i])
}

func (d *stubDriver) create(kind string) unsafe.Pointer {
	d.live[kind]++
	return d.handle()
}

// leaks lists object kinds with live instances.
func (d *stubDriver) leaks() map[string]int {
	out := make(map[string]int)
	for kind, n := range d.live {
		if n != 0 {
			out[kind] = n
		}
	}
	return out
}

func (d *stubDriver) AllocateMemory(info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	mem := vk.DeviceMemory(d.create("memory"))
	d.memory[mem] = make([]byte, info.AllocationSize)
	return mem, nil
}

func (d *stubDriver) FreeMemory(memory vk.DeviceMemory) {
	d.live["memory"]--
	delete(d.memory, memory)
}

func (d *stubDriver) MapMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) ([]byte, error) {
	return d.memory[memory][offset : offset+size], nil
}

func (d *stubDriver) UnmapMemory(vk.DeviceMemory) {}

func (d *stubDriver) FlushMappedMemoryRanges([]vk.MappedMemoryRange) error {
	d.flushes++
	return nil
}

func (d *stubDriver) CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error) {
	buf := vk.Buffer(d.create("buffer"))
	d.bufferSize[buf] = info.Size
	return buf, nil
}

func (d *stubDriver) DestroyBuffer(vk.Buffer) { d.live["buffer"]-- }

func (d *stubDriver) BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements {
	return vk.MemoryRequirements{Size: d.bufferSize[buffer], Alignment: 1, MemoryTypeBits: ^uint32(0)}
}

func (d *stubDriver) BindBufferMemory(vk.Buffer, vk.DeviceMemory, vk.DeviceSize) error { return nil }

func (d *stubDriver) CreateDescriptorSetLayout(*vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	return vk.DescriptorSetLayout(d.create("descriptor set layout")), nil
}

func (d *stubDriver) DestroyDescriptorSetLayout(vk.DescriptorSetLayout) {
	d.live["descriptor set layout"]--
}

func (d *stubDriver) CreateDescriptorPool(*vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	return vk.DescriptorPool(d.create("descriptor pool")), nil
}

func (d *stubDriver) DestroyDescriptorPool(vk.DescriptorPool) { d.live["descriptor pool"]-- }

func (d *stubDriver) AllocateDescriptorSets(_ vk.DescriptorPool, layouts []vk.DescriptorSetLayout) ([]vk.DescriptorSet, error) {
	sets := make([]vk.DescriptorSet, len(layouts))
	for i := range sets {
		sets[i] = vk.DescriptorSet(d.handle())
	}
	return sets, nil
}

func (d *stubDriver) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	d.writes = append(d.writes, writes...)
}

func (d *stubDriver) CreateShaderModule([]uint32) (vk.ShaderModule, error) {
	return vk.ShaderModule(d.create("shader module")), nil
}

func (d *stubDriver) DestroyShaderModule(vk.ShaderModule) { d.live["shader module"]-- }

func (d *stubDriver) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	d.layoutInfos = append(d.layoutInfos, info)
	return vk.PipelineLayout(d.create("pipeline layout")), nil
}

func (d *stubDriver) DestroyPipelineLayout(vk.PipelineLayout) { d.live["pipeline layout"]-- }

func (d *stubDriver) CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	d.pipelineInfos = append(d.pipelineInfos, info)
	return vk.Pipeline(d.create("pipeline")), nil
}

func (d *stubDriver) DestroyPipeline(vk.Pipeline) { d.live["pipeline"]-- }

func (d *stubDriver) CmdBindPipeline(_ vk.CommandBuffer, _ vk.PipelineBindPoint, pipeline vk.Pipeline) {
	d.boundPipelines = append(d.boundPipelines, pipeline)
}

func (d *stubDriver) CmdBindDescriptorSets(_ vk.CommandBuffer, _ vk.PipelineBindPoint, _ vk.PipelineLayout, _ uint32, sets []vk.DescriptorSet) {
	d.boundSets = append(d.boundSets, sets...)
}

func (d *stubDriver) CmdPushConstants(_ vk.CommandBuffer, _ vk.PipelineLayout, _ vk.ShaderStageFlags, _ uint32, data []byte) {
	d.pushes = append(d.pushes, data)
}

func newStubContext(t *testing.T) (*vulkan.VulkanContext, *stubDriver) {
	t.Helper()
	driver := newStubDriver()

	device := &vulkan.VulkanDevice{}
	device.Memory.MemoryTypeCount = 3
	device.Memory.MemoryTypes[0].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	device.Memory.MemoryTypes[1].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	device.Memory.MemoryTypes[2].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	device.Properties.Limits.NonCoherentAtomSize = 64
	device.Properties.Limits.MaxPushConstantsSize = 128

	return &vulkan.VulkanContext{
		Device: device,
		Driver: driver,
		Locks:  vulkan.NewVulkanLockPool(),
		Config: core.DefaultConfig().Renderer,
	}, driver
}

// writeShaders puts minimal SPIR-V modules where SimpleRenderSystem looks
// for them and returns the asset root.
func writeShaders(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "shaders"), 0o755))
	code := make([]byte, 20)
	for i, word := range []uint32{0x07230203, 0x00010000, 0, 1, 0} {
		binary.LittleEndian.PutUint32(code[i*4:], word)
	}
	for _, name := range []string{simpleVertexShader, simpleFragmentShader} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), code, 0o644))
	}
	return root
}

type stubTexture struct {
	info vk.DescriptorImageInfo
}

func (s stubTexture) DescriptorInfo() vk.DescriptorImageInfo { return s.info }

// assertHandle compares Vulkan handles by address. Handles point at
// incomplete C types, so reflection sees every two of them as equal.
func assertHandle[H comparable](t *testing.T, want, got H, msgAndArgs ...interface{}) bool {
	t.Helper()
	return assert.True(t, want == got, msgAndArgs...)
}

func assertHandles[H comparable](t *testing.T, want, got []H) {
	t.Helper()
	if assert.Len(t, got, len(want)) {
		for i := range want {
			assertHandle(t, want[i], got[i], "handle %d", i)
		}
	}
}
