package engine

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/spaghettifunk/voxel/engine/renderer/components"
	"github.com/spaghettifunk/voxel/engine/renderer/vulkan"
	"github.com/spaghettifunk/voxel/engine/systems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRenderer struct {
	calls      []string
	cb         *vulkan.VulkanCommandBuffer
	frameIndex int
	beginErr   error
	endErr     error
}

func (r *recordingRenderer) BeginFrame() (*vulkan.VulkanCommandBuffer, error) {
	r.calls = append(r.calls, "begin frame")
	return r.cb, r.beginErr
}

func (r *recordingRenderer) BeginSwapChainRenderPass(*vulkan.VulkanCommandBuffer) error {
	r.calls = append(r.calls, "begin pass")
	return nil
}

func (r *recordingRenderer) EndSwapChainRenderPass(*vulkan.VulkanCommandBuffer) error {
	r.calls = append(r.calls, "end pass")
	return nil
}

func (r *recordingRenderer) EndFrame() error {
	r.calls = append(r.calls, "end frame")
	return r.endErr
}

func (r *recordingRenderer) FrameIndex() int { return r.frameIndex }

type recordingUniforms struct {
	renderer *recordingRenderer
	updates  map[int]systems.GlobalUbo
	set      *vulkan.DescriptorSet
}

func (u *recordingUniforms) Update(frameIndex int, ubo systems.GlobalUbo) error {
	u.renderer.calls = append(u.renderer.calls, "update ubo")
	u.updates[frameIndex] = ubo
	return nil
}

func (u *recordingUniforms) DescriptorSet(int) *vulkan.DescriptorSet { return u.set }

func newRecording() (*recordingRenderer, *recordingUniforms) {
	r := &recordingRenderer{cb: &vulkan.VulkanCommandBuffer{}, frameIndex: 1}
	return r, &recordingUniforms{renderer: r, updates: make(map[int]systems.GlobalUbo), set: &vulkan.DescriptorSet{}}
}

func TestDrawFrameOrder(t *testing.T) {
	r, u := newRecording()
	camera := components.NewCamera()
	camera.SetPerspectiveProjection(mgl32.DegToRad(50), 1, 0.1, 10)

	var got *systems.FrameInfo
	drawn, err := drawFrame(r, u, camera, 0.016, func(frame *systems.FrameInfo) error {
		r.calls = append(r.calls, "render")
		got = frame
		return nil
	})
	require.NoError(t, err)
	assert.True(t, drawn)
	assert.Equal(t, []string{"begin frame", "update ubo", "begin pass", "render", "end pass", "end frame"}, r.calls)

	require.NotNil(t, got)
	assert.Equal(t, 1, got.FrameIndex)
	assert.Same(t, r.cb, got.CommandBuffer)
	assert.Same(t, u.set, got.GlobalDescriptorSet)
	assert.Same(t, camera, got.Camera)
	assert.Equal(t, camera.Projection(), u.updates[1].Projection)
}

func TestDrawFrameSkipped(t *testing.T) {
	r, u := newRecording()
	r.cb = nil

	drawn, err := drawFrame(r, u, components.NewCamera(), 0.016, func(*systems.FrameInfo) error {
		t.Fatal("render called for a skipped frame")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, drawn)
	assert.Equal(t, []string{"begin frame"}, r.calls)
}

func TestDrawFrameErrors(t *testing.T) {
	t.Run("begin", func(t *testing.T) {
		r, u := newRecording()
		r.beginErr = core.WithKind(errors.New("lost"), core.ErrDeviceLost)
		_, err := drawFrame(r, u, components.NewCamera(), 0, func(*systems.FrameInfo) error { return nil })
		assert.ErrorIs(t, err, core.ErrDeviceLost)
	})
	t.Run("render", func(t *testing.T) {
		r, u := newRecording()
		_, err := drawFrame(r, u, components.NewCamera(), 0, func(*systems.FrameInfo) error {
			return errors.AssertionFailedf("bad draw")
		})
		assert.True(t, core.IsPreconditionViolation(err))
		assert.NotContains(t, r.calls, "end frame")
	})
	t.Run("end", func(t *testing.T) {
		r, u := newRecording()
		r.endErr = errors.AssertionFailedf("cannot call EndFrame while idle")
		_, err := drawFrame(r, u, components.NewCamera(), 0, func(*systems.FrameInfo) error { return nil })
		assert.True(t, core.IsPreconditionViolation(err))
	})
}

func TestClampFrameTime(t *testing.T) {
	assert.Equal(t, 0.016, clampFrameTime(0.016))
	assert.Equal(t, maxFrameTime, clampFrameTime(3))
	assert.Equal(t, 0.0, clampFrameTime(-1))
}

func TestNewRequiresGame(t *testing.T) {
	_, err := New(nil)
	assert.True(t, core.IsPreconditionViolation(err))

	_, err = New(&Game{ApplicationConfig: &ApplicationConfig{}})
	assert.True(t, core.IsPreconditionViolation(err))
}

func TestNewApplicationConfig(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Log.Level = "debug"
	app, err := NewApplicationConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, core.DebugLevel, app.LogLevel)
	assert.Equal(t, cfg.Application.Width, app.StartWidth)
	assert.Equal(t, "assets", app.AssetDir)

	cfg.Log.Level = "loud"
	_, err = NewApplicationConfig(cfg)
	assert.Error(t, err)
}
