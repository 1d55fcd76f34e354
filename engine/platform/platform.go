package platform

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/voxel/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window *glfw.Window

	input   *core.Input
	resized atomic.Bool
}

func New(input *core.Input) *Platform {
	return &Platform{
		input: input,
	}
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "initializing glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return core.WithKind(errors.New("glfw reports no Vulkan loader"), core.ErrInitialization)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "creating window")
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	core.LogInfo("Window '%s' created (%dx%d).", applicationName, width, height)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PollEvents processes pending window events and reports whether the
// window should stay open.
func (p *Platform) PollEvents() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// WaitEvents blocks until at least one event arrives. Used while minimized.
func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

func (p *Platform) RequestClose() {
	p.Window.SetShouldClose(true)
}

// FramebufferSize is the drawable size in pixels. Zero while minimized.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	if w < 0 || h < 0 {
		return 0, 0
	}
	return uint32(w), uint32(h)
}

func (p *Platform) WasResized() bool {
	return p.resized.Load()
}

func (p *Platform) ResetResizedFlag() {
	p.resized.Store(false)
}

// GetRequiredExtensionNames lists the instance extensions GLFW needs for surfaces.
func (p *Platform) GetRequiredExtensionNames() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// InstanceProcAddr is the loader entry point the Vulkan bindings bootstrap from.
func (p *Platform) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// CreateSurface returns the raw VkSurfaceKHR for instance.
func (p *Platform) CreateSurface(instance interface{}) (uintptr, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, core.WithKind(errors.Wrap(err, "creating window surface"), core.ErrInitialization)
	}
	return surface, nil
}

// KeyPressed asks GLFW directly whether key is held, bypassing the input
// state copied once per frame.
func (p *Platform) KeyPressed(key core.KeyCode) bool {
	return p.Window.GetKey(glfw.Key(key)) == glfw.Press
}

func (p *Platform) GetAbsoluteTime() float64 {
	return glfw.GetTime()
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if p.input == nil || key < 0 || action == glfw.Repeat {
		return
	}
	p.input.ProcessKey(core.KeyCode(key), action == glfw.Press)
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.resized.Store(true)
	core.LogDebug("framebuffer resized to %dx%d", width, height)
}
