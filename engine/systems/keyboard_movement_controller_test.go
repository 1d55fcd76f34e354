package systems

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/spaghettifunk/voxel/engine/renderer/components"
	"github.com/stretchr/testify/assert"
)

type heldKeys map[core.KeyCode]bool

func (k heldKeys) IsKeyDown(key core.KeyCode) bool { return k[key] }

// assertVec3InDelta compares per component; results such as -1.3e-7 for an
// expected 0 count as equal.
func assertVec3InDelta(t *testing.T, want, got mgl32.Vec3, delta float64, name string) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], delta, "%s[%d] of %v", name, i, got)
	}
}

func TestMoveInPlaneXZ(t *testing.T) {
	tests := []struct {
		name        string
		keys        heldKeys
		dt          float32
		translation mgl32.Vec3
		rotation    mgl32.Vec3
	}{
		{name: "idle", keys: heldKeys{}, dt: 1},
		{name: "forward", keys: heldKeys{core.KEY_W: true}, dt: 1, translation: mgl32.Vec3{0, 0, 3}},
		{name: "opposite keys cancel", keys: heldKeys{core.KEY_W: true, core.KEY_S: true}, dt: 1},
		{name: "strafe right", keys: heldKeys{core.KEY_D: true}, dt: 0.5, translation: mgl32.Vec3{1.5, 0, 0}},
		{name: "up is negative y", keys: heldKeys{core.KEY_E: true}, dt: 1, translation: mgl32.Vec3{0, -3, 0}},
		{name: "look right", keys: heldKeys{core.KEY_RIGHT: true}, dt: 1, rotation: mgl32.Vec3{0, 1.5, 0}},
		{name: "pitch is clamped", keys: heldKeys{core.KEY_UP: true}, dt: 4, rotation: mgl32.Vec3{pitchLimit, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := components.NewGameObject(core.NewIDAllocator())
			NewKeyboardMovementController().MoveInPlaneXZ(tt.keys, tt.dt, obj)
			assertVec3InDelta(t, tt.translation, obj.Transform.Translation, 1e-5, "translation")
			assertVec3InDelta(t, tt.rotation, obj.Transform.Rotation, 1e-5, "rotation")
		})
	}
}

func TestDiagonalMovementIsNormalized(t *testing.T) {
	obj := components.NewGameObject(core.NewIDAllocator())
	NewKeyboardMovementController().MoveInPlaneXZ(heldKeys{core.KEY_W: true, core.KEY_D: true}, 1, obj)
	assert.InDelta(t, 3, obj.Transform.Translation.Len(), 1e-5)
}

func TestMovementFollowsYaw(t *testing.T) {
	obj := components.NewGameObject(core.NewIDAllocator())
	obj.Transform.Rotation = mgl32.Vec3{1, mgl32.DegToRad(90), 0}
	NewKeyboardMovementController().MoveInPlaneXZ(heldKeys{core.KEY_W: true}, 1, obj)

	// Facing +X; pitch does not tilt movement out of the plane.
	assertVec3InDelta(t, mgl32.Vec3{3, 0, 0}, obj.Transform.Translation, 1e-5, "translation")
}

func TestYawWrapsAround(t *testing.T) {
	obj := components.NewGameObject(core.NewIDAllocator())
	obj.Transform.Rotation = mgl32.Vec3{0, 7, 0}
	NewKeyboardMovementController().MoveInPlaneXZ(heldKeys{}, 0.016, obj)
	assert.InDelta(t, 7-2*math.Pi, obj.Transform.Rotation.Y(), 1e-5)
}
