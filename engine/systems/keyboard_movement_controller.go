package systems

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/spaghettifunk/voxel/engine/renderer/components"
)

// KeyState reports which keys are held. *core.Input implements it.
type KeyState interface {
	IsKeyDown(key core.KeyCode) bool
}

type KeyMappings struct {
	MoveLeft     core.KeyCode
	MoveRight    core.KeyCode
	MoveForward  core.KeyCode
	MoveBackward core.KeyCode
	MoveUp       core.KeyCode
	MoveDown     core.KeyCode
	LookLeft     core.KeyCode
	LookRight    core.KeyCode
	LookUp       core.KeyCode
	LookDown     core.KeyCode
}

func DefaultKeyMappings() KeyMappings {
	return KeyMappings{
		MoveLeft:     core.KEY_A,
		MoveRight:    core.KEY_D,
		MoveForward:  core.KEY_W,
		MoveBackward: core.KEY_S,
		MoveUp:       core.KEY_E,
		MoveDown:     core.KEY_Q,
		LookLeft:     core.KEY_LEFT,
		LookRight:    core.KEY_RIGHT,
		LookUp:       core.KEY_UP,
		LookDown:     core.KEY_DOWN,
	}
}

// pitchLimit keeps the camera from flipping over the vertical.
const pitchLimit = 1.5

// KeyboardMovementController flies a game object around the XZ plane.
type KeyboardMovementController struct {
	Keys      KeyMappings
	MoveSpeed float32
	LookSpeed float32
}

func NewKeyboardMovementController() *KeyboardMovementController {
	return &KeyboardMovementController{
		Keys:      DefaultKeyMappings(),
		MoveSpeed: 3,
		LookSpeed: 1.5,
	}
}

// MoveInPlaneXZ turns and moves obj for dt seconds of held keys. Movement
// follows the object's yaw only, so looking up does not lift it.
func (c *KeyboardMovementController) MoveInPlaneXZ(keys KeyState, dt float32, obj *components.GameObject) {
	axis := func(pos, neg core.KeyCode) float32 {
		var v float32
		if keys.IsKeyDown(pos) {
			v++
		}
		if keys.IsKeyDown(neg) {
			v--
		}
		return v
	}

	rotate := mgl32.Vec3{axis(c.Keys.LookUp, c.Keys.LookDown), axis(c.Keys.LookRight, c.Keys.LookLeft), 0}
	if rotate.Dot(rotate) > math.SmallestNonzeroFloat32 {
		obj.Transform.Rotation = obj.Transform.Rotation.Add(rotate.Normalize().Mul(c.LookSpeed * dt))
	}

	rot := &obj.Transform.Rotation
	rot[0] = mgl32.Clamp(rot[0], -pitchLimit, pitchLimit)
	rot[1] = float32(math.Mod(float64(rot[1]), 2*math.Pi))

	yaw := float64(rot[1])
	forward := mgl32.Vec3{float32(math.Sin(yaw)), 0, float32(math.Cos(yaw))}
	right := mgl32.Vec3{forward.Z(), 0, -forward.X()}
	up := mgl32.Vec3{0, -1, 0}

	move := forward.Mul(axis(c.Keys.MoveForward, c.Keys.MoveBackward)).
		Add(right.Mul(axis(c.Keys.MoveRight, c.Keys.MoveLeft))).
		Add(up.Mul(axis(c.Keys.MoveUp, c.Keys.MoveDown)))
	if move.Dot(move) > math.SmallestNonzeroFloat32 {
		obj.Transform.Translation = obj.Transform.Translation.Add(move.Normalize().Mul(c.MoveSpeed * dt))
	}
}
