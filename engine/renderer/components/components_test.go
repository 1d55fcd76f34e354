package components

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-5

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, eps), "want %v, got %v", want, got)
}

func TestTransformMatchesComposedMatrices(t *testing.T) {
	tr := TransformComponent{
		Translation: mgl32.Vec3{1, 2, 3},
		Rotation:    mgl32.Vec3{0.3, -1.1, 0.7},
		Scale:       mgl32.Vec3{2, 0.5, 1.5},
	}
	want := mgl32.Translate3D(1, 2, 3).
		Mul4(mgl32.HomogRotate3DY(-1.1)).
		Mul4(mgl32.HomogRotate3DX(0.3)).
		Mul4(mgl32.HomogRotate3DZ(0.7)).
		Mul4(mgl32.Scale3D(2, 0.5, 1.5))

	assert.True(t, want.ApproxEqualThreshold(tr.Mat4(), eps), "want %v\ngot %v", want, tr.Mat4())
}

func TestNormalMatrixUsesInverseScale(t *testing.T) {
	tr := NewTransform()
	tr.Scale = mgl32.Vec3{2, 4, 1}

	n := tr.NormalMatrix()
	assertVec3(t, mgl32.Vec3{0.5, 0, 0}, n.Mul4x1(mgl32.Vec4{1, 0, 0, 0}).Vec3())
	assertVec3(t, mgl32.Vec3{0, 0.25, 0}, n.Mul4x1(mgl32.Vec4{0, 1, 0, 0}).Vec3())
}

func TestIdentityTransform(t *testing.T) {
	assert.True(t, mgl32.Ident4().ApproxEqual(NewTransform().Mat4()))
}

func TestPerspectiveProjectionDepthRange(t *testing.T) {
	c := NewCamera()
	c.SetPerspectiveProjection(mgl32.DegToRad(50), 16.0/9.0, 0.1, 10)

	project := func(z float32) float32 {
		clip := c.Projection().Mul4x1(mgl32.Vec4{0, 0, z, 1})
		return clip.Z() / clip.W()
	}
	assert.InDelta(t, 0, project(0.1), eps, "near plane maps to 0")
	assert.InDelta(t, 1, project(10), eps, "far plane maps to 1")
}

func TestOrthographicProjection(t *testing.T) {
	c := NewCamera()
	c.SetOrthographicProjection(-2, 2, -1, 1, 0, 10)

	p := c.Projection().Mul4x1(mgl32.Vec4{2, 1, 10, 1})
	assert.InDelta(t, 1, p.X(), eps)
	assert.InDelta(t, 1, p.Y(), eps)
	assert.InDelta(t, 1, p.Z(), eps)
}

func TestViewTargetLooksDownPositiveZ(t *testing.T) {
	c := NewCamera()
	c.SetViewTarget(mgl32.Vec3{0, 0, -5}, mgl32.Vec3{0, 0, 0})

	// The target ends up straight ahead, 5 units into the screen.
	p := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assertVec3(t, mgl32.Vec3{0, 0, 5}, p.Vec3())
}

func TestViewYXZMatchesTransformInverse(t *testing.T) {
	position := mgl32.Vec3{1, -2, 3}
	rotation := mgl32.Vec3{0.2, float32(math.Pi / 3), -0.4}

	c := NewCamera()
	c.SetViewYXZ(position, rotation)

	tr := TransformComponent{Translation: position, Rotation: rotation, Scale: mgl32.Vec3{1, 1, 1}}
	assert.True(t, tr.Mat4().Inv().ApproxEqualThreshold(c.View(), 1e-4))
}

func TestGameObjectIDs(t *testing.T) {
	ids := core.NewIDAllocator()
	a := NewGameObject(ids)
	b := NewGameObject(ids)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, a.Transform.Scale)
	assert.Same(t, a, ids.Owner(a.ID))

	require.NoError(t, a.Release(ids))
	c := NewGameObject(ids)
	assert.Equal(t, a.ID, c.ID, "released ids are reused")

	// Separate allocators do not share a counter.
	other := NewGameObject(core.NewIDAllocator())
	assert.Equal(t, uint32(0), other.ID)
}
