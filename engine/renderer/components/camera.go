package components

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera keeps a view and a projection matrix. Projections map depth to
// Vulkan's [0, 1] range with y pointing down in clip space.
type Camera struct {
	projection mgl32.Mat4
	view       mgl32.Mat4
}

func NewCamera() *Camera {
	return &Camera{
		projection: mgl32.Ident4(),
		view:       mgl32.Ident4(),
	}
}

func (c *Camera) SetOrthographicProjection(left, right, top, bottom, near, far float32) {
	c.projection = mgl32.Ident4()
	c.projection.Set(0, 0, 2/(right-left))
	c.projection.Set(1, 1, 2/(bottom-top))
	c.projection.Set(2, 2, 1/(far-near))
	c.projection.Set(0, 3, -(right+left)/(right-left))
	c.projection.Set(1, 3, -(bottom+top)/(bottom-top))
	c.projection.Set(2, 3, -near/(far-near))
}

// SetPerspectiveProjection takes the vertical field of view in radians.
func (c *Camera) SetPerspectiveProjection(fovy, aspect, near, far float32) {
	tanHalfFovy := float32(math.Tan(float64(fovy) / 2))
	c.projection = mgl32.Mat4{}
	c.projection.Set(0, 0, 1/(aspect*tanHalfFovy))
	c.projection.Set(1, 1, 1/tanHalfFovy)
	c.projection.Set(2, 2, far/(far-near))
	c.projection.Set(3, 2, 1)
	c.projection.Set(2, 3, -(far*near)/(far-near))
}

// SetViewDirection points the camera from position along direction. Up
// defaults to -Y.
func (c *Camera) SetViewDirection(position, direction mgl32.Vec3, up ...mgl32.Vec3) {
	upVec := mgl32.Vec3{0, -1, 0}
	if len(up) > 0 {
		upVec = up[0]
	}
	w := direction.Normalize()
	u := w.Cross(upVec).Normalize()
	v := w.Cross(u)
	c.setView(u, v, w, position)
}

func (c *Camera) SetViewTarget(position, target mgl32.Vec3, up ...mgl32.Vec3) {
	c.SetViewDirection(position, target.Sub(position), up...)
}

// SetViewYXZ builds the view from a position and Tait-Bryan angles applied
// in Y, X, Z order.
func (c *Camera) SetViewYXZ(position, rotation mgl32.Vec3) {
	c3, s3 := cosSin(rotation.Z())
	c2, s2 := cosSin(rotation.X())
	c1, s1 := cosSin(rotation.Y())
	u := mgl32.Vec3{c1*c3 + s1*s2*s3, c2 * s3, c1*s2*s3 - c3*s1}
	v := mgl32.Vec3{c3*s1*s2 - c1*s3, c2 * c3, c1*c3*s2 + s1*s3}
	w := mgl32.Vec3{c2 * s1, -s2, c1 * c2}
	c.setView(u, v, w, position)
}

func (c *Camera) setView(u, v, w, position mgl32.Vec3) {
	c.view = mgl32.Ident4()
	c.view.SetRow(0, mgl32.Vec4{u.X(), u.Y(), u.Z(), -u.Dot(position)})
	c.view.SetRow(1, mgl32.Vec4{v.X(), v.Y(), v.Z(), -v.Dot(position)})
	c.view.SetRow(2, mgl32.Vec4{w.X(), w.Y(), w.Z(), -w.Dot(position)})
}

func (c *Camera) Projection() mgl32.Mat4 { return c.projection }
func (c *Camera) View() mgl32.Mat4       { return c.view }

func cosSin(angle float32) (float32, float32) {
	s, c := math.Sincos(float64(angle))
	return float32(c), float32(s)
}
