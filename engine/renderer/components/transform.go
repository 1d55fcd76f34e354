package components

import "github.com/go-gl/mathgl/mgl32"

// TransformComponent places an object in the world. Rotation holds
// Tait-Bryan angles in radians, applied Y, then X, then Z.
type TransformComponent struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Vec3
	Scale       mgl32.Vec3
}

func NewTransform() TransformComponent {
	return TransformComponent{Scale: mgl32.Vec3{1, 1, 1}}
}

// Mat4 is Translate * Ry * Rx * Rz * Scale.
func (t TransformComponent) Mat4() mgl32.Mat4 {
	r := t.rotation()
	return mgl32.Mat4{
		t.Scale.X() * r[0], t.Scale.X() * r[1], t.Scale.X() * r[2], 0,
		t.Scale.Y() * r[3], t.Scale.Y() * r[4], t.Scale.Y() * r[5], 0,
		t.Scale.Z() * r[6], t.Scale.Z() * r[7], t.Scale.Z() * r[8], 0,
		t.Translation.X(), t.Translation.Y(), t.Translation.Z(), 1,
	}
}

// NormalMatrix is the rotation with inverse scale, for transforming
// normals. It is returned as a Mat4 so it can share push-constant layout
// with the model matrix.
func (t TransformComponent) NormalMatrix() mgl32.Mat4 {
	r := t.rotation()
	ix, iy, iz := 1/t.Scale.X(), 1/t.Scale.Y(), 1/t.Scale.Z()
	return mgl32.Mat4{
		ix * r[0], ix * r[1], ix * r[2], 0,
		iy * r[3], iy * r[4], iy * r[5], 0,
		iz * r[6], iz * r[7], iz * r[8], 0,
		0, 0, 0, 1,
	}
}

// rotation returns Ry * Rx * Rz column by column.
func (t TransformComponent) rotation() [9]float32 {
	c3, s3 := cosSin(t.Rotation.Z())
	c2, s2 := cosSin(t.Rotation.X())
	c1, s1 := cosSin(t.Rotation.Y())
	return [9]float32{
		c1*c3 + s1*s2*s3, c2 * s3, c1*s2*s3 - c3*s1,
		c3*s1*s2 - c1*s3, c2 * c3, c1*c3*s2 + s1*s3,
		c2 * s1, -s2, c1 * c2,
	}
}
