package testbed

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/voxel/engine/renderer/vulkan"
)

// cubeModel is a unit cube centred on offset, one flat color per face.
func cubeModel(offset mgl32.Vec3) *vulkan.ModelBuilder {
	type face struct {
		color   mgl32.Vec3
		normal  mgl32.Vec3
		corners [4]mgl32.Vec3
	}
	faces := []face{
		{ // left
			color: mgl32.Vec3{0.9, 0.9, 0.9}, normal: mgl32.Vec3{-1, 0, 0},
			corners: [4]mgl32.Vec3{{-.5, -.5, -.5}, {-.5, .5, .5}, {-.5, -.5, .5}, {-.5, .5, -.5}},
		},
		{ // right
			color: mgl32.Vec3{0.8, 0.8, 0.1}, normal: mgl32.Vec3{1, 0, 0},
			corners: [4]mgl32.Vec3{{.5, -.5, -.5}, {.5, .5, .5}, {.5, -.5, .5}, {.5, .5, -.5}},
		},
		{ // top, -y is up
			color: mgl32.Vec3{0.9, 0.6, 0.1}, normal: mgl32.Vec3{0, -1, 0},
			corners: [4]mgl32.Vec3{{-.5, -.5, -.5}, {.5, -.5, .5}, {-.5, -.5, .5}, {.5, -.5, -.5}},
		},
		{ // bottom
			color: mgl32.Vec3{0.8, 0.1, 0.1}, normal: mgl32.Vec3{0, 1, 0},
			corners: [4]mgl32.Vec3{{-.5, .5, -.5}, {.5, .5, .5}, {-.5, .5, .5}, {.5, .5, -.5}},
		},
		{ // nose
			color: mgl32.Vec3{0.1, 0.1, 0.8}, normal: mgl32.Vec3{0, 0, 1},
			corners: [4]mgl32.Vec3{{-.5, -.5, .5}, {.5, .5, .5}, {-.5, .5, .5}, {.5, -.5, .5}},
		},
		{ // tail
			color: mgl32.Vec3{0.1, 0.8, 0.1}, normal: mgl32.Vec3{0, 0, -1},
			corners: [4]mgl32.Vec3{{-.5, -.5, -.5}, {.5, .5, -.5}, {-.5, .5, -.5}, {.5, -.5, -.5}},
		},
	}
	uvs := [4]mgl32.Vec2{{0, 0}, {1, 1}, {0, 1}, {1, 0}}

	b := &vulkan.ModelBuilder{}
	for _, f := range faces {
		base := uint32(len(b.Vertices))
		for i, c := range f.corners {
			b.Vertices = append(b.Vertices, vulkan.Vertex{
				Position: c.Add(offset),
				Color:    f.color,
				Normal:   f.normal,
				UV:       uvs[i],
			})
		}
		b.Indices = append(b.Indices, base, base+1, base+2, base, base+3, base+1)
	}
	return b
}
