package loaders

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

// MeshVertex has the same layout as the renderer's vertex type.
type MeshVertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// MeshData is indexed triangle geometry.
type MeshData struct {
	Vertices []MeshVertex
	Indices  []uint32
}

// ModelLoader reads Wavefront OBJ files. A .mtl file next to the model is
// used when present.
type ModelLoader struct{}

func (ml *ModelLoader) Load(path string) (any, error) {
	meshFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer meshFile.Close()

	var matFile io.Reader = strings.NewReader("")
	mtlPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".mtl"
	if f, err := os.Open(mtlPath); err == nil {
		defer f.Close()
		matFile = f
	}

	mesh, err := DecodeOBJ(meshFile, matFile)
	if err != nil {
		return nil, errors.Wrapf(err, "model %s", path)
	}
	return mesh, nil
}

type objIndex struct {
	vertex, uv, normal int
}

// DecodeOBJ triangulates every face as a fan and merges vertices that share
// position, uv and normal indices. V is flipped to Vulkan's top-left origin.
func DecodeOBJ(meshFile, matFile io.Reader) (*MeshData, error) {
	decoder, err := obj.DecodeReader(meshFile, matFile)
	if err != nil {
		return nil, err
	}

	mesh := &MeshData{}
	unique := make(map[objIndex]uint32)

	addVertex := func(face obj.Face, i int) {
		key := objIndex{vertex: face.Vertices[i], uv: -1, normal: -1}
		if i < len(face.Uvs) {
			key.uv = face.Uvs[i]
		}
		if i < len(face.Normals) {
			key.normal = face.Normals[i]
		}
		if index, ok := unique[key]; ok {
			mesh.Indices = append(mesh.Indices, index)
			return
		}

		v := MeshVertex{
			Position: mgl32.Vec3{
				decoder.Vertices[key.vertex*3],
				decoder.Vertices[key.vertex*3+1],
				decoder.Vertices[key.vertex*3+2],
			},
			Color: mgl32.Vec3{1, 1, 1},
		}
		if key.uv >= 0 && key.uv*2+1 < len(decoder.Uvs) {
			v.UV = mgl32.Vec2{decoder.Uvs[key.uv*2], 1.0 - decoder.Uvs[key.uv*2+1]}
		}
		if key.normal >= 0 && key.normal*3+2 < len(decoder.Normals) {
			v.Normal = mgl32.Vec3{
				decoder.Normals[key.normal*3],
				decoder.Normals[key.normal*3+1],
				decoder.Normals[key.normal*3+2],
			}
		}

		index := uint32(len(mesh.Vertices))
		mesh.Vertices = append(mesh.Vertices, v)
		unique[key] = index
		mesh.Indices = append(mesh.Indices, index)
	}

	for _, object := range decoder.Objects {
		for _, face := range object.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				addVertex(face, 0)
				addVertex(face, i-1)
				addVertex(face, i)
			}
		}
	}

	if len(mesh.Vertices) < 3 {
		return nil, errors.Newf("model has %d vertices, need at least one triangle", len(mesh.Vertices))
	}
	return mesh, nil
}
