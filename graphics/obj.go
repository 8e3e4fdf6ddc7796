package graphics

import (
	"io"
	"math"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Andrcraft9/Vulkan-Project/render"
)

// LoadMeshFromOBJ builds a mesh component from a Wavefront OBJ file and its
// material library. Faces are triangulated as fans, the z coordinate is
// dropped to fit the two dimensional vertex layout, colors default to white
// and the v texture coordinate is flipped for Vulkan.
func LoadMeshFromOBJ(objPath string, mtlPath string) (Mesh, error) {
	objFile, err := os.Open(objPath)
	if err != nil {
		return Mesh{}, errors.Wrapf(err, "failed to read the mesh %s", objPath)
	}
	defer objFile.Close()

	mtlFile, err := os.Open(mtlPath)
	if err != nil {
		return Mesh{}, errors.Wrapf(err, "failed to read the material library %s", mtlPath)
	}
	defer mtlFile.Close()

	return DecodeMeshFromOBJ(objFile, mtlFile)
}

// DecodeMeshFromOBJ is LoadMeshFromOBJ for already opened readers.
func DecodeMeshFromOBJ(objReader io.Reader, mtlReader io.Reader) (Mesh, error) {
	decoder, err := obj.DecodeReader(objReader, mtlReader)
	if err != nil {
		return Mesh{}, err
	}

	var mesh Mesh
	uniqueVertices := make(map[int]uint16)

	for _, object := range decoder.Objects {
		for _, face := range object.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				err = addFaceVertex(decoder, &mesh, uniqueVertices, face, 0)
				if err != nil {
					return Mesh{}, err
				}
				err = addFaceVertex(decoder, &mesh, uniqueVertices, face, i-1)
				if err != nil {
					return Mesh{}, err
				}
				err = addFaceVertex(decoder, &mesh, uniqueVertices, face, i)
				if err != nil {
					return Mesh{}, err
				}
			}
		}
	}

	return mesh, nil
}

func addFaceVertex(decoder *obj.Decoder, mesh *Mesh, uniqueVertices map[int]uint16, face obj.Face, faceIndex int) error {
	vertInd := face.Vertices[faceIndex]
	index, exists := uniqueVertices[vertInd]
	if !exists {
		if len(mesh.Vertices) > math.MaxUint16 {
			return errors.New("failed to load the mesh: too many vertices for 16 bit indices!")
		}

		vertex := render.Vertex{
			Position: mgl32.Vec2{decoder.Vertices[vertInd*3], decoder.Vertices[vertInd*3+1]},
			Color:    mgl32.Vec3{1, 1, 1},
		}

		// The decoder marks a missing texture coordinate with an out of
		// range index.
		uvInd := face.Uvs[faceIndex]
		if uvInd >= 0 && uvInd*2+1 < len(decoder.Uvs) {
			vertex.TexCoord = mgl32.Vec2{
				decoder.Uvs[uvInd*2],
				1.0 - decoder.Uvs[uvInd*2+1],
			}
		}

		index = uint16(len(mesh.Vertices))
		mesh.Vertices = append(mesh.Vertices, vertex)
		uniqueVertices[vertInd] = index
	}

	mesh.Indices = append(mesh.Indices, index)
	return nil
}
