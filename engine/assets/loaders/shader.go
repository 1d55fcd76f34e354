package loaders

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/errors"
)

const spirvMagic = 0x07230203

// ShaderData is a compiled SPIR-V module.
type ShaderData struct {
	Code []uint32
}

type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	code, err := DecodeSPIRV(data)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %s", path)
	}
	return &ShaderData{Code: code}, nil
}

// DecodeSPIRV turns little-endian SPIR-V bytes into words.
func DecodeSPIRV(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Newf("SPIR-V size %d is not a positive multiple of 4", len(b))
	}
	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	if byteCode[0] != spirvMagic {
		return nil, errors.Newf("bad SPIR-V magic %#08x", byteCode[0])
	}
	return byteCode, nil
}
