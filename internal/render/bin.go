package render

import (
	"fmt"

	"github.com/meigma/erfs"
)

// Bin renders erfs_<id>.bin, the binary artifact, and erfs_<id>_embed.go,
// which embeds it with //go:embed and declares the accessor.
func Bin(in Input) ([]Unit, error) {
	if in.FS == nil {
		return nil, erfs.ErrInvalidInput
	}
	artifact, err := in.FS.MarshalBinary()
	if err != nil {
		return nil, err
	}

	name := "erfs_" + in.ID
	lower := unexported(in.ID)
	preamble := fmt.Sprintf("//go:embed %s.bin\nvar %sBin string\n\n", name, lower)
	embed := goAccessor(in, preamble, "erfs.LoadString("+lower+"Bin)")

	return []Unit{
		{Name: name + ".bin", Data: artifact},
		{Name: name + "_embed.go", Data: embed},
	}, nil
}
