package bytesize

import (
	"errors"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize is a size in bytes that reads and prints in human units
// ("64MB", "1 GiB"). It can be used as a flag.Value and in YAML.
type ByteSize uint64

const (
	Byte ByteSize = 1
	KB            = Byte * humanize.KByte
	MB            = Byte * humanize.MByte
	GB            = Byte * humanize.GByte
	TB            = Byte * humanize.TByte

	KiB = Byte * humanize.KiByte
	MiB = Byte * humanize.MiByte
	GiB = Byte * humanize.GiByte
)

var errParse = errors.New("could not parse ByteSize")

func Parse(s string) (ByteSize, error) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return 0, errParse
	}
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errParse
	}
	return ByteSize(v), nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

func (b *ByteSize) Set(s string) error {
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b ByteSize) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return b.Set(s)
}
