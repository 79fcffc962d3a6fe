// Package gridio persists float grids in the NumPy .npy format so stored
// elevation arrays stay readable by numpy.load.
package gridio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"lunarterrain/internal/models"
)

var npyMagic = []byte("\x93NUMPY")

// ErrUnsupportedFormat is returned for .npy data this package cannot decode.
var ErrUnsupportedFormat = errors.New("gridio: unsupported npy data")

// Write encodes g as a version 1.0, C-ordered, little-endian float64 array
// of shape (Height, Width).
func Write(w io.Writer, g models.Grid) error {
	if g.Empty() {
		return errors.New("gridio: cannot encode an empty grid")
	}

	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }", g.Height, g.Width)
	// magic(6) + version(2) + length(2) + header + '\n' is padded to 64 bytes.
	total := len(npyMagic) + 4 + len(header) + 1
	if pad := (64 - total%64) % 64; pad > 0 {
		header += strings.Repeat(" ", pad)
	}
	header += "\n"

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)

	var buf [8]byte
	for _, v := range g.Data[:g.Width*g.Height] {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		bw.Write(buf[:])
	}
	return errors.Wrap(bw.Flush(), "write npy")
}

// Read decodes a 2D C-ordered '<f8' or '<f4' array.
func Read(r io.Reader) (models.Grid, error) {
	br := bufio.NewReader(r)

	var pre [8]byte
	if _, err := io.ReadFull(br, pre[:]); err != nil {
		return models.Grid{}, errors.Wrap(err, "read npy preamble")
	}
	if !bytes.Equal(pre[:6], npyMagic) {
		return models.Grid{}, errors.Wrap(ErrUnsupportedFormat, "bad magic")
	}

	var headerLen int
	switch pre[6] {
	case 1:
		var n uint16
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return models.Grid{}, errors.Wrap(err, "read npy header length")
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return models.Grid{}, errors.Wrap(err, "read npy header length")
		}
		headerLen = int(n)
	default:
		return models.Grid{}, errors.Wrapf(ErrUnsupportedFormat, "version %d.%d", pre[6], pre[7])
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return models.Grid{}, errors.Wrap(err, "read npy header")
	}
	descr, fortran, shape, err := parseHeader(string(header))
	if err != nil {
		return models.Grid{}, err
	}
	if fortran {
		return models.Grid{}, errors.Wrap(ErrUnsupportedFormat, "fortran order")
	}
	if len(shape) != 2 || shape[0] < 1 || shape[1] < 1 {
		return models.Grid{}, errors.Wrapf(ErrUnsupportedFormat, "shape %v", shape)
	}

	g := models.NewGrid(shape[1], shape[0])
	switch descr {
	case "<f8":
		var buf [8]byte
		for i := range g.Data {
			if _, err := io.ReadFull(br, buf[:]); err != nil {
				return models.Grid{}, errors.Wrapf(err, "read element %d", i)
			}
			g.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))
		}
	case "<f4":
		var buf [4]byte
		for i := range g.Data {
			if _, err := io.ReadFull(br, buf[:]); err != nil {
				return models.Grid{}, errors.Wrapf(err, "read element %d", i)
			}
			g.Data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[:])))
		}
	default:
		return models.Grid{}, errors.Wrapf(ErrUnsupportedFormat, "dtype %q", descr)
	}
	return g, nil
}

// Marshal returns the .npy encoding of g.
func Marshal(g models.Grid) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes .npy bytes.
func Unmarshal(data []byte) (models.Grid, error) {
	return Read(bytes.NewReader(data))
}

// Save writes g to path.
func Save(path string, g models.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create npy file")
	}
	if err := Write(f, g); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close npy file")
}

// Load reads a grid from path.
func Load(path string) (models.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Grid{}, errors.Wrap(err, "open npy file")
	}
	defer f.Close()
	return Read(f)
}

// parseHeader extracts the three keys of the header dictionary literal.
func parseHeader(h string) (descr string, fortran bool, shape []int, err error) {
	value := func(key string) (string, bool) {
		i := strings.Index(h, "'"+key+"'")
		if i < 0 {
			return "", false
		}
		rest := strings.TrimSpace(h[i+len(key)+2:])
		rest = strings.TrimPrefix(rest, ":")
		return strings.TrimSpace(rest), true
	}

	v, ok := value("descr")
	if !ok || len(v) < 2 || v[0] != '\'' {
		return "", false, nil, errors.Wrap(ErrUnsupportedFormat, "missing descr")
	}
	closing := strings.IndexByte(v[1:], '\'')
	if closing < 0 {
		return "", false, nil, errors.Wrap(ErrUnsupportedFormat, "unterminated descr")
	}
	descr = v[1 : 1+closing]

	v, ok = value("fortran_order")
	if !ok {
		return "", false, nil, errors.Wrap(ErrUnsupportedFormat, "missing fortran_order")
	}
	fortran = strings.HasPrefix(v, "True")

	v, ok = value("shape")
	if !ok || !strings.HasPrefix(v, "(") {
		return "", false, nil, errors.Wrap(ErrUnsupportedFormat, "missing shape")
	}
	end := strings.IndexByte(v, ')')
	if end < 0 {
		return "", false, nil, errors.Wrap(ErrUnsupportedFormat, "unterminated shape")
	}
	for _, part := range strings.Split(v[1:end], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, convErr := strconv.Atoi(part)
		if convErr != nil {
			return "", false, nil, errors.Wrapf(ErrUnsupportedFormat, "shape element %q", part)
		}
		shape = append(shape, n)
	}
	return descr, fortran, shape, nil
}
