package image_test

import (
	"bytes"
	stdimage "image"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/plantcam/plantcam/image"
)

// encodeJPEG returns a JPEG of a test frame of the given size.
func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, testFrame(stdimage.Rect(0, 0, w, h)), imaging.JPEG, imaging.JPEGQuality(90)))
	return buf.Bytes()
}

// stripHuffmanTables removes the DHT segments before the start of scan, the
// way webcams send motion JPEG frames.
func stripHuffmanTables(t *testing.T, jpg []byte) []byte {
	t.Helper()
	r := append([]byte{}, jpg[:2]...)
	i := 2
	for {
		require.Less(t, i+4, len(jpg), "no start of scan")
		require.Equal(t, byte(0xff), jpg[i])
		m := jpg[i+1]
		if m == 0xda {
			return append(r, jpg[i:]...)
		}
		n := 2 + (int(jpg[i+2])<<8 | int(jpg[i+3]))
		if m != 0xc4 {
			r = append(r, jpg[i:i+n]...)
		}
		i += n
	}
}

func TestDecodeMJPEG(t *testing.T) {
	jpg := encodeJPEG(t, 32, 24)
	mjpg := stripHuffmanTables(t, jpg)
	require.Less(t, len(mjpg), len(jpg))

	_, err := imaging.Decode(bytes.NewReader(mjpg))
	require.Error(t, err, "frame without tables decoded by plain decoder")

	want, err := imaging.Decode(bytes.NewReader(jpg))
	require.NoError(t, err)

	// The encoder uses the standard tables, so the result is identical.
	got, err := image.DecodeMJPEG(mjpg)
	require.NoError(t, err)
	require.Equal(t, imaging.Clone(want), imaging.Clone(got))

	// Frames with their own tables are decoded as is.
	got, err = image.DecodeMJPEG(jpg)
	require.NoError(t, err)
	require.Equal(t, imaging.Clone(want), imaging.Clone(got))
}

func TestDecodeMJPEGInvalid(t *testing.T) {
	for _, buf := range [][]byte{
		nil,
		[]byte("not a jpeg"),
		{0xff, 0xd8, 0xff},
		{0xff, 0xd8, 0x00, 0x00, 0x00},
	} {
		_, err := image.DecodeMJPEG(buf)
		require.Error(t, err, "%x", buf)
	}
}
