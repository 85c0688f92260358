package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// maxJPEGSize caps a single decoded frame taken from an ffmpeg pipe.
const maxJPEGSize = 10 * 1024 * 1024

var errNoJPEG = errors.New("no jpeg frame in stream")

// readJPEGs splits a stream of concatenated JPEG images (ffmpeg image2pipe/mjpeg output)
// and calls fn for each complete image. Stopping early is signalled by fn returning io.EOF.
func readJPEGs(r io.Reader, fn func(frame []byte) error) (int, error) {
	reader := bufio.NewReaderSize(r, 256*1024)
	n := 0

	for {
		if err := findJPEGStart(reader); err != nil {
			if err == io.EOF {
				return n, nil
			}
			return n, err
		}

		frame, err := readUntilJPEGEnd(reader)
		if err != nil {
			if err == io.EOF {
				// Truncated tail; whatever was complete has already been delivered.
				return n, nil
			}
			return n, err
		}

		n++
		if err := fn(frame); err != nil {
			if err == io.EOF {
				return n, nil
			}
			return n, err
		}
	}
}

// firstJPEG returns the first complete JPEG image in r.
func firstJPEG(r io.Reader) ([]byte, error) {
	var out []byte
	_, err := readJPEGs(r, func(frame []byte) error {
		out = frame
		return io.EOF
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errNoJPEG
	}
	return out, nil
}

func findJPEGStart(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		b, err = r.ReadByte()
		if err != nil {
			return err
		}
		if b == 0xD8 {
			return nil
		}
	}
}

func readUntilJPEGEnd(r *bufio.Reader) ([]byte, error) {
	data := []byte{0xFF, 0xD8}

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, b)

		if b == 0xFF {
			next, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			data = append(data, next)
			if next == 0xD9 {
				return data, nil
			}
		}

		if len(data) > maxJPEGSize {
			return nil, fmt.Errorf("jpeg frame too large: %d bytes", len(data))
		}
	}
}
