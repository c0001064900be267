// Package audio assembles synthesis fragments into one artifact and
// measures the result.
package audio

import (
	"errors"
	"io"
	"os"

	"github.com/tcolgate/mp3"
)

// WriteFragments concatenates audio fragments in order into a single
// file and returns its byte size. MP3 frames concatenate cleanly, so the
// fragments are written back to back.
func WriteFragments(path string, fragments [][]byte) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var size int64
	for _, fragment := range fragments {
		n, err := f.Write(fragment)
		if err != nil {
			return 0, err
		}
		size += int64(n)
	}
	return size, nil
}

// Duration sums the frame durations of an MP3 file in seconds.
func Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total float64

	for {
		err := decoder.Decode(&frame, &skipped)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}

	return total, nil
}
