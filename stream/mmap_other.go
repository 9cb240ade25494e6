//go:build !unix

package stream

import (
	"errors"
	"os"
)

func mapFile(*os.File, int) ([]byte, func([]byte) error, error) {
	return nil, nil, errors.New("stream: mmap unsupported")
}
