package backup

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// fileChecksum returns the SHA256 digest and size of a file.
func fileChecksum(path string) ([]byte, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	n, err := io.Copy(hash, file)
	if err != nil {
		return nil, 0, err
	}
	return hash.Sum(nil), n, nil
}

// verify fails unless a and b have identical content.
func verify(a, b string) error {
	sumA, sizeA, err := fileChecksum(a)
	if err != nil {
		return err
	}
	sumB, sizeB, err := fileChecksum(b)
	if err != nil {
		return err
	}
	if sizeA != sizeB {
		return fmt.Errorf("size mismatch: %d != %d", sizeA, sizeB)
	}
	if !bytes.Equal(sumA, sumB) {
		return fmt.Errorf("checksum mismatch: sha256:%x != sha256:%x", sumA, sumB)
	}
	return nil
}
