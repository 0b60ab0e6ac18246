package main

import (
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/arbor/pkg/errors"
)

// readMatrix reads a two-dimensional float64 array.
func readMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read header of %s", path)
	}
	m := &mat.Dense{}
	if err := r.Read(m); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return m, nil
}

// readVector reads a float64 array of any shape as a flat vector.
func readVector(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read header of %s", path)
	}
	var v []float64
	if err := r.Read(&v); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return v, nil
}

// writeNpy writes v, a slice or gonum matrix, to path.
func writeNpy(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := npyio.Write(f, v); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}
