package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
	"unicode/utf8"
)

// FileReader reads a local UTF-8 text file as-is.
type FileReader struct{}

func (FileReader) ReadText(_ context.Context, ref Ref) (TextResult, error) {
	start := time.Now()
	data, err := os.ReadFile(ref.Location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return TextResult{}, fmt.Errorf("%w: %s", ErrSourceNotFound, ref.Location)
		}
		return TextResult{}, err
	}
	var warns []string
	if !utf8.Valid(data) {
		warns = append(warns, "file is not valid UTF-8")
	}
	return TextResult{Text: string(data), Pages: 1, Method: "file", Duration: time.Since(start), Warnings: warns}, nil
}
