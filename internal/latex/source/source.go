// Package source reads LaTeX and BibTeX files into immutable units of text.
package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"
)

var utf8ByteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Unit is the text of one file as loaded from disk.
type Unit struct {
	Path     string
	Text     string
	Encoding string
}

// Loader reads source units.
type Loader interface {
	Load(path string) (Unit, error)
}

// FileLoader loads units from the local file system.
type FileLoader struct{}

// Load opens, fully reads and closes the file at path.
//
// #nosec G304
func (FileLoader) Load(path string) (unit Unit, err error) {
	cleanPath := filepath.Clean(path)
	fileHandle, openError := os.Open(cleanPath)
	if openError != nil {
		return Unit{}, openError
	}
	defer func() {
		if closeError := fileHandle.Close(); closeError != nil && err == nil {
			err = fmt.Errorf("close %s: %w", cleanPath, closeError)
		}
	}()
	data, readError := io.ReadAll(fileHandle)
	if readError != nil {
		return Unit{}, fmt.Errorf("read %s: %w", cleanPath, readError)
	}
	text, encoding, decodeError := Decode(data)
	if decodeError != nil {
		return Unit{}, fmt.Errorf("decode %s: %w", cleanPath, decodeError)
	}
	return Unit{Path: cleanPath, Text: text, Encoding: encoding}, nil
}

// Decode interprets data as UTF-8, falling back to latin-1 when it is not valid UTF-8.
// A leading UTF-8 byte order mark is dropped.
func Decode(data []byte) (string, string, error) {
	data = bytes.TrimPrefix(data, utf8ByteOrderMark)
	if utf8.Valid(data) {
		return string(data), EncodingUTF8, nil
	}
	decoded, decodeError := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if decodeError != nil {
		return "", "", decodeError
	}
	return string(decoded), EncodingLatin1, nil
}

var _ Loader = FileLoader{}
