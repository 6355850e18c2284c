package frame

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"path"
	"strings"
)

type (
	Frame struct {
		File     string `json:"filename,omitempty"`
		Function string `json:"function,omitempty"`
		InApp    *bool  `json:"in_app,omitempty"`
		Line     uint32 `json:"lineno,omitempty"`
		Package  string `json:"package,omitempty"`
		Path     string `json:"abs_path,omitempty"`
	}
)

// FromGoFunction builds a frame out of a fully qualified Go function name,
// such as github.com/getsentry/stackprof/internal/session.(*Session).Start,
// and the location reported by the runtime.
func FromGoFunction(function, absPath string, line int) Frame {
	f := Frame{
		Function: function,
		Package:  goPackage(function),
		Path:     absPath,
		File:     path.Base(absPath),
	}
	if line > 0 {
		f.Line = uint32(line)
	}
	inApp := f.IsGoApplicationFrame()
	f.InApp = &inApp
	return f
}

// goPackage extracts the import path of the package a function belongs to.
func goPackage(function string) string {
	lastSlash := strings.LastIndex(function, "/")
	if lastSlash < 0 {
		lastSlash = 0
	}
	dot := strings.Index(function[lastSlash:], ".")
	if dot < 0 {
		return ""
	}
	return function[:lastSlash+dot]
}

func (f Frame) ID() string {
	// Inlined functions share a program counter with their caller, so the
	// identity has to include the location and not only the function.
	hash := md5.Sum([]byte(fmt.Sprintf("%s:%s:%d", f.File, f.Function, f.Line)))
	return hex.EncodeToString(hash[:])
}

// WriteToHash feeds the identity of the frame to h. Two frames write the
// same bytes only if they have the same location and function.
func (f Frame) WriteToHash(h hash.Hash) {
	var s string
	if f.Path != "" {
		s = f.Path
	} else if f.File != "" {
		s = f.File
	} else {
		s = "-"
	}
	h.Write([]byte(s))
	h.Write([]byte{0})
	if f.Function != "" {
		s = f.Function
	} else {
		s = "-"
	}
	h.Write([]byte(s))
	h.Write([]byte{0})
	var line [4]byte
	binary.LittleEndian.PutUint32(line[:], f.Line)
	h.Write(line[:])
}

// IsGoApplicationFrame returns false for frames of the runtime and the
// standard library. Packages from a module path always contain a dot in
// their first path element.
func (f Frame) IsGoApplicationFrame() bool {
	if f.Package == "" {
		return false
	}
	if f.Package == "main" {
		return true
	}
	first := strings.SplitN(f.Package, "/", 2)[0]
	return strings.Contains(first, ".")
}
