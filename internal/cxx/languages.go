package cxx

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
)

// ErrUnsupportedFile is returned for paths whose extension is not a C++
// source or header extension.
var ErrUnsupportedFile = errors.New("cxx: unsupported file extension")

// Language is the canonical language name recorded for indexed files.
const Language = "cpp"

// extToLanguage maps file extensions to canonical language names. C headers
// are parsed with the C++ grammar since they are routinely included from C++.
var extToLanguage = map[string]string{
	".cpp": Language,
	".cc":  Language,
	".cxx": Language,
	".c++": Language,
	".hpp": Language,
	".hh":  Language,
	".hxx": Language,
	".h":   Language,
	".inl": Language,
	".ipp": Language,
}

var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

// Grammar returns the tree-sitter C++ grammar. Lazily initialized.
func Grammar() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = cpp.GetLanguage()
	})
	return grammar
}

// LanguageForFile returns the canonical language name for a file path based
// on its extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// Extensions returns the recognized extensions, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(extToLanguage))
	for ext := range extToLanguage {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}
