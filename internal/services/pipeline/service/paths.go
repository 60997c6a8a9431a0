package service

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"landpulse/internal/core/imagery"
)

// OutputPath is {dir}/{locality}_gifs/{INDEX}_spatial.gif
func OutputPath(dir, locality string, idx imagery.Index) string {
	return filepath.Join(dir, OutputRel(locality, idx))
}

// OutputRel is the artifact path relative to the output dir
func OutputRel(locality string, idx imagery.Index) string {
	return filepath.Join(safeName(locality)+"_gifs", idx.String()+"_spatial.gif")
}

// OutputURL is the public URL of an artifact under the static prefix
func OutputURL(prefix, locality string, idx imagery.Index) string {
	return path.Join(prefix, url.PathEscape(safeName(locality)+"_gifs"), idx.String()+"_spatial.gif")
}

// safeName keeps a locality name usable as one path segment
func safeName(name string) string {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
