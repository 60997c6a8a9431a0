// Package animation encodes an ordered frame list into a looping GIF written atomically
package animation

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"
	"time"

	"landpulse/internal/core/frames"
	perr "landpulse/internal/platform/errors"

	xdraw "golang.org/x/image/draw"
)

// DefaultFrameDuration is how long each month stays on screen
const DefaultFrameDuration = 800 * time.Millisecond

// Options controls timing and looping
type Options struct {
	FrameDuration time.Duration
	// Loop repeats forever when true and plays once otherwise
	Loop bool
}

// DefaultOptions is 800ms per frame, looping forever
var DefaultOptions = Options{FrameDuration: DefaultFrameDuration, Loop: true}

// Encode renders frs to a GIF at path and returns path.
// the file is replaced only once the whole animation is encoded
func Encode(frs []frames.Frame, path string, opts Options) (string, error) {
	if len(frs) == 0 {
		return "", perr.InvalidArgf("animation: no frames for %s", filepath.Base(path))
	}
	data, err := Render(frs, opts)
	if err != nil {
		return "", err
	}
	if err := WriteAtomic(path, data); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "write animation %s", path)
	}
	return path, nil
}

// Render encodes frs into GIF bytes in memory
func Render(frs []frames.Frame, opts Options) ([]byte, error) {
	if len(frs) == 0 {
		return nil, perr.InvalidArgf("animation: no frames")
	}
	d := opts.FrameDuration
	if d <= 0 {
		d = DefaultFrameDuration
	}
	// gif delays are in hundredths of a second
	delay := max(int(d/(10*time.Millisecond)), 1)

	bounds := frs[0].Image.Bounds()
	anim := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(frs)),
		Delay:     make([]int, 0, len(frs)),
		LoopCount: -1,
		Config:    image.Config{Width: bounds.Dx(), Height: bounds.Dy()},
	}
	if opts.Loop {
		anim.LoopCount = 0
	}

	for _, f := range frs {
		src := fit(f.Image, bounds)
		dst := image.NewPaletted(image.Rect(0, 0, bounds.Dx(), bounds.Dy()), palette.Plan9)
		draw.FloydSteinberg.Draw(dst, dst.Bounds(), src, src.Bounds().Min)
		anim.Image = append(anim.Image, dst)
		anim.Delay = append(anim.Delay, delay)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "encode gif")
	}
	return buf.Bytes(), nil
}

// fit scales img to the size of bounds when the sizes differ
func fit(img image.Image, bounds image.Rectangle) image.Image {
	if img.Bounds().Size() == bounds.Size() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// WriteAtomic writes data to a temp file next to path and renames it into place
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.part")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", filepath.Base(tmpName), err)
	}
	return nil
}
