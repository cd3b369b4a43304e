package reel

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// physicalFrame matches <reel>.<seq><s|e>.<description>.fr.<ext>, where seq
// is one or more underscore-separated numbers (01, 01_02).
var physicalFrame = regexp.MustCompile(`^(.+)\.(\d+(?:_\d+)*)([se])\.(.+)\.fr\.(json|ya?ml)$`)

// PhysicalFrame is a frame file discovered on disk.
type PhysicalFrame struct {
	Path string
	Seq  []int
	// Success is false for error-path frames (the "e" marker).
	Success     bool
	Description string
}

// FindFrames lists the frame files of reel name in dir, in sequence order.
func FindFrames(dir, name string) ([]PhysicalFrame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &FileError{Path: dir, Err: err}
	}

	var out []PhysicalFrame
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := physicalFrame.FindStringSubmatch(e.Name())
		if m == nil || m[1] != name {
			continue
		}
		seq, err := parseSeq(m[2])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, PhysicalFrame{
			Path:        e.Name(),
			Seq:         seq,
			Success:     m[3] == "s",
			Description: m[4],
		})
	}

	slices.SortStableFunc(out, func(a, b PhysicalFrame) int {
		if c := slices.Compare(a.Seq, b.Seq); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	return out, nil
}

func parseSeq(s string) ([]int, error) {
	parts := strings.Split(s, "_")
	seq := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad sequence number %q", s)
		}
		seq[i] = n
	}
	return seq, nil
}

// Discover builds the virtual reel of a physical reel: the frame files of
// name in dir, and <name>.cut.json as the initial register when present.
func Discover(dir, name string) (*VirtualReel, error) {
	frames, err := FindFrames(dir, name)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, &FileError{Path: dir, Err: fmt.Errorf("no frames found for reel %q", name)}
	}

	vr := &VirtualReel{Name: name}
	for _, f := range frames {
		vr.Frames.List = append(vr.Frames.List, FramePath(f.Path))
	}

	cutFile := name + ".cut.json"
	if _, err := os.Stat(filepath.Join(dir, cutFile)); err == nil {
		vr.Cut = CutFromFiles(cutFile)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, &FileError{Path: cutFile, Err: err}
	}
	return vr, nil
}

// AssembleDir discovers and assembles a physical reel.
func AssembleDir(dir, name string) (*Plan, error) {
	vr, err := Discover(dir, name)
	if err != nil {
		return nil, annotate(err, "", -1)
	}
	return Assemble(vr, DirLoader(dir))
}
