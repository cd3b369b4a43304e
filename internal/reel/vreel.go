package reel

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/roach88/filmreel/internal/cut"
	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/frame"
	"github.com/roach88/filmreel/internal/schema"
)

// CutKind tells which form a reel's cut field took.
type CutKind int

const (
	CutNone CutKind = iota
	CutInline
	CutFile
	CutFiles
)

// CutSource is the cut field of a virtual reel: an inline register, one
// register file, or a list of register files merged left to right.
type CutSource struct {
	Kind   CutKind
	Inline *cut.Register
	Paths  []string
}

// InlineCut builds an inline cut source.
func InlineCut(r *cut.Register) CutSource {
	return CutSource{Kind: CutInline, Inline: r}
}

// CutFromFiles builds a cut source from one or more register files.
func CutFromFiles(paths ...string) CutSource {
	if len(paths) == 1 {
		return CutSource{Kind: CutFile, Paths: paths}
	}
	return CutSource{Kind: CutFiles, Paths: paths}
}

// FrameSource is either a path to a frame document or an inline frame.
type FrameSource struct {
	Path   string
	Inline *frame.Frame
}

// FramePath is a FrameSource referencing a file.
func FramePath(path string) FrameSource { return FrameSource{Path: path} }

// InlineFrame is a FrameSource holding a frame directly.
func InlineFrame(f *frame.Frame) FrameSource { return FrameSource{Inline: f} }

// FrameSet is the frames field: an ordered list or a name->source mapping.
// Exactly one of List and Named is used; Named wins when both are set.
type FrameSet struct {
	List  []FrameSource
	Named map[string]FrameSource
}

// FrameList builds a list-form frame set.
func FrameList(srcs ...FrameSource) FrameSet { return FrameSet{List: srcs} }

// NamedFrames builds a mapping-form frame set.
func NamedFrames(m map[string]FrameSource) FrameSet { return FrameSet{Named: m} }

// IsNamed reports whether the mapping form is used.
func (s FrameSet) IsNamed() bool { return s.Named != nil }

// VirtualReel describes a reel assembled from frame and register sources.
type VirtualReel struct {
	Name   string
	Frames FrameSet
	Cut    CutSource
}

// ParseVirtualReel decodes and schema-validates a virtual reel document.
func ParseVirtualReel(name string, data []byte) (*VirtualReel, error) {
	v, err := doc.DecodeFile(name, data)
	if err != nil {
		return nil, err
	}
	vr, err := VirtualReelFromDocument(v)
	if err != nil {
		var pe *doc.ParseError
		if errors.As(err, &pe) && pe.Source == "" {
			pe.Source = name
		}
		return nil, err
	}
	return vr, nil
}

// VirtualReelFromDocument builds a VirtualReel from a decoded document.
//
// The untagged fields are resolved by document type, in this order:
//
//	cut:    object -> inline register, string -> one file, array -> file list
//	frames: array -> list form, object -> mapping form
//	source: string -> file path, object -> inline frame
func VirtualReelFromDocument(v doc.Value) (*VirtualReel, error) {
	if err := schema.Validate(schema.KindReel, v); err != nil {
		return nil, err
	}
	obj := v.(doc.Object)
	vr := &VirtualReel{Name: string(obj["name"].(doc.String))}

	switch c := obj["cut"].(type) {
	case nil:
	case doc.Object:
		reg, err := cut.FromDocument(c)
		if err != nil {
			return nil, err
		}
		vr.Cut = InlineCut(reg)
	case doc.String:
		vr.Cut = CutFromFiles(string(c))
	case doc.Array:
		paths := make([]string, len(c))
		for i, p := range c {
			paths[i] = string(p.(doc.String))
		}
		vr.Cut = CutSource{Kind: CutFiles, Paths: paths}
	}

	switch frames := obj["frames"].(type) {
	case doc.Array:
		list := make([]FrameSource, len(frames))
		for i, src := range frames {
			s, err := frameSourceFromDocument(src)
			if err != nil {
				return nil, &doc.ParseError{Message: fmt.Sprintf("frames[%d]: %v", i, err)}
			}
			list[i] = s
		}
		vr.Frames = FrameList(list...)
	case doc.Object:
		named := make(map[string]FrameSource, len(frames))
		for k, src := range frames {
			s, err := frameSourceFromDocument(src)
			if err != nil {
				return nil, &doc.ParseError{Message: fmt.Sprintf("frames.%s: %v", k, err)}
			}
			named[k] = s
		}
		vr.Frames = NamedFrames(named)
	}
	return vr, nil
}

func frameSourceFromDocument(v doc.Value) (FrameSource, error) {
	switch s := v.(type) {
	case doc.String:
		return FramePath(string(s)), nil
	default:
		f, err := frame.FromDocument(v)
		if err != nil {
			return FrameSource{}, err
		}
		return InlineFrame(f), nil
	}
}

// Document renders the reel back into document form.
func (vr *VirtualReel) Document() doc.Object {
	out := doc.Object{"name": doc.String(vr.Name)}

	source := func(s FrameSource) doc.Value {
		if s.Inline != nil {
			return s.Inline.Document()
		}
		return doc.String(s.Path)
	}
	if vr.Frames.IsNamed() {
		m := make(doc.Object, len(vr.Frames.Named))
		for k, s := range vr.Frames.Named {
			m[k] = source(s)
		}
		out["frames"] = m
	} else {
		arr := make(doc.Array, len(vr.Frames.List))
		for i, s := range vr.Frames.List {
			arr[i] = source(s)
		}
		out["frames"] = arr
	}

	switch vr.Cut.Kind {
	case CutInline:
		out["cut"] = vr.Cut.Inline.Document()
	case CutFile:
		out["cut"] = doc.String(vr.Cut.Paths[0])
	case CutFiles:
		arr := make(doc.Array, len(vr.Cut.Paths))
		for i, p := range vr.Cut.Paths {
			arr[i] = doc.String(p)
		}
		out["cut"] = arr
	}
	return out
}

// Loader reads the bytes of a source file.
type Loader interface {
	Load(path string) ([]byte, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) ([]byte, error)

// Load implements Loader.
func (f LoaderFunc) Load(path string) ([]byte, error) { return f(path) }

// FSLoader loads sources from a file system. Paths are slash-separated and
// relative to the file system root.
type FSLoader struct {
	FS fs.FS
}

// Load implements Loader.
func (l FSLoader) Load(path string) ([]byte, error) {
	return fs.ReadFile(l.FS, filepath.ToSlash(filepath.Clean(path)))
}

// DirLoader loads sources relative to dir. Absolute paths are read as is.
func DirLoader(dir string) Loader {
	return LoaderFunc(func(path string) ([]byte, error) {
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		return os.ReadFile(path)
	})
}

// Entry is one step of a plan.
type Entry struct {
	// Name is the effective display name.
	Name string
	// Source is the file the frame came from, empty for inline frames.
	Source string
	Frame  *frame.Frame
}

// Plan is an assembled reel: the initial register and the frames in
// execution order.
type Plan struct {
	Name     string
	Register *cut.Register
	Entries  []Entry
}

// Names returns the effective frame names in execution order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		names[i] = e.Name
	}
	return names
}

// Document renders the plan for display.
func (p *Plan) Document() doc.Object {
	frames := make(doc.Array, len(p.Entries))
	for i, e := range p.Entries {
		entry := doc.Object{
			"name":  doc.String(e.Name),
			"frame": e.Frame.Document(),
		}
		if e.Source != "" {
			entry["source"] = doc.String(e.Source)
		}
		frames[i] = entry
	}
	return doc.Object{
		"name":   doc.String(p.Name),
		"cut":    p.Register.Document(),
		"frames": frames,
	}
}

// Assemble resolves every source of vr into an execution plan. Nothing is
// executed. The first failure is returned as *Error.
func Assemble(vr *VirtualReel, l Loader) (*Plan, error) {
	reg, err := resolveCut(vr.Cut, l)
	if err != nil {
		return nil, annotate(err, "", -1)
	}

	plan := &Plan{Name: vr.Name, Register: reg}

	if vr.Frames.IsNamed() {
		for i, name := range sortedNames(vr.Frames.Named) {
			src := vr.Frames.Named[name]
			f, err := resolveFrame(src, l)
			if err != nil {
				return nil, annotate(err, name, i)
			}
			plan.Entries = append(plan.Entries, Entry{Name: name, Source: src.Path, Frame: f})
		}
		return plan, nil
	}

	for i, src := range vr.Frames.List {
		f, err := resolveFrame(src, l)
		if err != nil {
			return nil, annotate(err, defaultName(src, nil, i), i)
		}
		plan.Entries = append(plan.Entries, Entry{Name: defaultName(src, f, i), Source: src.Path, Frame: f})
	}
	return plan, nil
}

func sortedNames(m map[string]FrameSource) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.SortFunc(names, doc.CompareKeys)
	return names
}

// defaultName is the declared name, else the file name, else frame_<index>.
func defaultName(src FrameSource, f *frame.Frame, index int) string {
	if f != nil && f.Name != "" {
		return f.Name
	}
	if src.Path != "" {
		return frame.DefaultName(src.Path)
	}
	return "frame_" + strconv.Itoa(index)
}

func resolveFrame(src FrameSource, l Loader) (*frame.Frame, error) {
	if src.Inline != nil {
		return src.Inline, nil
	}
	data, err := load(l, src.Path)
	if err != nil {
		return nil, err
	}
	return frame.Parse(src.Path, data)
}

func resolveCut(c CutSource, l Loader) (*cut.Register, error) {
	switch c.Kind {
	case CutInline:
		return c.Inline.Clone(), nil
	case CutFile, CutFiles:
		regs := make([]*cut.Register, 0, len(c.Paths))
		for _, p := range c.Paths {
			data, err := load(l, p)
			if err != nil {
				return nil, err
			}
			r, err := cut.Decode(p, data)
			if err != nil {
				return nil, err
			}
			regs = append(regs, r)
		}
		return cut.MergeAll(regs...), nil
	}
	return cut.New(), nil
}

func load(l Loader, path string) ([]byte, error) {
	if l == nil {
		return nil, &FileError{Path: path, Err: fmt.Errorf("no loader configured")}
	}
	data, err := l.Load(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return data, nil
}
