// Package frame defines the frame document: one scripted request/response
// exchange plus the cut variables it reads and writes.
//
// Request and Response keep every field the frame document declares. Fields
// other than uri/status and body are carried in an open bag (Etc) and are
// written back at the same level they were read from.
package frame

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/placeholder"
	"github.com/roach88/filmreel/internal/schema"
)

// Protocol selects the transport a frame is sent over.
type Protocol string

const (
	GRPC Protocol = "GRPC"
	HTTP Protocol = "HTTP"
)

// ParseProtocol validates a protocol name.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(s) {
	case GRPC, HTTP:
		return Protocol(s), nil
	}
	return "", fmt.Errorf("unknown protocol %q (want GRPC or HTTP)", s)
}

// Request is the request template of a frame.
type Request struct {
	URI  string
	Body doc.Value
	// Etc holds every other top-level request field (headers, metadata, ...).
	Etc doc.Object
}

// Document flattens the request into {uri, body, ...Etc}.
func (r Request) Document() doc.Object {
	out := make(doc.Object, len(r.Etc)+2)
	for k, v := range r.Etc {
		out[k] = v
	}
	out["uri"] = doc.String(r.URI)
	if r.Body != nil {
		out["body"] = r.Body
	}
	return out
}

// Response is the expected response template of a frame.
type Response struct {
	Status int64
	Body   doc.Value
	Etc    doc.Object
}

// Document flattens the response into {status, body, ...Etc}.
func (r Response) Document() doc.Object {
	out := make(doc.Object, len(r.Etc)+2)
	for k, v := range r.Etc {
		out[k] = v
	}
	out["status"] = doc.Int(r.Status)
	if r.Body != nil {
		out["body"] = r.Body
	}
	return out
}

// Frame is a protocol-tagged request/response template pair.
type Frame struct {
	// Name is the declared name, if the document carries one.
	Name     string
	Protocol Protocol
	Cut      InstructionSet
	Request  Request
	Response Response
}

// Parse decodes and schema-validates a frame document. name selects JSON or
// YAML decoding and is reported in errors.
func Parse(name string, data []byte) (*Frame, error) {
	v, err := doc.DecodeFile(name, data)
	if err != nil {
		return nil, err
	}
	f, err := FromDocument(v)
	if err != nil {
		var pe *doc.ParseError
		if errors.As(err, &pe) && pe.Source == "" {
			pe.Source = name
		}
		return nil, err
	}
	return f, nil
}

// FromDocument builds a Frame from a decoded document.
func FromDocument(v doc.Value) (*Frame, error) {
	if err := schema.Validate(schema.KindFrame, v); err != nil {
		return nil, err
	}
	obj := v.(doc.Object)

	f := &Frame{}
	if n, ok := obj["name"].(doc.String); ok {
		f.Name = string(n)
	}

	proto, err := ParseProtocol(string(obj["protocol"].(doc.String)))
	if err != nil {
		return nil, &doc.ParseError{Message: err.Error()}
	}
	f.Protocol = proto

	f.Cut, err = instructionSetFromDocument(obj["cut"])
	if err != nil {
		return nil, &doc.ParseError{Message: err.Error()}
	}

	req := obj["request"].(doc.Object)
	f.Request = Request{
		URI:  string(req["uri"].(doc.String)),
		Body: req["body"],
		Etc:  without(req, "uri", "body"),
	}

	resp := obj["response"].(doc.Object)
	f.Response = Response{
		Status: int64(resp["status"].(doc.Int)),
		Body:   resp["body"],
		Etc:    without(resp, "status", "body"),
	}
	return f, nil
}

func without(obj doc.Object, skip ...string) doc.Object {
	out := make(doc.Object, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	for _, k := range skip {
		delete(out, k)
	}
	return out
}

// Document renders the frame back into document form.
func (f *Frame) Document() doc.Object {
	out := doc.Object{
		"protocol": doc.String(f.Protocol),
		"cut":      f.Cut.Document(),
		"request":  f.Request.Document(),
		"response": f.Response.Document(),
	}
	if f.Name != "" {
		out["name"] = doc.String(f.Name)
	}
	return out
}

// MarshalJSON implements json.Marshaler with sorted keys.
func (f *Frame) MarshalJSON() ([]byte, error) {
	return doc.Marshal(f.Document())
}

// Hydrate checks the declared reads against vars and resolves the request
// template. Nothing is built when a read is missing.
func (f *Frame) Hydrate(vars placeholder.Lookup, r *placeholder.Resolver) (Request, error) {
	if err := f.Cut.Check(vars); err != nil {
		return Request{}, err
	}
	if r == nil {
		r = placeholder.NewResolver()
	}
	uri, err := r.ResolveString(f.Request.URI, vars)
	if err != nil {
		return Request{}, err
	}
	var body doc.Value
	if f.Request.Body != nil {
		if body, err = r.Resolve(f.Request.Body, vars); err != nil {
			return Request{}, err
		}
	}
	etc, err := r.Resolve(f.Request.Etc, vars)
	if err != nil {
		return Request{}, err
	}
	etcObj, _ := etc.(doc.Object)
	return Request{URI: uri, Body: body, Etc: etcObj}, nil
}

// Expected returns the response template with every known cut variable
// substituted; unknown placeholders stay as wildcards.
func (f *Frame) Expected(vars placeholder.Lookup, r *placeholder.Resolver) doc.Value {
	if r == nil {
		r = placeholder.NewResolver()
	}
	return r.ResolveKnown(f.Response.Document(), vars)
}

// DefaultName derives a frame name from its file path by dropping the
// directory and the .fr.json / .fr.yaml suffix.
func DefaultName(path string) string {
	base := filepath.Base(path)
	for _, suffix := range []string{".fr.json", ".fr.yaml", ".fr.yml", ".json", ".yaml", ".yml"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return base
}
