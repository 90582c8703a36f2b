package graph

import (
	"sort"

	"github.com/andewx/vkframe"
	"github.com/cockroachdb/errors"
)

// Register resolves resources by name. The register handed to a pass only
// resolves the resources that pass declared.
type Register struct {
	nodes   map[string]*resourceNode
	allowed map[string]struct{}
	pass    string
}

func newRegister() *Register {
	return &Register{nodes: make(map[string]*resourceNode)}
}

// scoped returns a view limited to names, used while pass runs.
func (r *Register) scoped(pass string, names []string) *Register {
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	return &Register{nodes: r.nodes, allowed: allowed, pass: pass}
}

func (r *Register) lookup(name string) (*resourceNode, error) {
	if r.allowed != nil {
		if _, ok := r.allowed[name]; !ok {
			return nil, errors.Wrapf(ErrResourceNotFound, "%q not declared by pass %q", name, r.pass)
		}
	}
	n, ok := r.nodes[name]
	if !ok {
		return nil, errors.Wrapf(ErrResourceNotFound, "%q", name)
	}
	return n, nil
}

// Resource returns the resource registered under name.
func (r *Register) Resource(name string) (Resource, error) {
	n, err := r.lookup(name)
	if err != nil {
		return Resource{}, err
	}
	return n.res, nil
}

// Image returns the image registered under name.
func (r *Register) Image(name string) (*vkframe.Image, error) {
	res, err := r.Resource(name)
	if err != nil {
		return nil, err
	}
	img, ok := res.Image()
	if !ok {
		return nil, errors.Newf("graph: resource %q is a %s, not an image", name, res.Kind())
	}
	return img, nil
}

// Buffer returns the buffer registered under name.
func (r *Register) Buffer(name string) (*vkframe.Buffer, error) {
	res, err := r.Resource(name)
	if err != nil {
		return nil, err
	}
	buf, ok := res.Buffer()
	if !ok {
		return nil, errors.Newf("graph: resource %q is a %s, not a buffer", name, res.Kind())
	}
	return buf, nil
}

// MustImage is Image for execute closures. A failed lookup panics and is
// returned as an error by Graph.Exec.
func (r *Register) MustImage(name string) *vkframe.Image {
	img, err := r.Image(name)
	if err != nil {
		panic(err)
	}
	return img
}

// MustBuffer is Buffer for execute closures.
func (r *Register) MustBuffer(name string) *vkframe.Buffer {
	buf, err := r.Buffer(name)
	if err != nil {
		panic(err)
	}
	return buf
}

// Has reports whether name resolves.
func (r *Register) Has(name string) bool {
	_, err := r.lookup(name)
	return err == nil
}

// Names returns the resolvable names in sorted order.
func (r *Register) Names() []string {
	var names []string
	for n := range r.nodes {
		if r.allowed != nil {
			if _, ok := r.allowed[n]; !ok {
				continue
			}
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
