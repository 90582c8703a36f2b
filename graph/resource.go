package graph

import (
	"fmt"

	"github.com/andewx/vkframe"
)

// ResourceKind tags the variant held by a Resource.
type ResourceKind int

const (
	KindImage ResourceKind = iota
	KindBuffer
)

func (k ResourceKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindBuffer:
		return "buffer"
	}
	return fmt.Sprintf("ResourceKind(%d)", int(k))
}

// Resource is either an image or a buffer.
type Resource struct {
	kind   ResourceKind
	image  *vkframe.Image
	buffer *vkframe.Buffer
}

func ImageResource(img *vkframe.Image) Resource {
	return Resource{kind: KindImage, image: img}
}

func BufferResource(buf *vkframe.Buffer) Resource {
	return Resource{kind: KindBuffer, buffer: buf}
}

func (r Resource) Kind() ResourceKind { return r.kind }

// Image returns the image and true when r holds one.
func (r Resource) Image() (*vkframe.Image, bool) {
	return r.image, r.kind == KindImage
}

// Buffer returns the buffer and true when r holds one.
func (r Resource) Buffer() (*vkframe.Buffer, bool) {
	return r.buffer, r.kind == KindBuffer
}

// Match calls the function for the variant r holds.
func (r Resource) Match(onImage func(*vkframe.Image), onBuffer func(*vkframe.Buffer)) {
	switch r.kind {
	case KindImage:
		onImage(r.image)
	case KindBuffer:
		onBuffer(r.buffer)
	default:
		panic(fmt.Sprintf("graph: resource with unknown kind %d", r.kind))
	}
}

func (r Resource) destroy() {
	r.Match(
		func(img *vkframe.Image) { img.Destroy() },
		func(buf *vkframe.Buffer) { buf.Destroy() },
	)
}

// Ownership says who releases a resource.
type Ownership int

const (
	// Owned resources were created by the graph and die with it.
	Owned Ownership = iota
	// Imported resources are borrowed.
	Imported
)

type resourceNode struct {
	name  string
	res   Resource
	owner Ownership
}
