package vkframe

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestPerspectiveClipSpace(t *testing.T) {
	const near, far = 0.5, 50
	proj := Perspective(mgl32.DegToRad(60), 16.0/9.0, near, far)

	type spec struct {
		point mgl32.Vec3
		expY  float32
		expZ  float32
	}
	specs := []spec{
		// On the near plane depth is 0, on the far plane 1.
		{mgl32.Vec3{0, 0, -near}, 0, 0},
		{mgl32.Vec3{0, 0, -far}, 0, 1},
	}
	for index, s := range specs {
		clip := proj.Mul4x1(s.point.Vec4(1))
		ndc := clip.Vec3().Mul(1 / clip.W())
		if math.Abs(float64(ndc.Z()-s.expZ)) > 1e-5 {
			t.Errorf("[spec %d] expected depth %f; got %f", index, s.expZ, ndc.Z())
		}
		if math.Abs(float64(ndc.Y()-s.expY)) > 1e-5 {
			t.Errorf("[spec %d] expected y %f; got %f", index, s.expY, ndc.Y())
		}
	}

	// A point above the camera lands in the top half, which is negative Y.
	up := proj.Mul4x1(mgl32.Vec4{0, 1, -5, 1})
	if up.Y() >= 0 {
		t.Fatalf("expected a point above the camera to map to negative y; got %f", up.Y())
	}
}

func TestVulkanProjectionMatOfIdentity(t *testing.T) {
	m := VulkanProjectionMat(mgl32.Ident4())
	if !m.ApproxEqual(vulkanClip) {
		t.Fatalf("expected the clip correction matrix; got %v", m)
	}
}
