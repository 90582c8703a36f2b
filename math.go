package vkframe

import "github.com/go-gl/mathgl/mgl32"

// vulkanClip flips Y and maps depth from [-1, 1] to [0, 1]. Column major.
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// VulkanProjectionMat converts a GL style projection matrix, as produced by
// mgl32, to Vulkan clip space: top-left origin and [0, 1] depth.
func VulkanProjectionMat(proj mgl32.Mat4) mgl32.Mat4 {
	return vulkanClip.Mul4(proj)
}

// Perspective is mgl32.Perspective in Vulkan clip space. fovy is in radians.
func Perspective(fovy, aspect, near, far float32) mgl32.Mat4 {
	return VulkanProjectionMat(mgl32.Perspective(fovy, aspect, near, far))
}
