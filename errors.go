package vkframe

import (
	"fmt"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Recoverable conditions. Callers test for these with errors.Is.
var (
	ErrSwapchainOutOfDate      = errors.New("vkframe: swapchain out of date")
	ErrDescriptorPoolExhausted = errors.New("vkframe: descriptor pool exhausted")
	ErrInvalidSpirv            = errors.New("vkframe: invalid SPIR-V blob")
	ErrNoSuitableDevice        = errors.New("vkframe: no suitable physical device")
	ErrInvalidState            = errors.New("vkframe: invalid backend state")
)

// Raw values for results and flags not exported by the vulkan bindings.
const (
	errorOutOfPoolMemory = vk.Result(-1000069000) // VK_ERROR_OUT_OF_POOL_MEMORY
	errorFragmentedPool  = vk.Result(-12)         // VK_ERROR_FRAGMENTED_POOL
)

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// newError converts a failed vk.Result into an error annotated with the
// failing operation. Success maps to nil.
func newError(ret vk.Result, op string) error {
	if ret == vk.Success {
		return nil
	}
	return errors.Wrapf(vk.Error(ret), "vulkan: %s (%d)", op, ret)
}

// assertf panics with an assertion failure when cond is false. Used for
// contract violations that indicate a programming error.
func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}

// checkErr turns a panic raised further down the stack into an error.
func checkErr(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = e
			return
		}
		*err = fmt.Errorf("%+v", v)
	}
}

func orPanic(err error) {
	if err != nil {
		panic(err)
	}
}
