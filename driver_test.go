package vkframe_test

import (
	"github.com/andewx/vkframe"
	"github.com/andewx/vkframe/internal/vkfake"
)

var (
	_ vkframe.Driver = (*vkfake.Driver)(nil)
	_ vkframe.Window = (*vkfake.Window)(nil)
)
