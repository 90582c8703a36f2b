package vkframe

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
)

func spirvBytes(order binary.AppendByteOrder, words ...uint32) []byte {
	out := make([]byte, 0, len(words)*4)
	for _, w := range words {
		out = order.AppendUint32(out, w)
	}
	return out
}

func TestParseSpirv(t *testing.T) {
	type spec struct {
		data     []byte
		expWords []uint32
		expErr   error
	}
	specs := []spec{
		{spirvBytes(binary.LittleEndian, SpirvMagic, 0x10000, 7), []uint32{SpirvMagic, 0x10000, 7}, nil},
		{spirvBytes(binary.BigEndian, SpirvMagic, 0x10000, 7), []uint32{SpirvMagic, 0x10000, 7}, nil},
		{nil, nil, ErrInvalidSpirv},
		{[]byte{0x03, 0x02, 0x23}, nil, ErrInvalidSpirv},
		{spirvBytes(binary.LittleEndian, SpirvMagic)[:3], nil, ErrInvalidSpirv},
		{spirvBytes(binary.LittleEndian, 0xdeadbeef, 0), nil, ErrInvalidSpirv},
	}
	for index, s := range specs {
		words, err := ParseSpirv(s.data)
		if s.expErr != nil {
			if !errors.Is(err, s.expErr) {
				t.Errorf("[spec %d] expected %v; got %v", index, s.expErr, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", index, err)
			continue
		}
		if len(words) != len(s.expWords) {
			t.Errorf("[spec %d] expected %d words; got %d", index, len(s.expWords), len(words))
			continue
		}
		for i := range words {
			if words[i] != s.expWords[i] {
				t.Errorf("[spec %d] expected word %d to be %#x; got %#x", index, i, s.expWords[i], words[i])
			}
		}
	}
}

func TestReadSpirvFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.spv")
	if err := os.WriteFile(good, spirvBytes(binary.LittleEndian, SpirvMagic, 1, 2), 0o644); err != nil {
		t.Fatal(err)
	}
	words, err := ReadSpirvFile(good)
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 3 {
		t.Fatalf("expected 3 words; got %d", len(words))
	}

	if _, err := ReadSpirvFile(filepath.Join(dir, "missing.spv")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestShaderModuleLifetime(t *testing.T) {
	b, drv, _ := newTestBackend(t, DefaultConfig())
	module, err := NewShaderModule(drv, b.Device(), testSpirv)
	if err != nil {
		t.Fatal(err)
	}
	if module == nil || drv.Live("ShaderModule") != 1 {
		t.Fatal("expected one live shader module")
	}
	drv.DestroyShaderModule(b.Device(), module)
}
