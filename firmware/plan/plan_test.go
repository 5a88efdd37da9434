package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	needed := []string{"wifi-firmware", "linux-firmware-amd", "wifi-firmware", "sof-firmware"}
	installed := []string{"sof-firmware", "bluez-firmware", "wifi-firmware", "bluez-firmware"}

	p := Compute(needed, installed)

	assert.Equal(t, []string{"linux-firmware-amd", "sof-firmware", "wifi-firmware"}, p.Needed)
	assert.Equal(t, []string{"bluez-firmware", "sof-firmware", "wifi-firmware"}, p.Installed)
	assert.Equal(t, []string{"bluez-firmware"}, p.Remove)
	assert.Equal(t, []string{"linux-firmware-amd"}, p.Missing)
	assert.False(t, p.Empty())
}

func TestComputeIdempotent(t *testing.T) {
	needed := []string{"b", "a", "a"}
	installed := []string{"c", "b", "c"}

	first := Compute(needed, installed)
	second := Compute(first.Needed, first.Installed)
	assert.Equal(t, first, second)
}

func TestComputeNothingToDo(t *testing.T) {
	p := Compute([]string{"wifi-firmware"}, []string{"wifi-firmware"})
	assert.True(t, p.Empty())
	assert.Empty(t, p.Remove)
	assert.Empty(t, p.Missing)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Dedupe([]string{"b", "", "a", "b", "a"}))
	assert.Nil(t, Dedupe(nil))
}

func TestDifference(t *testing.T) {
	assert.Equal(t, []string{"a"}, Difference([]string{"a", "b"}, []string{"b", "c"}))
	assert.Nil(t, Difference([]string{"a"}, []string{"a"}))
	assert.Equal(t, []string{"a"}, Difference([]string{"a", "a"}, nil))
}

func TestRender(t *testing.T) {
	p := Compute([]string{"wifi-firmware"}, []string{"bluez-firmware", "wifi-firmware"})
	out := p.Render()

	assert.Contains(t, out, "Firmware required by detected hardware (1):")
	assert.Contains(t, out, "Managed firmware currently installed (2):")
	assert.Contains(t, out, "To remove (1):")
	assert.Contains(t, out, "  bluez-firmware")
	assert.Contains(t, out, "To install (0):")
	assert.Contains(t, out, "(none)")
	assert.Equal(t, 1, strings.Count(out, "  bluez-firmware"))
}
