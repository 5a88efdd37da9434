package packagemanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFamilySetMatches(t *testing.T) {
	fs, err := NewFamilySet()
	assert.NoError(t, err)

	managed := []string{
		"linux-firmware",
		"linux-firmware-amd",
		"linux-firmware-intel",
		"wifi-firmware",
		"wifi-firmware-ath11k",
		"sof-firmware",
		"bluez-firmware",
		"amd-ucode",
		"intel-ucode",
	}
	for _, name := range managed {
		assert.True(t, fs.Matches(name), "expected %s to be managed", name)
	}

	unmanaged := []string{
		"linux-firmware-amd-dbg-extra-",
		"firmware-linux",
		"linux",
		"base-system",
		"sof-firmware-dev2",
		"mesa",
		"",
	}
	for _, name := range unmanaged {
		assert.False(t, fs.Matches(name), "expected %s to be unmanaged", name)
	}
}

func TestFamilySetExtraPatterns(t *testing.T) {
	fs, err := NewFamilySet(`^zd1211-firmware$`)
	assert.NoError(t, err)
	assert.True(t, fs.Matches("zd1211-firmware"))

	_, err = NewFamilySet(`([`)
	assert.Error(t, err)
}

func TestFilterSorted(t *testing.T) {
	fs, err := NewFamilySet()
	assert.NoError(t, err)

	in := []string{
		"wifi-firmware",
		"linux-firmware-amd",
		"base-system",
		"wifi-firmware",
		"",
		"linux-firmware-amd",
		"amd-ucode",
	}
	got := fs.FilterSorted(in)
	assert.Equal(t, []string{"amd-ucode", "linux-firmware-amd", "wifi-firmware"}, got)

	// Filtering an already-filtered list changes nothing.
	assert.Equal(t, got, fs.FilterSorted(got))
}

func TestAnyNetworkSensitive(t *testing.T) {
	fs, err := NewFamilySet()
	assert.NoError(t, err)

	assert.True(t, fs.AnyNetworkSensitive([]string{"sof-firmware", "wifi-firmware-ath11k"}))
	assert.True(t, fs.AnyNetworkSensitive([]string{"linux-firmware-intel"}))
	assert.False(t, fs.AnyNetworkSensitive([]string{"sof-firmware", "amd-ucode"}))
	assert.False(t, fs.AnyNetworkSensitive(nil))
}
