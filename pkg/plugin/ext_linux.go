//go:build linux

package plugin

const platformExt = ".so"
