//go:build darwin

package plugin

const platformExt = ".dylib"
