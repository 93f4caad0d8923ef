// Package waybg implements the core lifecycle engine for a Wayland
// layer-shell wallpaper daemon: per-output state machines, a uniform
// source abstraction over static images, colors, animated bitmaps, video,
// and GPU shaders, a frame scheduler, a shared image cache, a filesystem
// watcher, and resume-state persistence.
//
// The Wayland protocol bindings, the persistent configuration store, the
// settings GUI, and the command-line control tool are external
// collaborators; this module only defines the interfaces it expects from
// them (see packages layer and config).
package waybg
