// Package plugins groups the compiled extension units shipped with the
// service. Each subpackage exposes a plugin.Plugin that can be loaded next to
// the script units of the plugin directory.
package plugins
