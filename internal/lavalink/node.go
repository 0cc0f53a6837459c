package lavalink

import "strings"

// Version identifies the protocol generation a node speaks.
type Version string

const (
	V3 Version = "3"
	V4 Version = "4"
)

// Key returns the short route/label form of the version, e.g. "v3".
func (v Version) Key() string {
	return "v" + string(v)
}

// HasFrameStats reports whether nodes of this version publish frame
// statistics in /stats.
func (v Version) HasFrameStats() bool {
	return v == V4
}

// Node describes one monitored Lavalink deployment.
type Node struct {
	Version  Version
	Name     string
	Host     string
	Password string
}

// URL joins the node host with an endpoint path such as "/stats".
func (n Node) URL(path string) string {
	return strings.TrimRight(n.Host, "/") + path
}
