// Package mcp exposes the gateway to Model Context Protocol clients as a
// set of tools served over stdio.
package mcp
