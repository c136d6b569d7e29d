// Package pages holds the server-rendered pages. The *_templ.go files are
// generated from the .templ sources.
package pages

//go:generate templ generate
