// Package pipeline walks media libraries and drives jobs over what it
// finds: Scan transcodes every file in turn, and Analyze reports what a
// scan would do without touching anything.
package pipeline
