// Package textutil normalizes user-supplied text into safe path segments.
package textutil
