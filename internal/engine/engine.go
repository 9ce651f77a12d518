// Package engine describes the external math engines the renderer depends on
// and tracks which of them are loaded.
package engine

import (
	"context"
	"errors"
)

var (
	// ErrEngineUnavailable means the engine has not been loaded, or its
	// loader failed.
	ErrEngineUnavailable = errors.New("math engine unavailable")

	// ErrConversion means the engine rejected or choked on an expression.
	ErrConversion = errors.New("latex conversion failed")
)

// ImageFormat selects the image encoding produced by Alternate.ToImage.
type ImageFormat string

const (
	ImageSVG ImageFormat = "svg"
	ImagePNG ImageFormat = "png"
)

// Alternate converts LaTeX into embeddable markup without a browser.
type Alternate interface {
	// ToImage returns an <img> element holding the rendered expression.
	ToImage(latex string, display bool, scale float64, format ImageFormat) (string, error)
	// ToMathML returns a <math> element for the expression.
	ToMathML(latex string, display bool) (string, error)
}

// Live renders math inside documents that are open in a browser, where the
// interactive math widget does the visual work.
type Live interface {
	RenderMathInDocument(ctx context.Context, documentID string) error
}
