package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindInlineMath and KindBlockMath identify math nodes in the goldmark AST.
var (
	KindInlineMath = ast.NewNodeKind("InlineMath")
	KindBlockMath  = ast.NewNodeKind("BlockMath")
)

// InlineMath is $...$ (or $$...$$ inside a paragraph, with Display set).
type InlineMath struct {
	ast.BaseInline
	Latex   []byte
	Display bool
}

func (n *InlineMath) Kind() ast.NodeKind { return KindInlineMath }

func (n *InlineMath) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Latex": string(n.Latex)}, nil)
}

// BlockMath is a $$ fenced block. Its lines hold the source.
type BlockMath struct {
	ast.BaseBlock
}

func (n *BlockMath) Kind() ast.NodeKind { return KindBlockMath }

func (n *BlockMath) IsRaw() bool { return true }

func (n *BlockMath) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

// Math turns $-delimited TeX into raw math sources: span.tex for inline,
// div.tex for display. Rendering them is left to the reconciliation pass.
var Math = &mathExtension{}

type mathExtension struct{}

func (e *mathExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithBlockParsers(util.Prioritized(&blockMathParser{}, 701)),
		parser.WithInlineParsers(util.Prioritized(&inlineMathParser{}, 501)),
	)
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&mathRenderer{}, 501),
	))
}

type inlineMathParser struct{}

func (p *inlineMathParser) Trigger() []byte { return []byte{'$'} }

func (p *inlineMathParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	delim := 1
	if len(line) > 1 && line[1] == '$' {
		delim = 2
	}

	end := -1
	for i := delim; i < len(line); i++ {
		if line[i] == '\\' {
			i++
			continue
		}
		if line[i] == '$' {
			if delim == 2 && (i+1 >= len(line) || line[i+1] != '$') {
				continue
			}
			end = i
			break
		}
	}
	if end <= delim {
		return nil
	}
	body := line[delim:end]
	// "$5 and $6" is prose, not math.
	if delim == 1 && (body[0] == ' ' || body[len(body)-1] == ' ') {
		return nil
	}

	block.Advance(end + delim)
	return &InlineMath{Latex: bytes.TrimSpace(body), Display: delim == 2}
}

type blockMathParser struct{}

var blockMathIndentKey = parser.NewContextKey()

func (b *blockMathParser) Trigger() []byte { return []byte{'$'} }

func (b *blockMathParser) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 || pos+1 >= len(line) || line[pos] != '$' || line[pos+1] != '$' {
		return nil, parser.NoChildren
	}
	if !util.IsBlank(line[pos+2:]) {
		return nil, parser.NoChildren
	}
	pc.Set(blockMathIndentKey, pos)
	reader.Advance(segment.Len() - 1)
	return &BlockMath{}, parser.NoChildren
}

func (b *blockMathParser) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	line, segment := reader.PeekLine()
	indent, _ := pc.Get(blockMathIndentKey).(int)

	w, pos := util.IndentWidth(line, 0)
	if w < 4 && pos+1 < len(line) && line[pos] == '$' && line[pos+1] == '$' && util.IsBlank(line[pos+2:]) {
		reader.Advance(segment.Stop - segment.Start - segment.Padding)
		return parser.Close
	}

	pos, padding := util.DedentPosition(line, 0, indent)
	seg := text.NewSegmentPadding(segment.Start+pos, segment.Stop, padding)
	node.Lines().Append(seg)
	reader.AdvanceAndSetPadding(segment.Stop-segment.Start-pos-1, padding)
	return parser.Continue | parser.NoChildren
}

func (b *blockMathParser) Close(node ast.Node, reader text.Reader, pc parser.Context) {
	pc.Set(blockMathIndentKey, nil)
}

func (b *blockMathParser) CanInterruptParagraph() bool { return true }

func (b *blockMathParser) CanAcceptIndentedLine() bool { return false }

type mathRenderer struct{}

func (r *mathRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindInlineMath, r.renderInline)
	reg.Register(KindBlockMath, r.renderBlock)
}

func (r *mathRenderer) renderInline(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*InlineMath)
	if n.Display {
		w.WriteString(`<span class="tex math-display">`)
	} else {
		w.WriteString(`<span class="tex">`)
	}
	w.Write(util.EscapeHTML(n.Latex))
	w.WriteString(`</span>`)
	return ast.WalkSkipChildren, nil
}

func (r *mathRenderer) renderBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	var b bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	w.WriteString(`<div class="tex">`)
	w.Write(util.EscapeHTML(bytes.TrimSpace(b.Bytes())))
	w.WriteString("</div>\n")
	return ast.WalkSkipChildren, nil
}
