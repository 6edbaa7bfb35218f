package graphicsstate

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/tsawler/pageview/contentstream"
	"github.com/tsawler/pageview/core"
	"github.com/tsawler/pageview/model"
	"github.com/tsawler/pageview/reader"
)

var (
	// ErrContentSyntax is reported when a content stream cannot be parsed
	// to the end. The operations before the error are still painted.
	ErrContentSyntax = errors.New("graphicsstate: content stream syntax error")

	// ErrSkipped is reported for operations that were ignored because their
	// resources are missing or cannot be decoded.
	ErrSkipped = errors.New("graphicsstate: operation skipped")
)

// maxFormDepth bounds nested form XObjects.
const maxFormDepth = 16

// Painter receives painting operations in device space.
type Painter interface {
	// Fill fills p with c using the nonzero or even-odd rule.
	Fill(p *Path, evenOdd bool, c color.NRGBA)

	// Stroke strokes p with c.
	Stroke(p *Path, style StrokeStyle, c color.NRGBA)

	// DrawImage draws img. m maps image pixel coordinates, with y down, to
	// device space.
	DrawImage(img image.Image, m model.Matrix, alpha float64)

	// FillMask paints c where mask is opaque. m is as for DrawImage.
	FillMask(mask image.Image, m model.Matrix, c color.NRGBA)
}

// Source provides the objects a content stream refers to. *reader.Reader
// implements it.
type Source interface {
	Resolve(obj core.Object) (core.Object, error)
	DecodeImage(s *core.Stream) (*reader.Image, error)
	ColorSpace(obj core.Object) (*reader.ColorSpace, error)
}

// Interpreter executes content streams against a Painter.
type Interpreter struct {
	src     Source
	painter Painter
	gs      *GraphicsState
	path    *Path
	depth   int
	errs    []error
}

// NewInterpreter creates an interpreter whose initial CTM is ctm, usually
// the page-to-device transform.
func NewInterpreter(src Source, painter Painter, ctm model.Matrix) *Interpreter {
	return &Interpreter{
		src:     src,
		painter: painter,
		gs:      NewGraphicsState(ctm),
		path:    NewPath(),
	}
}

// State returns the current graphics state.
func (in *Interpreter) State() *GraphicsState {
	return in.gs
}

// Run parses and executes content with the given resource dictionary.
// Problems never stop painting: the returned error, if any, joins every
// ErrContentSyntax and ErrSkipped report.
func (in *Interpreter) Run(content []byte, resources core.Dict) error {
	in.errs = nil
	in.run(content, resources)
	return errors.Join(in.errs...)
}

func (in *Interpreter) run(content []byte, resources core.Dict) {
	ops, err := contentstream.NewParser(content).Parse()
	for _, op := range ops {
		if opErr := in.execute(op, resources); opErr != nil {
			in.errs = append(in.errs, fmt.Errorf("%w: %s: %v", ErrSkipped, op.Operator, opErr))
		}
	}
	if err != nil {
		in.errs = append(in.errs, fmt.Errorf("%w: %v", ErrContentSyntax, err))
	}
}

func (in *Interpreter) execute(op contentstream.Operation, res core.Dict) error {
	gs := in.gs
	args := op.Operands

	switch op.Operator {
	// Graphics state
	case "q":
		gs.Save()
	case "Q":
		if err := gs.Restore(); err != nil {
			return err
		}
	case "cm":
		m, ok := operandsToMatrix(args)
		if !ok {
			return errBadOperands
		}
		gs.Concat(m)
	case "w":
		if v, ok := number(args, 0); ok {
			gs.LineWidth = v
		}
	case "J":
		if v, ok := number(args, 0); ok {
			gs.LineCap = LineCap(v)
		}
	case "j":
		if v, ok := number(args, 0); ok {
			gs.LineJoin = LineJoin(v)
		}
	case "M":
		if v, ok := number(args, 0); ok {
			gs.MiterLimit = v
		}
	case "d":
		if len(args) == 2 {
			in.setDash(args[0], args[1])
		}
	case "gs":
		return in.extGState(args, res)

	// Colour
	case "G", "g", "RG", "rg", "K", "k":
		return in.deviceColor(op.Operator, args)
	case "CS", "cs":
		return in.selectSpace(op.Operator == "cs", args, res)
	case "SC", "SCN", "sc", "scn":
		in.setColor(op.Operator == "sc" || op.Operator == "scn", args)

	// Path construction
	case "m":
		if v, ok := numbers(args, 2); ok {
			in.path.MoveTo(v[0], v[1])
		}
	case "l":
		if v, ok := numbers(args, 2); ok {
			in.path.LineTo(v[0], v[1])
		}
	case "c":
		if v, ok := numbers(args, 6); ok {
			in.path.CurveTo(v[0], v[1], v[2], v[3], v[4], v[5])
		}
	case "v":
		if v, ok := numbers(args, 4); ok {
			in.path.CurveToV(v[0], v[1], v[2], v[3])
		}
	case "y":
		if v, ok := numbers(args, 4); ok {
			in.path.CurveToY(v[0], v[1], v[2], v[3])
		}
	case "h":
		in.path.ClosePath()
	case "re":
		if v, ok := numbers(args, 4); ok {
			in.path.Rectangle(v[0], v[1], v[2], v[3])
		}

	// Path painting
	case "S":
		in.paint(false, false, true)
	case "s":
		in.path.ClosePath()
		in.paint(false, false, true)
	case "f", "F":
		in.paint(true, false, false)
	case "f*":
		in.paint(true, true, false)
	case "B":
		in.paint(true, false, true)
	case "B*":
		in.paint(true, true, true)
	case "b":
		in.path.ClosePath()
		in.paint(true, false, true)
	case "b*":
		in.path.ClosePath()
		in.paint(true, true, true)
	case "n":
		in.path.Clear()

	// External objects
	case "Do":
		return in.doXObject(args, res)
	case "BI":
		return in.inlineImage(args, res)
	}

	// Text, shading, marked content and clipping (W, W*) are not painted.
	return nil
}

var errBadOperands = errors.New("bad operands")

// paint fills and/or strokes the current path and starts a new one.
func (in *Interpreter) paint(fill, evenOdd, stroke bool) {
	if in.path.IsEmpty() {
		return
	}
	device := in.path.Transform(in.gs.CTM)
	if fill {
		in.painter.Fill(device, evenOdd, in.gs.FillPaint())
	}
	if stroke {
		in.painter.Stroke(device, in.gs.StrokeStyle(), in.gs.StrokePaint())
	}
	in.path.Clear()
}

func (in *Interpreter) setDash(arrObj, phaseObj core.Object) {
	arr, ok := in.resolve(arrObj).(core.Array)
	if !ok {
		return
	}
	dash := make([]float64, 0, len(arr))
	for _, o := range arr {
		if v, ok := toFloat(o); ok && v >= 0 {
			dash = append(dash, v)
		}
	}
	// An all-zero pattern would never advance.
	total := 0.0
	for _, d := range dash {
		total += d
	}
	if total == 0 {
		dash = nil
	}
	in.gs.Dash = dash
	in.gs.DashPhase, _ = toFloat(in.resolve(phaseObj))
}

func (in *Interpreter) extGState(args []core.Object, res core.Dict) error {
	name, ok := nameOperand(args)
	if !ok {
		return errBadOperands
	}
	dict, ok := in.lookup(res, "ExtGState", name).(core.Dict)
	if !ok {
		return fmt.Errorf("ExtGState %s not found", name)
	}
	gs := in.gs
	for key, raw := range dict {
		v := in.resolve(raw)
		switch key {
		case "LW":
			if f, ok := toFloat(v); ok {
				gs.LineWidth = f
			}
		case "LC":
			if f, ok := toFloat(v); ok {
				gs.LineCap = LineCap(f)
			}
		case "LJ":
			if f, ok := toFloat(v); ok {
				gs.LineJoin = LineJoin(f)
			}
		case "ML":
			if f, ok := toFloat(v); ok {
				gs.MiterLimit = f
			}
		case "D":
			if arr, ok := v.(core.Array); ok && len(arr) == 2 {
				in.setDash(arr[0], arr[1])
			}
		case "CA":
			if f, ok := toFloat(v); ok {
				gs.StrokeAlpha = clampUnit(f)
			}
		case "ca":
			if f, ok := toFloat(v); ok {
				gs.FillAlpha = clampUnit(f)
			}
		}
	}
	return nil
}

func (in *Interpreter) deviceColor(operator string, args []core.Object) error {
	var cs *reader.ColorSpace
	switch operator {
	case "G", "g":
		cs = reader.DeviceGray()
	case "RG", "rg":
		cs = reader.DeviceRGB()
	default:
		cs = reader.DeviceCMYK()
	}
	comps, ok := numbers(args, cs.N())
	if !ok {
		return errBadOperands
	}
	r, g, b := cs.RGB(comps)
	gs := in.gs
	if operator == "g" || operator == "rg" || operator == "k" {
		gs.FillSpace, gs.fillPattern, gs.FillColor = cs, false, RGB{r, g, b}
	} else {
		gs.StrokeSpace, gs.strokePattern, gs.StrokeColor = cs, false, RGB{r, g, b}
	}
	return nil
}

// selectSpace handles CS and cs, which also reset the colour to the
// space's initial value.
func (in *Interpreter) selectSpace(fill bool, args []core.Object, res core.Dict) error {
	name, ok := nameOperand(args)
	if !ok {
		return errBadOperands
	}

	var obj core.Object = core.Name(name)
	switch name {
	case "DeviceGray", "DeviceRGB", "DeviceCMYK", "G", "RGB", "CMYK":
	case "Pattern":
		in.setPattern(fill)
		return nil
	default:
		obj = in.lookup(res, "ColorSpace", name)
		if obj == nil {
			return fmt.Errorf("colour space %s not found", name)
		}
		if arr, ok := obj.(core.Array); ok {
			if family, _ := arr.GetName(0); family == "Pattern" {
				in.setPattern(fill)
				return nil
			}
		}
	}

	cs, err := in.src.ColorSpace(obj)
	if err != nil {
		return err
	}
	initial := make([]float64, cs.N())
	if cs.Family() == "cmyk" {
		initial[3] = 1
	}
	if cs.Family() == "separation" {
		// Tint 1 is full colorant.
		initial[0] = 1
	}
	r, g, b := cs.RGB(initial)
	gs := in.gs
	if fill {
		gs.FillSpace, gs.fillPattern, gs.FillColor = cs, false, RGB{r, g, b}
	} else {
		gs.StrokeSpace, gs.strokePattern, gs.StrokeColor = cs, false, RGB{r, g, b}
	}
	return nil
}

func (in *Interpreter) setPattern(fill bool) {
	if fill {
		in.gs.fillPattern = true
	} else {
		in.gs.strokePattern = true
	}
}

// setColor handles SC, SCN, sc and scn. Pattern names are ignored.
func (in *Interpreter) setColor(fill bool, args []core.Object) {
	gs := in.gs
	cs, pattern := gs.StrokeSpace, gs.strokePattern
	if fill {
		cs, pattern = gs.FillSpace, gs.fillPattern
	}
	if pattern || cs == nil {
		return
	}
	comps, ok := numbers(args, cs.N())
	if !ok {
		return
	}
	r, g, b := cs.RGB(comps)
	if fill {
		gs.FillColor = RGB{r, g, b}
	} else {
		gs.StrokeColor = RGB{r, g, b}
	}
}

func (in *Interpreter) doXObject(args []core.Object, res core.Dict) error {
	name, ok := nameOperand(args)
	if !ok {
		return errBadOperands
	}
	stream, ok := in.lookup(res, "XObject", name).(*core.Stream)
	if !ok {
		return fmt.Errorf("XObject %s not found", name)
	}

	subtype, _ := stream.Dict.GetName("Subtype")
	switch subtype {
	case "Image":
		return in.drawImage(stream)
	case "Form":
		return in.drawForm(stream, res)
	}
	return fmt.Errorf("XObject %s has subtype %q", name, subtype)
}

func (in *Interpreter) drawImage(stream *core.Stream) error {
	img, err := in.src.DecodeImage(stream)
	if err != nil {
		return err
	}
	w, h := float64(img.Width), float64(img.Height)
	// Image space is the unit square; pixel rows run top to bottom.
	m := model.Matrix{1 / w, 0, 0, -1 / h, 0, 1}.Multiply(in.gs.CTM)
	if img.Stencil {
		if !in.gs.fillPattern {
			in.painter.FillMask(img.Pixels, m, in.gs.FillPaint())
		}
		return nil
	}
	in.painter.DrawImage(img.Pixels, m, in.gs.FillAlpha)
	return nil
}

func (in *Interpreter) drawForm(stream *core.Stream, parent core.Dict) error {
	if in.depth >= maxFormDepth {
		return errors.New("form XObjects nested too deeply")
	}
	content, err := stream.Decoded()
	if err != nil {
		return err
	}

	resources := parent
	if r, ok := in.resolve(stream.Dict.Get("Resources")).(core.Dict); ok {
		resources = r
	}

	savedPath := in.path
	in.path = NewPath()
	in.gs.Save()
	depth := in.gs.Depth()
	if arr, ok := in.resolve(stream.Dict.Get("Matrix")).(core.Array); ok {
		if m, ok := operandsToMatrix(arr); ok {
			in.gs.Concat(m)
		}
	}

	in.depth++
	in.run(content, resources)
	in.depth--

	// Drop whatever the form left unbalanced, then its own state.
	for in.gs.Depth() > depth {
		_ = in.gs.Restore()
	}
	_ = in.gs.Restore()
	in.path = savedPath
	return nil
}

func (in *Interpreter) inlineImage(args []core.Object, res core.Dict) error {
	if len(args) != 2 {
		return errBadOperands
	}
	dict, ok1 := args[0].(core.Dict)
	data, ok2 := args[1].(core.String)
	if !ok1 || !ok2 {
		return errBadOperands
	}

	// Named colour spaces other than the device abbreviations live in the
	// resources.
	key := "CS"
	if _, ok := dict["ColorSpace"]; ok {
		key = "ColorSpace"
	}
	if name, ok := dict.GetName(key); ok {
		switch name {
		case "DeviceGray", "DeviceRGB", "DeviceCMYK", "G", "RGB", "CMYK", "I", "Indexed":
		default:
			if cs := in.lookup(res, "ColorSpace", string(name)); cs != nil {
				copied := make(core.Dict, len(dict))
				for k, v := range dict {
					copied[k] = v
				}
				copied[key] = cs
				dict = copied
			}
		}
	}

	return in.drawImage(reader.InlineImageStream(dict, []byte(data)))
}

// lookup finds res[category][name], resolving references along the way.
func (in *Interpreter) lookup(res core.Dict, category, name string) core.Object {
	if res == nil {
		return nil
	}
	group, ok := in.resolve(res.Get(category)).(core.Dict)
	if !ok {
		return nil
	}
	obj := group.Get(name)
	if obj == nil {
		return nil
	}
	return in.resolve(obj)
}

func (in *Interpreter) resolve(obj core.Object) core.Object {
	if obj == nil {
		return nil
	}
	resolved, err := in.src.Resolve(obj)
	if err != nil {
		return nil
	}
	return resolved
}

func nameOperand(args []core.Object) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	n, ok := args[len(args)-1].(core.Name)
	return string(n), ok
}

// number returns operand i as a float.
func number(args []core.Object, i int) (float64, bool) {
	if i >= len(args) {
		return 0, false
	}
	return toFloat(args[i])
}

// numbers returns the last n operands as floats. Extra leading operands
// are ignored.
func numbers(args []core.Object, n int) ([]float64, bool) {
	if len(args) < n {
		return nil, false
	}
	args = args[len(args)-n:]
	out := make([]float64, n)
	for i, a := range args {
		v, ok := toFloat(a)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func toFloat(obj core.Object) (float64, bool) {
	switch v := obj.(type) {
	case core.Int:
		return float64(v), true
	case core.Real:
		return float64(v), true
	}
	return 0, false
}

func operandsToMatrix(args []core.Object) (model.Matrix, bool) {
	v, ok := numbers(args, 6)
	if !ok || len(args) != 6 {
		return model.Matrix{}, false
	}
	return model.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}, true
}

func clampUnit(f float64) float64 {
	return max(0, min(1, f))
}
