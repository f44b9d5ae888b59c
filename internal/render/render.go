package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var ErrBadFEN = errors.New("invalid fen")

// Options controls one board image.
type Options struct {
	// From and To highlight the last move; both must be valid squares.
	From, To string
	// Flip draws the board from Black's side.
	Flip  bool
	Title string
}

const (
	squareSize   = 64
	boardSquares = 8
	boardSize    = squareSize * boardSquares
	sideMargin   = 28
	topMargin    = 64
	bottomMargin = 28
	panelHeight  = 36
	panelRadius  = 10
	panelPadding = 18
)

var (
	lightSquare               = color.RGBA{233, 207, 163, 255}
	darkSquare                = color.RGBA{187, 136, 96, 255}
	backgroundColor           = color.RGBA{22, 24, 36, 255}
	whiteMoveHighlightFill    = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	blackMoveHighlightArrow   = color.NRGBA{R: 148, G: 207, B: 255, A: 170}
	neutralMoveHighlightArrow = color.NRGBA{R: 182, G: 184, B: 190, A: 140}
	hudPanelColor             = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	hudShadowColor            = color.NRGBA{0, 0, 0, 50}
	hudTextPrimary            = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateTextColor       = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

// geometry maps squares to pixels for one orientation.
type geometry struct {
	origin image.Point
	flip   bool
}

func (g geometry) squareRect(sq nchess.Square) image.Rectangle {
	col, row := int(sq.File()), 7-int(sq.Rank())
	if g.flip {
		col, row = 7-col, 7-row
	}
	x := g.origin.X + col*squareSize
	y := g.origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

// PNG renders fen as a PNG board image.
func PNG(ctx context.Context, fen string, opts Options) ([]byte, error) {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFEN, err)
	}
	game := nchess.NewGame(opt)
	board := game.Position().Board()

	geo := geometry{origin: image.Pt(sideMargin, topMargin), flip: opts.Flip}
	img := image.NewRGBA(image.Rect(0, 0, boardSize+sideMargin*2, boardSize+topMargin+bottomMargin))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	drawSquares(img, geo)
	drawHighlight(img, board, geo, opts.From, opts.To)
	if err := drawPieces(img, board, geo); err != nil {
		return nil, err
	}
	drawCoordinates(img, geo)
	drawHeader(img, geo, headerText(opts.Title, game))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func allSquares() []nchess.Square {
	out := make([]nchess.Square, 0, 64)
	for r := nchess.Rank1; r <= nchess.Rank8; r++ {
		for f := nchess.FileA; f <= nchess.FileH; f++ {
			out = append(out, nchess.NewSquare(f, r))
		}
	}
	return out
}

func drawSquares(dst imagedraw.Image, geo geometry) {
	for _, sq := range allSquares() {
		imagedraw.Draw(dst, geo.squareRect(sq), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
	}
}

func drawPieces(dst imagedraw.Image, board *nchess.Board, geo geometry) error {
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		img, err := renderPieceImage(piece, squareSize)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, geo.squareRect(sq), img, image.Point{}, imagedraw.Over)
	}
	return nil
}

// drawHighlight fills both squares when White moved and draws an arrow when
// Black moved, judged by the piece now standing on either square.
func drawHighlight(img *image.RGBA, board *nchess.Board, geo geometry, from, to string) {
	fromSq, ok1 := parseSquare(from)
	toSq, ok2 := parseSquare(to)
	if !ok1 || !ok2 {
		return
	}
	mover := nchess.NoColor
	if p := board.Piece(toSq); p != nchess.NoPiece {
		mover = p.Color()
	} else if p := board.Piece(fromSq); p != nchess.NoPiece {
		mover = p.Color()
	}
	switch mover {
	case nchess.White:
		drawSquareOverlay(img, geo.squareRect(fromSq), whiteMoveHighlightFill)
		drawSquareOverlay(img, geo.squareRect(toSq), whiteMoveHighlightFill)
	case nchess.Black:
		drawArrow(img, geo.squareRect(fromSq), geo.squareRect(toSq), blackMoveHighlightArrow)
	default:
		drawArrow(img, geo.squareRect(fromSq), geo.squareRect(toSq), neutralMoveHighlightArrow)
	}
}

func parseSquare(s string) (nchess.Square, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), true
}

func drawSquareOverlay(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawCoordinates(dst imagedraw.Image, geo geometry) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateTextColor)}
	ascent := face.Metrics().Ascent.Ceil()

	for i := 0; i < boardSquares; i++ {
		rankSq := nchess.NewSquare(nchess.FileA, nchess.Rank(i))
		rect := geo.squareRect(rankSq)
		drawCenteredText(drawer, nchess.Rank(i).String(), geo.origin.X-sideMargin/2, rect.Min.Y+squareSize/2+ascent/2)

		fileSq := nchess.NewSquare(nchess.File(i), nchess.Rank1)
		rect = geo.squareRect(fileSq)
		drawCenteredText(drawer, nchess.File(i).String(), rect.Min.X+squareSize/2, geo.origin.Y+boardSize+ascent+4)
	}
}

func headerText(title string, game *nchess.Game) string {
	title = strings.TrimSpace(title)
	var status string
	switch {
	case game.Outcome() == nchess.NoOutcome && game.Position().Turn() == nchess.White:
		status = "White to move"
	case game.Outcome() == nchess.NoOutcome:
		status = "Black to move"
	case game.Method() == nchess.Checkmate:
		status = "Checkmate"
	default:
		status = "Draw"
	}
	if title == "" {
		return status
	}
	return title + " - " + status
}

func drawHeader(img *image.RGBA, geo geometry, text string) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Face: face}
	width := drawer.MeasureString(text).Round() + panelPadding*2
	if width > boardSize {
		width = boardSize
	}
	left := geo.origin.X + (boardSize-width)/2
	bottom := geo.origin.Y - (topMargin-panelHeight)/2
	rect := image.Rect(left, bottom-panelHeight, left+width, bottom)

	drawRoundedPanel(img, rect.Add(image.Pt(0, 4)), panelRadius, hudShadowColor)
	drawRoundedPanel(img, rect, panelRadius, hudPanelColor)
	drawCenteredString(drawer, rect, text, hudTextPrimary)
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	metrics := drawer.Face.Metrics()
	width := drawer.MeasureString(text).Round()
	x := rect.Min.X + (rect.Dx()-width)/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}
