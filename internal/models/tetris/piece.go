package tetris

// Piece はテトリミノの現在の状態（種類、ボード上の基準点、回転状態）を表します。
// 基準点はマスクの左上隅に対応します。
// 操作はすべて新しい Piece を返し、元の値を書き換えることはありません。
type Piece struct {
	Type     PieceType `json:"type"`     // テトリミノの種類
	Row      int       `json:"row"`      // ボード上の行 (下方向が正)
	Col      int       `json:"col"`      // ボード上の列
	Rotation int       `json:"rotation"` // 回転状態 (0, 1, 2, 3)
}

// Shape は現在の回転状態のマスクを返します。
func (p Piece) Shape() Mask {
	return ShapeOf(p.Type, p.Rotation)
}

// Blocks は現在の回転状態におけるブロックの相対座標 {row, col} を返します。
func (p Piece) Blocks() [][2]int {
	return p.Shape().Blocks()
}

// Cells はボード上の絶対座標でのブロック位置を返します。
func (p Piece) Cells() []Position {
	blocks := p.Blocks()
	cells := make([]Position, 0, len(blocks))
	for _, b := range blocks {
		cells = append(cells, Position{Row: p.Row + b[0], Col: p.Col + b[1]})
	}
	return cells
}

// Spawn は指定された種類のピースを出現位置に生成します。
// 横方向は中央寄せ、縦方向はマスクの最上段のブロックがバッファ領域の最下行に来る位置です。
func Spawn(t PieceType) Piece {
	shape := ShapeOf(t, 0)
	return Piece{
		Type:     t,
		Row:      BufferRows - 1 - shape.TopRow(),
		Col:      (BoardWidth - shape.Size) / 2,
		Rotation: 0,
	}
}

// Translate はピースを (dRow, dCol) だけ移動させた結果を返します。
// 衝突する場合は false を返し、ピースは元のままです。
func (p Piece) Translate(b *Board, dRow, dCol int) (Piece, bool) {
	if b.HasCollision(p, dRow, dCol) {
		return p, false
	}
	p.Row += dRow
	p.Col += dCol
	return p, true
}

// Rotate はSRSの壁蹴りを使ってピースを回転させます。
// 蹴りテーブルのオフセットを順に試し、最初に衝突しなかった位置を返します。
// すべて衝突した場合は false を返します。
func (p Piece) Rotate(b *Board, clockwise bool) (Piece, bool) {
	from := normalizeRotation(p.Rotation)
	to := normalizeRotation(from + 1)
	if !clockwise {
		to = normalizeRotation(from + 3)
	}

	for _, kick := range KicksFor(p.Type, from, to) {
		candidate := Piece{
			Type:     p.Type,
			Row:      p.Row - kick.DY, // SRSは上が正、ボードは下が正
			Col:      p.Col + kick.DX,
			Rotation: to,
		}
		if !b.Collides(candidate) {
			return candidate, true
		}
	}
	return p, false
}

// HardDropTarget はピースを衝突するまで真下に落とした位置を返します。
// 結果に対してもう一度呼び出しても同じ位置が返ります。
func (p Piece) HardDropTarget(b *Board) Piece {
	for {
		next, ok := p.Translate(b, 1, 0)
		if !ok {
			return p
		}
		p = next
	}
}

// IsResting は一段下に移動できない（何かの上に乗っている）かどうかを返します。
func (p Piece) IsResting(b *Board) bool {
	return b.HasCollision(p, 1, 0)
}
