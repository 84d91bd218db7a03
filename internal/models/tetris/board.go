package tetris

const (
	BoardWidth     = 10                      // テトリスボードの幅
	BoardHeight    = 20                      // テトリスボードの高さ（表示部分）
	BufferRows     = 4                       // ピースが生成される見えない領域
	BoardTotalRows = BoardHeight + BufferRows // バッファを含めた全行数
)

// BlockType はボード上のブロックの種類を表します。
// 各テトリミノの種類もブロックタイプとして扱います。
type BlockType int

const (
	BlockEmpty BlockType = iota // 0: 空のマス
	BlockI                      // 1: I-テトリミノ由来のブロック (PieceType 0 + 1)
	BlockO                      // 2: O-テトリミノ由来のブロック (PieceType 1 + 1)
	BlockT                      // 3: T-テトリミノ由来のブロック (PieceType 2 + 1)
	BlockS                      // 4: S-テトリミノ由来のブロック (PieceType 3 + 1)
	BlockZ                      // 5: Z-テトリミノ由来のブロック (PieceType 4 + 1)
	BlockJ                      // 6: J-テトリミノ由来のブロック (PieceType 5 + 1)
	BlockL                      // 7: L-テトリミノ由来のブロック (PieceType 6 + 1)
)

// PieceType はブロックを置いたテトリミノの種類を返します。空のマスでは false を返します。
func (b BlockType) PieceType() (PieceType, bool) {
	if b <= BlockEmpty || b > BlockL {
		return TypeI, false
	}
	return PieceType(b - 1), true
}

// Board はテトリスのゲームボードを表す2次元配列です。
// Board[row][col] でアクセスします。row 0 が最上段（バッファ領域）です。
// 配列なので値としてコピーでき、スナップショットとしてそのまま外部へ渡せます。
type Board [BoardTotalRows][BoardWidth]BlockType

// NewBoard は新しい空のボードを初期化して返します。
// Goの配列はゼロ値（BlockEmpty）で初期化されるため、特別な初期化は不要です。
func NewBoard() Board {
	var board Board
	return board
}

// HasCollision は指定されたピースを (dRow, dCol) だけずらした位置で
// 壁・床・既存のブロックと衝突するかどうかを判定します。
func (b *Board) HasCollision(p Piece, dRow, dCol int) bool {
	for _, block := range p.Blocks() {
		row := p.Row + block[0] + dRow
		col := p.Col + block[1] + dCol

		if col < 0 || col >= BoardWidth || row >= BoardTotalRows {
			return true // 左右の壁、または床との衝突
		}
		// ボードより上 (row < 0) はスポーン直後のはみ出しとして許可
		if row < 0 {
			continue
		}
		if b[row][col] != BlockEmpty {
			return true
		}
	}
	return false
}

// Collides はピースが現在の位置でボードと衝突するかどうかを返します。
func (b *Board) Collides(p Piece) bool {
	return b.HasCollision(p, 0, 0)
}

// Place はピースのブロックを書き込んだ新しいボードを返します。元のボードは変更しません。
func (b Board) Place(p Piece) Board {
	block := p.Type.Block()
	for _, cell := range p.Blocks() {
		row := p.Row + cell[0]
		col := p.Col + cell[1]
		// ボードの有効な範囲内でのみ書き込む
		if row >= 0 && row < BoardTotalRows && col >= 0 && col < BoardWidth {
			b[row][col] = block
		}
	}
	return b
}

// IsRowFull は指定行がすべて埋まっているかどうかを返します。
func (b *Board) IsRowFull(row int) bool {
	for col := 0; col < BoardWidth; col++ {
		if b[row][col] == BlockEmpty {
			return false
		}
	}
	return true
}

// FindFullRows は揃った行のインデックスを昇順で返します。
// バッファ領域の行は対象外です。
func (b *Board) FindFullRows() []int {
	var rows []int
	for row := BufferRows; row < BoardTotalRows; row++ {
		if b.IsRowFull(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

// Collapse は指定された行を取り除き、同じ数の空行を上に追加した新しいボードを返します。
// 残った行の相対的な順序は保たれます。rows が空なら同じボードを返します。
func (b Board) Collapse(rows []int) Board {
	if len(rows) == 0 {
		return b
	}
	remove := make(map[int]bool, len(rows))
	for _, row := range rows {
		if row >= 0 && row < BoardTotalRows {
			remove[row] = true
		}
	}

	newBoard := NewBoard()
	dest := BoardTotalRows - 1 // 下から詰めていく
	for row := BoardTotalRows - 1; row >= 0; row-- {
		if remove[row] {
			continue
		}
		newBoard[dest] = b[row]
		dest--
	}
	return newBoard
}

// GhostPosition はピースをそのまま真下に落としたときの着地位置を返します。
func (b *Board) GhostPosition(p Piece) Position {
	row := p.Row
	for !b.HasCollision(p, row-p.Row+1, 0) {
		row++
	}
	return Position{Row: row, Col: p.Col}
}

// IsOverflowed はバッファ領域にブロックが残っているかどうかを返します。
// ピース固定後にこれが true ならゲームオーバーです。
func (b *Board) IsOverflowed() bool {
	for row := 0; row < BufferRows; row++ {
		for col := 0; col < BoardWidth; col++ {
			if b[row][col] != BlockEmpty {
				return true
			}
		}
	}
	return false
}

// Position はボード上の行・列の組です。
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}
