package tetris

// PieceType はテトリミノの種類を表します。
type PieceType int

const (
	TypeI PieceType = iota // 0: I-ミノ (シアン)
	TypeO                  // 1: O-ミノ (黄色)
	TypeT                  // 2: T-ミノ (紫)
	TypeS                  // 3: S-ミノ (緑)
	TypeZ                  // 4: Z-ミノ (赤)
	TypeJ                  // 5: J-ミノ (青)
	TypeL                  // 6: L-ミノ (オレンジ)
)

// AllPieceTypes は7種類すべてのテトリミノを定義順で並べたものです。
// 7-bag の元になる並びとしても使います。
var AllPieceTypes = [7]PieceType{TypeI, TypeO, TypeT, TypeS, TypeZ, TypeJ, TypeL}

// Block はこの種類のピースが固定されたときにボードへ書き込まれるブロックタイプを返します。
func (t PieceType) Block() BlockType {
	return BlockType(t + 1) // PieceType (0-6) を BlockType (1-7) に変換
}

func (t PieceType) String() string {
	return PieceTypeToString(t)
}

// MarshalText はJSONなどで "I" / "T" のような文字列表現を使うためのものです。
func (t PieceType) MarshalText() ([]byte, error) {
	return []byte(PieceTypeToString(t)), nil
}

// UnmarshalText は "I" / "T" のような文字列表現から PieceType を復元します。
func (t *PieceType) UnmarshalText(text []byte) error {
	v, ok := StringToPieceType(string(text))
	if !ok {
		return &UnknownPieceTypeError{Value: string(text)}
	}
	*t = v
	return nil
}

// UnknownPieceTypeError は不明なテトリミノ文字列を受け取ったときのエラーです。
type UnknownPieceTypeError struct {
	Value string
}

func (e *UnknownPieceTypeError) Error() string {
	return "unknown piece type: " + e.Value
}

// Mask はある回転状態でのテトリミノの占有マスを表す正方行列です。
// 値型なのでコピーして渡しても元のテーブルは変更されません。
type Mask struct {
	Size  int        // 一辺の長さ (O:2, I:4, その他:3)
	cells [4][4]bool // [row][col]
}

// Filled はマスク内の (row, col) が埋まっているかどうかを返します。
// 範囲外は false です。
func (m Mask) Filled(row, col int) bool {
	if row < 0 || row >= m.Size || col < 0 || col >= m.Size {
		return false
	}
	return m.cells[row][col]
}

// Blocks は埋まっているマスの相対座標 {row, col} を上から順に返します。
func (m Mask) Blocks() [][2]int {
	blocks := make([][2]int, 0, 4)
	for r := 0; r < m.Size; r++ {
		for c := 0; c < m.Size; c++ {
			if m.cells[r][c] {
				blocks = append(blocks, [2]int{r, c})
			}
		}
	}
	return blocks
}

// TopRow はマスク内で最初にブロックが現れる行を返します。
func (m Mask) TopRow() int {
	for r := 0; r < m.Size; r++ {
		for c := 0; c < m.Size; c++ {
			if m.cells[r][c] {
				return r
			}
		}
	}
	return 0
}

// newMask は "X" を埋まったマスとして文字列の行からマスクを組み立てます。
func newMask(rows ...string) Mask {
	m := Mask{Size: len(rows)}
	for r, line := range rows {
		for c, ch := range line {
			m.cells[r][c] = ch == 'X'
		}
	}
	return m
}

// pieceShapes は各PieceTypeの4つの回転状態 (0:スポーン, 1:右, 2:180度, 3:左) のマスクです。
// SRS (Super Rotation System) の配置に従います。
var pieceShapes = map[PieceType][4]Mask{
	TypeI: {
		newMask("....", "XXXX", "....", "...."),
		newMask("..X.", "..X.", "..X.", "..X."),
		newMask("....", "....", "XXXX", "...."),
		newMask(".X..", ".X..", ".X..", ".X.."),
	},
	TypeO: { // Oミノは回転しても形が変わらない
		newMask("XX", "XX"),
		newMask("XX", "XX"),
		newMask("XX", "XX"),
		newMask("XX", "XX"),
	},
	TypeT: {
		newMask(".X.", "XXX", "..."),
		newMask(".X.", ".XX", ".X."),
		newMask("...", "XXX", ".X."),
		newMask(".X.", "XX.", ".X."),
	},
	TypeS: {
		newMask(".XX", "XX.", "..."),
		newMask(".X.", ".XX", "..X"),
		newMask("...", ".XX", "XX."),
		newMask("X..", "XX.", ".X."),
	},
	TypeZ: {
		newMask("XX.", ".XX", "..."),
		newMask("..X", ".XX", ".X."),
		newMask("...", "XX.", ".XX"),
		newMask(".X.", "XX.", "X.."),
	},
	TypeJ: {
		newMask("X..", "XXX", "..."),
		newMask(".XX", ".X.", ".X."),
		newMask("...", "XXX", "..X"),
		newMask(".X.", ".X.", "XX."),
	},
	TypeL: {
		newMask("..X", "XXX", "..."),
		newMask(".X.", ".X.", ".XX"),
		newMask("...", "XXX", "X.."),
		newMask("XX.", ".X.", ".X."),
	},
}

// ShapeOf は指定された種類と回転状態のマスクを返します。
// 回転状態は 0-3 の範囲に正規化されます。
func ShapeOf(t PieceType, rotation int) Mask {
	return pieceShapes[t][normalizeRotation(rotation)]
}

func normalizeRotation(rotation int) int {
	return ((rotation % 4) + 4) % 4
}

// StringToPieceType は文字列のテトリミノタイプ（"I", "O", "T"など）をPieceTypeに変換します。
func StringToPieceType(s string) (PieceType, bool) {
	switch s {
	case "I":
		return TypeI, true
	case "O":
		return TypeO, true
	case "T":
		return TypeT, true
	case "S":
		return TypeS, true
	case "Z":
		return TypeZ, true
	case "J":
		return TypeJ, true
	case "L":
		return TypeL, true
	default:
		return TypeI, false
	}
}

// PieceTypeToString はPieceTypeを文字列表現に変換します。
func PieceTypeToString(t PieceType) string {
	switch t {
	case TypeI:
		return "I"
	case TypeO:
		return "O"
	case TypeT:
		return "T"
	case TypeS:
		return "S"
	case TypeZ:
		return "Z"
	case TypeJ:
		return "J"
	case TypeL:
		return "L"
	default:
		return "?"
	}
}
