package tetris

// Kick は回転時に試す壁蹴りのオフセットです。
// SRSの表記に合わせて DY は上方向が正です。ボードは下方向が正なので、適用時に符号を反転します。
type Kick struct {
	DX int
	DY int
}

type rotationTransition struct {
	from, to int
}

// kicksJLSTZ は J, L, S, T, Z 用のSRS壁蹴りテーブルです。
var kicksJLSTZ = map[rotationTransition][5]Kick{
	{0, 1}: {{0, 0}, {-1, 0}, {-1, 1}, {0, -2}, {-1, -2}},
	{1, 0}: {{0, 0}, {1, 0}, {1, -1}, {0, 2}, {1, 2}},
	{1, 2}: {{0, 0}, {1, 0}, {1, -1}, {0, 2}, {1, 2}},
	{2, 1}: {{0, 0}, {-1, 0}, {-1, 1}, {0, -2}, {-1, -2}},
	{2, 3}: {{0, 0}, {1, 0}, {1, 1}, {0, -2}, {1, -2}},
	{3, 2}: {{0, 0}, {-1, 0}, {-1, -1}, {0, 2}, {-1, 2}},
	{3, 0}: {{0, 0}, {-1, 0}, {-1, -1}, {0, 2}, {-1, 2}},
	{0, 3}: {{0, 0}, {1, 0}, {1, 1}, {0, -2}, {1, -2}},
}

// kicksI は I-ミノ専用のSRS壁蹴りテーブルです。
var kicksI = map[rotationTransition][5]Kick{
	{0, 1}: {{0, 0}, {-2, 0}, {1, 0}, {-2, -1}, {1, 2}},
	{1, 0}: {{0, 0}, {2, 0}, {-1, 0}, {2, 1}, {-1, -2}},
	{1, 2}: {{0, 0}, {-1, 0}, {2, 0}, {-1, 2}, {2, -1}},
	{2, 1}: {{0, 0}, {1, 0}, {-2, 0}, {1, -2}, {-2, 1}},
	{2, 3}: {{0, 0}, {2, 0}, {-1, 0}, {2, 1}, {-1, -2}},
	{3, 2}: {{0, 0}, {-2, 0}, {1, 0}, {-2, -1}, {1, 2}},
	{3, 0}: {{0, 0}, {1, 0}, {-2, 0}, {1, -2}, {-2, 1}},
	{0, 3}: {{0, 0}, {-1, 0}, {2, 0}, {-1, 2}, {2, -1}},
}

// KicksFor は (種類, 回転前, 回転後) に対して試すべきオフセットを順番に返します。
// 先頭は常に (0, 0) です。Oミノは形が変わらないので (0, 0) のみを返します。
// 隣り合わない回転状態の組み合わせには nil を返します。
func KicksFor(t PieceType, from, to int) []Kick {
	if t == TypeO {
		return []Kick{{0, 0}}
	}
	table := kicksJLSTZ
	if t == TypeI {
		table = kicksI
	}
	kicks, ok := table[rotationTransition{normalizeRotation(from), normalizeRotation(to)}]
	if !ok {
		return nil
	}
	out := make([]Kick, len(kicks))
	copy(out, kicks[:])
	return out
}
