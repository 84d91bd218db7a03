package tetris

import (
	"math/rand"
	"time"
)

// Bag は7-bagシステムのランダマイザーです。
// 7種類のテトリミノを1つずつシャッフルした袋から順に取り出し、
// 袋が空になったときだけ新しい袋を生成します。
type Bag struct {
	rng     *rand.Rand
	pending []PieceType
}

// NewBag は新しいバッグを返します。rng が nil の場合は現在時刻をシードにします。
func NewBag(rng *rand.Rand) *Bag {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Bag{rng: rng}
}

// DrawBag は7種類のテトリミノを一様ランダムに並べ替えた新しい袋を返します。
func DrawBag(rng *rand.Rand) []PieceType {
	bag := make([]PieceType, len(AllPieceTypes))
	copy(bag, AllPieceTypes[:])
	rng.Shuffle(len(bag), func(i, j int) {
		bag[i], bag[j] = bag[j], bag[i]
	})
	return bag
}

// Next は袋から次のピースを取り出します。袋が空なら新しい袋を生成します。
func (b *Bag) Next() PieceType {
	if len(b.pending) == 0 {
		b.pending = DrawBag(b.rng)
	}
	t := b.pending[0]
	b.pending = b.pending[1:]
	return t
}

// Remaining は現在の袋に残っているピースの数を返します。
func (b *Bag) Remaining() int {
	return len(b.pending)
}

// Reset は現在の袋を捨て、次の Next で新しい袋から取り出すようにします。
func (b *Bag) Reset() {
	b.pending = nil
}
