package tetris

import "time"

// Timer は Clock が返す一度きりのタイマーです。
type Timer interface {
	// Stop はまだ発火していなければ発火を止め、止められた場合に true を返します。
	Stop() bool
}

// Clock はエンジンがタイマーを作るためのインターフェースです。
// 本番では time.AfterFunc を使い、テストでは手動で進める時計に差し替えます。
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// RealClock は time パッケージを使う Clock です。
var RealClock Clock = realClock{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
