package application

// Resolution は吸収判定の結果です。
type Resolution struct {
	Winner *Player
	Loser  *Player
	Gained float64
}

// Decide は大きい方を勝者とします。同サイズまたはどちらかが死亡済みなら ok=false です。
func Decide(a, b *Player) (winner, loser *Player, ok bool) {
	if a == nil || b == nil || a == b || !a.alive || !b.alive {
		return nil, nil, false
	}
	switch {
	case a.Size > b.Size:
		return a, b, true
	case b.Size > a.Size:
		return b, a, true
	default:
		return nil, nil, false
	}
}

// Apply は敗者のサイズの半分を勝者に加え、敗者を死亡させます。
func Apply(winner, loser *Player) Resolution {
	gained := loser.Size / 2
	winner.Size += gained
	loser.kill()
	return Resolution{Winner: winner, Loser: loser, Gained: gained}
}

// Resolve は a と b の接触を判定し、決着した場合のみ状態を変更します。
func Resolve(a, b *Player) (Resolution, bool) {
	winner, loser, ok := Decide(a, b)
	if !ok {
		return Resolution{}, false
	}
	return Apply(winner, loser), true
}
