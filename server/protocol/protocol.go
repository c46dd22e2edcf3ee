package protocol

// イベント名。クライアントとの契約なので変更しないこと。
const (
	EventSession         = "session"
	EventNewPlayer       = "new_player"
	EventPlayerInput     = "player_input"
	EventMovePlayer      = "move_player"
	EventPlayerCollision = "player_collision"
	EventRemovePlayer    = "remove_player"
)

// NewPlayerRequest は参加要求 (client→server new_player) です。
type NewPlayerRequest struct {
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
	Angle float64 `json:"angle" msgpack:"angle"`
}

// PlayerInput は移動意図です。サーバーはワールド座標のみを使います。
type PlayerInput struct {
	PointerX      float64 `json:"pointer_x" msgpack:"pointer_x"`
	PointerY      float64 `json:"pointer_y" msgpack:"pointer_y"`
	PointerWorldX float64 `json:"pointer_worldx" msgpack:"pointer_worldx"`
	PointerWorldY float64 `json:"pointer_worldy" msgpack:"pointer_worldy"`
}

// PlayerCollision は自分が ID のプレイヤーと接触したという申告です。
type PlayerCollision struct {
	ID string `json:"id" msgpack:"id"`
}

// PlayerState は new_player / move_player で送るプレイヤーの公開状態です。
type PlayerState struct {
	ID    string  `json:"id" msgpack:"id"`
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
	Angle float64 `json:"angle" msgpack:"angle"`
	Size  float64 `json:"size" msgpack:"size"`
}

// RemovePlayer はプレイヤーの退出・吸収通知です。
type RemovePlayer struct {
	ID string `json:"id" msgpack:"id"`
}

// Session は接続直後に自分のセッションIDを通知します。
type Session struct {
	ID string `json:"id" msgpack:"id"`
}

// Outbound はサーバーからクライアントへ送る1メッセージです。
// エンコードはセッションごとのコーデックで書き込み時に行います。
type Outbound struct {
	Event string
	Data  any
}
