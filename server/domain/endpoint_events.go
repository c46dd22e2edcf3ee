package domain

type endpointEventKind uint8

const (
	// unknown
	unknown endpointEventKind = iota

	// I/O
	evReadError  // 読み込みに失敗した
	evWriteError // 書き込みに失敗した

	// ctrl
	evClose // セッション終了
)

func (k endpointEventKind) String() string {
	switch k {
	case evReadError:
		return "read_error"
	case evWriteError:
		return "write_error"
	case evClose:
		return "close"
	default:
		return "unknown"
	}
}

type endpointEvent struct {
	kind endpointEventKind
	err  error
}
