package domain

// CursorState describes what the indexer is doing with its cursor.
type CursorState string

const (
	CursorStateInit     CursorState = "init"
	CursorStateCatchup  CursorState = "catchup"
	CursorStateIdle     CursorState = "idle"
	CursorStateStopping CursorState = "stopping"
)
