package store

// Level grades a notice for the front end.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

func (s *Session) Notify(level Level, msg string) {
	s.Notices = append(s.Notices, Notice{Level: level, Message: msg})
}

// DrainNotices hands back everything queued since the last drain.
func (s *Session) DrainNotices() []Notice {
	out := s.Notices
	s.Notices = nil
	return out
}
