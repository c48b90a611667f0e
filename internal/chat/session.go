package chat

import (
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

// State of the conversation loop
type State int

const (
	AwaitingInput State = iota
	Processing
	Responding
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "awaiting_input"
	case Processing:
		return "processing"
	case Responding:
		return "responding"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// Session holds everything one chat run remembers. Nothing outlives it.
type Session struct {
	ID      string
	History []models.Turn
	State   State

	maxHistory int
}

func NewSession(maxHistory int) (*Session, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:         id,
		State:      AwaitingInput,
		maxHistory: max(maxHistory, 0),
	}, nil
}

// Append records a finished turn, keeping only the newest maxHistory turns
func (s *Session) Append(t models.Turn) {
	s.History = append(s.History, t)
	if over := len(s.History) - s.maxHistory; over > 0 {
		s.History = append([]models.Turn(nil), s.History[over:]...)
	}
}
