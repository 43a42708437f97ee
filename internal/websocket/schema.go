package websocket

import (
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStart      Action = "start"
	ActionAnswer     Action = "answer"
	ActionVisibility Action = "visibility"
	ActionPresence   Action = "presence"
	ActionAck        Action = "ack"
	ActionSubmit     Action = "submit"
	ActionRetake     Action = "retake"
	ActionPing       Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest selects an option for one question.
type AnswerRequest struct {
	Action Action `json:"action"`
	Index  *int   `json:"index"`
	Option string `json:"option"`
}

// VisibilityRequest reports a page visibility change.
type VisibilityRequest struct {
	Action Action `json:"action"`
	Hidden bool   `json:"hidden"`
}

// PresenceRequest reports the face-detection result of one frame.
type PresenceRequest struct {
	Action  Action `json:"action"`
	Present bool   `json:"present"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventStarted    Event = "started"
	EventSaved      Event = "saved"
	EventStatus     Event = "status"
	EventWarning    Event = "warning"
	EventTerminated Event = "terminated"
	EventGraded     Event = "graded"
	EventReset      Event = "reset"
	EventError      Event = "error"
	EventPong       Event = "pong"
)

type StartedResponse struct {
	Event         Event                  `json:"event"`
	Domain        string                 `json:"domain"`
	Questions     []model.PublicQuestion `json:"questions"`
	Answers       model.AnswerSet        `json:"answers"`
	MaxViolations int                    `json:"max_violations"`
}

type SavedResponse struct {
	Event    Event `json:"event"`
	Index    int   `json:"index"`
	Answered int   `json:"answered"`
}

type StatusResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

type WarningResponse struct {
	Event            Event  `json:"event"`
	Kind             string `json:"kind"`
	Total            int    `json:"total"`
	TabSwitches      int    `json:"tab_switches"`
	CameraViolations int    `json:"camera_violations"`
	Remaining        int    `json:"remaining"`
}

type TerminatedResponse struct {
	Event    Event  `json:"event"`
	Kind     string `json:"kind"`
	Total    int    `json:"total"`
	Redirect string `json:"redirect"`
}

type GradedResponse struct {
	Event      Event            `json:"event"`
	Scores     model.SkillScore `json:"scores"`
	TotalScore float64          `json:"total_score"`
	SavedOK    bool             `json:"saved_ok"`
}

type ResetResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
