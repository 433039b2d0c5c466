package dto

type UploadDocumentResponse struct {
	SessionId string `json:"session_id"`
	Filename  string `json:"filename"`
	Pages     int    `json:"pages"`
}

type AnalyzeDocumentRequest struct {
	SessionId string `json:"session_id" validate:"required"`
}

type ChatTurn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content"`
}

type ChatDocumentRequest struct {
	SessionId string     `json:"session_id" validate:"required"`
	Query     string     `json:"query" validate:"required"`
	History   []ChatTurn `json:"history" validate:"omitempty,dive"`
}

// TokenFrame is the payload of one chat SSE frame.
type TokenFrame struct {
	Token string `json:"token"`
}

// FieldFrame is the payload of one analyze SSE frame.
type FieldFrame struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
