package dto

const DefaultAskK = 4

type AskRequest struct {
	Query string `json:"query" validate:"required"`
	// K defaults to DefaultAskK when omitted
	K *int `json:"k"`
}

type SourceResponse struct {
	Source     string  `json:"source"`
	PageNumber int     `json:"page_number"`
	Score      float32 `json:"score"`
	Excerpt    string  `json:"excerpt"`
}

type AskResponse struct {
	Answer  string           `json:"answer"`
	Sources []SourceResponse `json:"sources"`
}
