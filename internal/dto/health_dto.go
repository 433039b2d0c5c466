package dto

type HealthResponse struct {
	Status        string `json:"status"`
	Sessions      int    `json:"sessions"`
	IndexBackend  string `json:"index_backend"`
	Collection    string `json:"collection"`
	IndexedChunks int    `json:"indexed_chunks"`
}
